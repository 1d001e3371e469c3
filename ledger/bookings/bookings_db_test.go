package bookings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"freightledger/ledger/ledgertest"
)

func TestLinesForExcludesRejectedAppointments(t *testing.T) {
	db := ledgertest.Open(t)
	order := ledgertest.Order(t, db, "PO-1")
	c1 := ledgertest.Consignment(t, db, order, 10)
	c2 := ledgertest.Consignment(t, db, order, 5)

	confirmed := ledgertest.Appointment(t, db, "ACME", ledgertest.DayPtr(2026, 1, 5), ledgertest.DayPtr(2026, 1, 7))
	rejected := ledgertest.Appointment(t, db, "GLOBEX", ledgertest.DayPtr(2026, 1, 2), nil)
	undated := ledgertest.Appointment(t, db, "INITECH", nil, nil)

	l1 := ledgertest.Line(t, db, confirmed, c1, 4, 1)
	ledgertest.Line(t, db, rejected, c1, 6, 0)
	l3 := ledgertest.Line(t, db, undated, c1, 2, 0)
	ledgertest.Line(t, db, confirmed, c2, 3, 0)
	ledgertest.Reject(t, db, rejected)

	var lines []LineView
	err := db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		var err error
		lines, err = LinesFor(ctx, tx, c1)
		return err
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, l1, lines[0].LineID)
	assert.Equal(t, int64(3), lines[0].EffectiveQuantity)
	assert.Equal(t, "ACME", lines[0].AccountID)
	require.NotNil(t, lines[0].ScheduledDate)
	assert.True(t, lines[0].ScheduledDate.Equal(ledgertest.Day(2026, 1, 7)), "confirmed date wins over requested")

	assert.Equal(t, l3, lines[1].LineID)
	assert.Nil(t, lines[1].ScheduledDate)
}

func TestLinesForOrderAndAppointmentConsignments(t *testing.T) {
	db := ledgertest.Open(t)
	order := ledgertest.Order(t, db, "PO-2")
	other := ledgertest.Order(t, db, "PO-3")
	c1 := ledgertest.Consignment(t, db, order, 10)
	c2 := ledgertest.Consignment(t, db, order, 10)
	c3 := ledgertest.Consignment(t, db, other, 10)

	appt := ledgertest.Appointment(t, db, "ACME", ledgertest.DayPtr(2026, 2, 1), nil)
	ledgertest.Line(t, db, appt, c2, 1, 0)
	ledgertest.Line(t, db, appt, c1, 1, 0)
	ledgertest.Line(t, db, appt, c1, 2, 0)
	ledgertest.Line(t, db, appt, c3, 2, 0)

	err := db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		lines, err := LinesForOrder(ctx, tx, order)
		if err != nil {
			return err
		}
		assert.Len(t, lines, 3)

		ids, err := ConsignmentsForAppointment(ctx, tx, appt)
		if err != nil {
			return err
		}
		assert.Equal(t, []int64{c1, c2, c3}, ids)
		return nil
	})
	require.NoError(t, err)
}

func TestTotalsStrictExpiryBoundary(t *testing.T) {
	today := ledgertest.Day(2026, 3, 10)
	yesterday := today.AddDate(0, 0, -1)
	lateToday := today.Add(23 * time.Hour)

	lines := []LineView{
		{LineID: 1, EffectiveQuantity: 2, ScheduledDate: &today},
		{LineID: 2, EffectiveQuantity: 3, ScheduledDate: &yesterday},
		{LineID: 3, EffectiveQuantity: 5, ScheduledDate: nil},
		{LineID: 4, EffectiveQuantity: 7, ScheduledDate: &lateToday},
	}

	total, expired := Totals(lines, today)
	assert.Equal(t, int64(17), total)
	assert.Equal(t, int64(3), expired, "only the line scheduled before today has expired")
}

func TestTotalsFullyRejectedLineContributesZero(t *testing.T) {
	yesterday := ledgertest.Day(2026, 3, 9)
	lines := []LineView{{LineID: 1, EffectiveQuantity: 4 - 4, ScheduledDate: &yesterday}}

	total, expired := Totals(lines, ledgertest.Day(2026, 3, 10))
	assert.Zero(t, total)
	assert.Zero(t, expired)
}

func TestLinesForRejectsInvalidID(t *testing.T) {
	db := ledgertest.Open(t)
	err := db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		_, err := LinesFor(ctx, tx, 0)
		return err
	})
	require.Error(t, err)
}
