package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"freightledger/infrastructure/audit"
	"freightledger/infrastructure/sqlite"
	"freightledger/infrastructure/timeref"
	"freightledger/ledger"
	"freightledger/ledger/ledgertest"
	"freightledger/ledger/projection"
	"freightledger/ledger/reconcile"
	"freightledger/ledger/triggers"
)

var today = ledgertest.Day(2026, 8, 10)

func newService(t *testing.T) (*Service, *sqlite.DB) {
	t.Helper()
	db := ledgertest.Open(t)
	ledgertest.SetToday(t, db, today)
	engine := reconcile.NewEngine(db, timeref.NewService(db, nil, 1440), reconcile.RetryPolicy{InitialInterval: time.Millisecond, MaxElapsed: time.Second}, nil)
	recompute := triggers.NewRecomputer(engine, projection.NewProjector(db))
	return NewService(db, audit.NewService(), recompute), db
}

func at(days int) *time.Time {
	d := today.AddDate(0, 0, days)
	return &d
}

func TestCreateLineRecomputesInSameTransaction(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	order := ledgertest.Order(t, db, "PO-1")
	c := ledgertest.Consignment(t, db, order, 10)

	appt, err := svc.Create(ctx, "planner", AppointmentInput{AccountID: "ACME", RequestedDate: at(-1)})
	require.NoError(t, err)

	res, err := svc.CreateLine(ctx, "planner", appt.ID, LineInput{ConsignmentID: c, EstimatedQty: 15})
	require.NoError(t, err)
	require.Len(t, res.Recomputed, 1)

	unbooked, remaining := ledgertest.EstimateCounters(t, db, c)
	assert.Equal(t, int64(-5), unbooked)
	assert.Equal(t, int64(-5), remaining)

	earliest, err := projection.NewProjector(db).Load(ctx, order)
	require.NoError(t, err)
	require.NotNil(t, earliest.AccountID)
	assert.Equal(t, "ACME", *earliest.AccountID)
}

func TestLineEditsRecomputeOldAndNewConsignment(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	order := ledgertest.Order(t, db, "PO-1")
	c1 := ledgertest.Consignment(t, db, order, 10)
	c2 := ledgertest.Consignment(t, db, order, 10)
	appt, err := svc.Create(ctx, "planner", AppointmentInput{AccountID: "ACME", RequestedDate: at(2)})
	require.NoError(t, err)

	created, err := svc.CreateLine(ctx, "planner", appt.ID, LineInput{ConsignmentID: c1, EstimatedQty: 4})
	require.NoError(t, err)

	moved, err := svc.UpdateLine(ctx, "planner", created.Line.ID, LineInput{ConsignmentID: c2, EstimatedQty: 6})
	require.NoError(t, err)
	assert.Len(t, moved.Recomputed, 2)

	u1, _ := ledgertest.EstimateCounters(t, db, c1)
	u2, _ := ledgertest.EstimateCounters(t, db, c2)
	assert.Equal(t, int64(10), u1)
	assert.Equal(t, int64(4), u2)

	_, err = svc.SetRejectedQuantity(ctx, "planner", created.Line.ID, 6)
	require.NoError(t, err)
	u2, _ = ledgertest.EstimateCounters(t, db, c2)
	assert.Equal(t, int64(10), u2, "fully rejected line contributes nothing")

	_, err = svc.SetRejectedQuantity(ctx, "planner", created.Line.ID, 1)
	require.NoError(t, err)
	_, err = svc.DeleteLine(ctx, "planner", created.Line.ID)
	require.NoError(t, err)
	u2, _ = ledgertest.EstimateCounters(t, db, c2)
	assert.Equal(t, int64(10), u2)
}

func TestRejectAndRescheduleRecomputeAllConsignments(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	order := ledgertest.Order(t, db, "PO-1")
	c1 := ledgertest.Consignment(t, db, order, 10)
	c2 := ledgertest.Consignment(t, db, order, 10)
	appt, err := svc.Create(ctx, "planner", AppointmentInput{AccountID: "ACME", RequestedDate: at(1)})
	require.NoError(t, err)
	_, err = svc.CreateLine(ctx, "planner", appt.ID, LineInput{ConsignmentID: c1, EstimatedQty: 3})
	require.NoError(t, err)
	_, err = svc.CreateLine(ctx, "planner", appt.ID, LineInput{ConsignmentID: c2, EstimatedQty: 2})
	require.NoError(t, err)

	_, r1 := ledgertest.EstimateCounters(t, db, c1)
	require.Equal(t, int64(10), r1, "future booking is not expired")

	res, err := svc.Reschedule(ctx, "planner", appt.ID, ScheduleInput{RequestedDate: at(1), ConfirmedDate: at(-2)})
	require.NoError(t, err)
	assert.Len(t, res.Recomputed, 2)
	_, r1 = ledgertest.EstimateCounters(t, db, c1)
	_, r2 := ledgertest.EstimateCounters(t, db, c2)
	assert.Equal(t, int64(7), r1)
	assert.Equal(t, int64(8), r2)

	_, err = svc.SetRejected(ctx, "planner", appt.ID, true)
	require.NoError(t, err)
	u1, r1 := ledgertest.EstimateCounters(t, db, c1)
	u2, r2 := ledgertest.EstimateCounters(t, db, c2)
	assert.Equal(t, [4]int64{10, 10, 10, 10}, [4]int64{u1, r1, u2, r2})

	earliest, err := projection.NewProjector(db).Load(ctx, order)
	require.NoError(t, err)
	assert.Nil(t, earliest.AccountID, "rejected appointment clears the projection")
}

func TestDeleteAppointmentCascadesAndRecomputes(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	order := ledgertest.Order(t, db, "PO-1")
	c1 := ledgertest.Consignment(t, db, order, 10)
	c2 := ledgertest.Consignment(t, db, order, 10)
	appt, err := svc.Create(ctx, "planner", AppointmentInput{AccountID: "ACME", RequestedDate: at(0)})
	require.NoError(t, err)
	_, err = svc.CreateLine(ctx, "planner", appt.ID, LineInput{ConsignmentID: c1, EstimatedQty: 3})
	require.NoError(t, err)
	_, err = svc.CreateLine(ctx, "planner", appt.ID, LineInput{ConsignmentID: c2, EstimatedQty: 2})
	require.NoError(t, err)
	_, err = svc.CreateLine(ctx, "planner", appt.ID, LineInput{ConsignmentID: c1, EstimatedQty: 1})
	require.NoError(t, err)

	res, err := svc.Delete(ctx, "planner", appt.ID)
	require.NoError(t, err)
	assert.Len(t, res.Recomputed, 2, "each touched consignment recomputed once")

	u1, _ := ledgertest.EstimateCounters(t, db, c1)
	u2, _ := ledgertest.EstimateCounters(t, db, c2)
	assert.Equal(t, int64(10), u1)
	assert.Equal(t, int64(10), u2)

	var lines int
	err = db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT COUNT(*) FROM booking_lines WHERE appointment_id = ?`, appt.ID).Scan(ctx, &lines)
	})
	require.NoError(t, err)
	assert.Zero(t, lines)

	rows, err := audit.NewService().List(ctx, db.R, "appointments", 10)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, "appointment.delete", rows[0].Action)
}

func TestWritesJoinCallerScope(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	c := ledgertest.Consignment(t, db, ledgertest.Order(t, db, "PO-1"), 10)

	boom := errors.New("abort")
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		scoped := svc.In(tx)
		appt, err := scoped.Create(ctx, "planner", AppointmentInput{AccountID: "ACME", RequestedDate: at(-1)})
		if err != nil {
			return err
		}
		if _, err := scoped.CreateLine(ctx, "planner", appt.ID, LineInput{ConsignmentID: c, EstimatedQty: 4}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	unbooked, _ := ledgertest.EstimateCounters(t, db, c)
	assert.Zero(t, unbooked, "booking and recompute rolled back together")
}

func TestValidation(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	c := ledgertest.Consignment(t, db, ledgertest.Order(t, db, "PO-1"), 10)

	_, err := svc.Create(ctx, "planner", AppointmentInput{})
	require.ErrorIs(t, err, ledger.ErrInvalidArgument)

	appt, err := svc.Create(ctx, "planner", AppointmentInput{AccountID: "ACME"})
	require.NoError(t, err)

	_, err = svc.CreateLine(ctx, "planner", appt.ID, LineInput{ConsignmentID: c, EstimatedQty: -1})
	require.ErrorIs(t, err, ledger.ErrInvalidArgument)

	_, err = svc.CreateLine(ctx, "planner", appt.ID, LineInput{ConsignmentID: 0, EstimatedQty: 1})
	require.ErrorIs(t, err, ledger.ErrInvalidArgument)

	_, err = svc.CreateLine(ctx, "planner", appt.ID, LineInput{ConsignmentID: 999, EstimatedQty: 1})
	require.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = svc.CreateLine(ctx, "planner", 999, LineInput{ConsignmentID: c, EstimatedQty: 1})
	require.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = svc.SetRejectedQuantity(ctx, "planner", 1, -2)
	require.ErrorIs(t, err, ledger.ErrInvalidArgument)

	_, err = svc.DeleteLine(ctx, "planner", 12345)
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestLineOnGapConsignmentIsRejected(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	gap := ledgertest.ConsignmentWithoutEstimate(t, db, ledgertest.Order(t, db, "PO-1"))
	appt, err := svc.Create(ctx, "planner", AppointmentInput{AccountID: "ACME"})
	require.NoError(t, err)

	_, err = svc.CreateLine(ctx, "planner", appt.ID, LineInput{ConsignmentID: gap, EstimatedQty: 1})
	require.ErrorIs(t, err, ledger.ErrDataIntegrityGap)

	var lines int
	err = db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT COUNT(*) FROM booking_lines`).Scan(ctx, &lines)
	})
	require.NoError(t, err)
	assert.Zero(t, lines, "failed recompute rolls back the booking")
}
