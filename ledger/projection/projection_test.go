package projection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freightledger/ledger"
	"freightledger/ledger/ledgertest"
)

func TestProjectPicksEarliestAndFollowsRejection(t *testing.T) {
	db := ledgertest.Open(t)
	p := NewProjector(db)
	order := ledgertest.Order(t, db, "PO-1")
	c1 := ledgertest.Consignment(t, db, order, 10)
	c2 := ledgertest.Consignment(t, db, order, 10)

	day3 := ledgertest.Appointment(t, db, "ACC-3", ledgertest.DayPtr(2026, 4, 3), nil)
	day1 := ledgertest.Appointment(t, db, "ACC-1", ledgertest.DayPtr(2026, 4, 9), ledgertest.DayPtr(2026, 4, 1))
	day2 := ledgertest.Appointment(t, db, "ACC-2", ledgertest.DayPtr(2026, 4, 2), nil)
	ledgertest.Line(t, db, day3, c1, 1, 0)
	ledgertest.Line(t, db, day1, c2, 1, 0)
	ledgertest.Line(t, db, day2, c1, 1, 0)

	got, err := p.Project(context.Background(), order)
	require.NoError(t, err)
	require.NotNil(t, got.Date)
	assert.True(t, got.Date.Equal(ledgertest.Day(2026, 4, 1)))
	assert.Equal(t, "ACC-1", *got.AccountID)

	ledgertest.Reject(t, db, day1)
	got, err = p.Project(context.Background(), order)
	require.NoError(t, err)
	require.NotNil(t, got.Date)
	assert.True(t, got.Date.Equal(ledgertest.Day(2026, 4, 2)))
	assert.Equal(t, "ACC-2", *got.AccountID)

	stored, err := p.Load(context.Background(), order)
	require.NoError(t, err)
	require.NotNil(t, stored.AccountID)
	assert.Equal(t, "ACC-2", *stored.AccountID)
	require.NotNil(t, stored.Date)
	assert.True(t, stored.Date.Equal(ledgertest.Day(2026, 4, 2)))
}

func TestProjectClearsWhenNoEligibleLine(t *testing.T) {
	db := ledgertest.Open(t)
	p := NewProjector(db)
	order := ledgertest.Order(t, db, "PO-1")
	c := ledgertest.Consignment(t, db, order, 10)
	appt := ledgertest.Appointment(t, db, "ACME", ledgertest.DayPtr(2026, 4, 3), nil)
	undated := ledgertest.Appointment(t, db, "LATER", nil, nil)
	ledgertest.Line(t, db, appt, c, 1, 0)
	ledgertest.Line(t, db, undated, c, 1, 0)

	_, err := p.Project(context.Background(), order)
	require.NoError(t, err)

	ledgertest.Reject(t, db, appt)
	got, err := p.Project(context.Background(), order)
	require.NoError(t, err)
	assert.Nil(t, got.AccountID)
	assert.Nil(t, got.Date)

	stored, err := p.Load(context.Background(), order)
	require.NoError(t, err)
	assert.Nil(t, stored.AccountID)
	assert.Nil(t, stored.Date)
}

func TestProjectTieBreaksByAppointment(t *testing.T) {
	db := ledgertest.Open(t)
	p := NewProjector(db)
	order := ledgertest.Order(t, db, "PO-1")
	c := ledgertest.Consignment(t, db, order, 10)
	first := ledgertest.Appointment(t, db, "FIRST", ledgertest.DayPtr(2026, 4, 5), nil)
	second := ledgertest.Appointment(t, db, "SECOND", ledgertest.DayPtr(2026, 4, 5), nil)
	ledgertest.Line(t, db, second, c, 1, 0)
	ledgertest.Line(t, db, first, c, 1, 0)

	got, err := p.Project(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, first, got.AppointmentID)
	assert.Equal(t, "FIRST", *got.AccountID)
}

func TestProjectUnknownOrder(t *testing.T) {
	db := ledgertest.Open(t)
	p := NewProjector(db)

	_, err := p.Project(context.Background(), 42)
	require.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = p.Project(context.Background(), 0)
	require.ErrorIs(t, err, ledger.ErrInvalidArgument)
}
