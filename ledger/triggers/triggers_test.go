package triggers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"freightledger/infrastructure/timeref"
	"freightledger/ledger/ledgertest"
	"freightledger/ledger/projection"
	"freightledger/ledger/reconcile"
)

func TestDistinct(t *testing.T) {
	assert.Equal(t, []int64{1, 3, 7}, Distinct([]int64{7, 3, 7, 0, 1, -2, 3}))
	assert.Empty(t, Distinct(nil))
}

func TestConsignmentsDedupesAndProjects(t *testing.T) {
	db := ledgertest.Open(t)
	ledgertest.SetToday(t, db, ledgertest.Day(2026, 6, 1))
	engine := reconcile.NewEngine(db, timeref.NewService(db, nil, 1440), reconcile.RetryPolicy{InitialInterval: time.Millisecond, MaxElapsed: time.Second}, nil)
	r := NewRecomputer(engine, projection.NewProjector(db))

	order := ledgertest.Order(t, db, "PO-1")
	c1 := ledgertest.Consignment(t, db, order, 10)
	c2 := ledgertest.Consignment(t, db, order, 5)
	appt := ledgertest.Appointment(t, db, "ACME", ledgertest.DayPtr(2026, 6, 3), nil)
	ledgertest.Line(t, db, appt, c1, 4, 0)
	ledgertest.Line(t, db, appt, c2, 1, 0)

	var results []reconcile.Result
	err := db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		var err error
		results, err = r.Consignments(ctx, tx, c2, c1, c2, c1)
		return err
	})
	require.NoError(t, err)
	require.Len(t, results, 2, "each consignment reconciled once")
	assert.Equal(t, c1, results[0].ConsignmentID)
	assert.Equal(t, c2, results[1].ConsignmentID)

	unbooked, _ := ledgertest.EstimateCounters(t, db, c1)
	assert.Equal(t, int64(6), unbooked)
	unbooked, _ = ledgertest.EstimateCounters(t, db, c2)
	assert.Equal(t, int64(4), unbooked)

	stored, err := projection.NewProjector(db).Load(context.Background(), order)
	require.NoError(t, err)
	require.NotNil(t, stored.AccountID)
	assert.Equal(t, "ACME", *stored.AccountID)
}

func TestConsignmentsStopsOnGap(t *testing.T) {
	db := ledgertest.Open(t)
	ledgertest.SetToday(t, db, ledgertest.Day(2026, 6, 1))
	engine := reconcile.NewEngine(db, timeref.NewService(db, nil, 1440), reconcile.RetryPolicy{}, nil)
	r := NewRecomputer(engine, projection.NewProjector(db))
	gap := ledgertest.ConsignmentWithoutEstimate(t, db, ledgertest.Order(t, db, "PO-1"))

	err := db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		_, err := r.Consignments(ctx, tx, gap)
		return err
	})
	require.Error(t, err)
}
