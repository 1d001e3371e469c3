// Package ledgertest seeds ledger rows into a temporary sqlite database for
// package tests.
package ledgertest

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"freightledger/infrastructure/sqlite"
)

// Open creates a migrated database in t.TempDir.
func Open(t testing.TB) *sqlite.DB {
	t.Helper()
	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "ledger-test.db"))
	require.NoError(t, err, "open db")
	t.Cleanup(func() {
		_ = db.Close()
	})

	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok, "runtime caller unavailable")
	migrationsDir := filepath.Join(filepath.Dir(file), "..", "..", "infrastructure", "sqlite", "migrations")
	require.NoError(t, sqlite.ApplyMigrations(context.Background(), db, migrationsDir), "apply migrations")
	return db
}

// Day builds a UTC calendar day.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DayPtr is Day returning a pointer, for nullable appointment dates.
func DayPtr(year int, month time.Month, day int) *time.Time {
	d := Day(year, month, day)
	return &d
}

// SetToday writes the time reference row directly.
func SetToday(t testing.TB, db *sqlite.DB, today time.Time) {
	t.Helper()
	exec(t, db, `
INSERT INTO time_reference (id, current_at, version, updated_by) VALUES (1, ?, 1, 'test')
ON CONFLICT(id) DO UPDATE SET current_at = excluded.current_at, version = time_reference.version + 1`, today.UTC())
}

// Order inserts an order and returns its id.
func Order(t testing.TB, db *sqlite.DB, reference string) int64 {
	t.Helper()
	return insert(t, db, `INSERT INTO orders (reference) VALUES (?)`, reference)
}

// Consignment inserts a consignment with an estimated pallet count.
func Consignment(t testing.TB, db *sqlite.DB, orderID int64, estimate int64) int64 {
	t.Helper()
	return insert(t, db, `INSERT INTO consignments (order_id, sku, estimated_pallets) VALUES (?, 'SKU', ?)`, orderID, estimate)
}

// ConsignmentWithoutEstimate inserts a consignment with no capacity source.
func ConsignmentWithoutEstimate(t testing.TB, db *sqlite.DB, orderID int64) int64 {
	t.Helper()
	return insert(t, db, `INSERT INTO consignments (order_id, sku) VALUES (?, 'SKU')`, orderID)
}

// Lot inserts a received pallet lot without recomputing counters.
func Lot(t testing.TB, db *sqlite.DB, consignmentID int64, quantity int64) int64 {
	t.Helper()
	return insert(t, db, `INSERT INTO pallet_lots (consignment_id, lot_code, quantity, received_at) VALUES (?, 'LOT', ?, CURRENT_TIMESTAMP)`, consignmentID, quantity)
}

// Appointment inserts an appointment with optional requested/confirmed dates.
func Appointment(t testing.TB, db *sqlite.DB, accountID string, requested, confirmed *time.Time) int64 {
	t.Helper()
	return insert(t, db, `INSERT INTO appointments (account_id, requested_date, confirmed_date) VALUES (?, ?, ?)`, accountID, requested, confirmed)
}

// Line inserts a booking line without recomputing counters.
func Line(t testing.TB, db *sqlite.DB, appointmentID, consignmentID, estimated, rejected int64) int64 {
	t.Helper()
	return insert(t, db, `INSERT INTO booking_lines (appointment_id, consignment_id, estimated_qty, rejected_qty) VALUES (?, ?, ?, ?)`, appointmentID, consignmentID, estimated, rejected)
}

// Reject flips an appointment's rejected flag without recomputing.
func Reject(t testing.TB, db *sqlite.DB, appointmentID int64) {
	t.Helper()
	exec(t, db, `UPDATE appointments SET rejected = 1 WHERE id = ?`, appointmentID)
}

// EstimateCounters reads the counters stored on the consignment row.
func EstimateCounters(t testing.TB, db *sqlite.DB, consignmentID int64) (unbooked, remaining int64) {
	t.Helper()
	err := db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT unbooked_qty, remaining_qty FROM consignments WHERE id = ?`, consignmentID).Scan(ctx, &unbooked, &remaining)
	})
	require.NoError(t, err, "read consignment counters")
	return unbooked, remaining
}

// LotCounters reads the counters stored on a lot row.
func LotCounters(t testing.TB, db *sqlite.DB, lotID int64) (unbooked, remaining int64) {
	t.Helper()
	err := db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT unbooked_qty, remaining_qty FROM pallet_lots WHERE id = ?`, lotID).Scan(ctx, &unbooked, &remaining)
	})
	require.NoError(t, err, "read lot counters")
	return unbooked, remaining
}

// Exec runs a raw write statement, e.g. to simulate drift.
func Exec(t testing.TB, db *sqlite.DB, query string, args ...any) {
	t.Helper()
	exec(t, db, query, args...)
}

func exec(t testing.TB, db *sqlite.DB, query string, args ...any) {
	t.Helper()
	err := db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
	require.NoError(t, err, "exec %s", query)
}

func insert(t testing.TB, db *sqlite.DB, query string, args ...any) int64 {
	t.Helper()
	var id int64
	err := db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	require.NoError(t, err, "insert %s", query)
	return id
}
