package audit

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/uptrace/bun"

	"freightledger/infrastructure/sqlite"
)

func openAuditTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "audit-test.db")
	db, err := sqlite.OpenDB(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller unavailable")
	}
	migrationsDir := filepath.Join(filepath.Dir(file), "..", "sqlite", "migrations")
	if err := sqlite.ApplyMigrations(context.Background(), db, migrationsDir); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func TestWriteAndListNewestFirst(t *testing.T) {
	db := openAuditTestDB(t)
	svc := NewService()

	err := db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		if err := svc.Write(ctx, tx, "ops-1", "timeref.set", "time_reference", "1", nil, map[string]int{"version": 1}); err != nil {
			return err
		}
		if err := svc.Write(ctx, tx, "  ", "timeref.advance", "time_reference", "1", map[string]int{"version": 1}, map[string]int{"version": 2}); err != nil {
			return err
		}
		return svc.Write(ctx, tx, "ops-1", "line.create", "booking_lines", "9", nil, nil)
	})
	if err != nil {
		t.Fatalf("write audit rows: %v", err)
	}

	var rowsActor, rowsAction []string
	err = db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		rows, err := svc.List(ctx, tx, "time_reference", 10)
		if err != nil {
			return err
		}
		for _, row := range rows {
			rowsActor = append(rowsActor, row.Actor)
			rowsAction = append(rowsAction, row.Action)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("list audit rows: %v", err)
	}

	if len(rowsAction) != 2 {
		t.Fatalf("expected 2 time_reference rows, got %d", len(rowsAction))
	}
	if rowsAction[0] != "timeref.advance" || rowsActor[0] != SystemActor {
		t.Fatalf("expected newest advance by system actor, got %s by %s", rowsAction[0], rowsActor[0])
	}
	if rowsActor[1] != "ops-1" {
		t.Fatalf("expected actor ops-1, got %s", rowsActor[1])
	}
}
