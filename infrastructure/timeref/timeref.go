// Package timeref stores the single business "now" used to decide which
// bookings have expired. The host clock is never consulted for it.
package timeref

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"freightledger/infrastructure/audit"
	"freightledger/infrastructure/metrics"
	"freightledger/infrastructure/sqlite"
	"freightledger/ledger"
	"freightledger/models"
)

const (
	rowID      = 1
	entityType = "time_reference"

	ActionSet     = "timeref.set"
	ActionAdvance = "timeref.advance"

	// MaxAdvanceMinutes caps a single advance at ten years.
	MaxAdvanceMinutes = 10 * 366 * 24 * 60
)

// Service reads and writes the persisted time reference row.
type Service struct {
	DB             *sqlite.DB
	Audit          *audit.Service
	AdvanceMinutes int
}

func NewService(db *sqlite.DB, auditSvc *audit.Service, advanceMinutes int) *Service {
	if auditSvc == nil {
		auditSvc = audit.NewService()
	}
	return &Service{DB: db, Audit: auditSvc, AdvanceMinutes: advanceMinutes}
}

type auditState struct {
	CurrentAt time.Time `json:"current_at"`
	Version   int64     `json:"version"`
}

// Current returns the stored business day (UTC midnight).
func (s *Service) Current(ctx context.Context) (time.Time, error) {
	var day time.Time
	err := s.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		day, err = s.CurrentIn(ctx, tx)
		return err
	})
	return day, err
}

// CurrentIn is Current inside an existing scope.
func (s *Service) CurrentIn(ctx context.Context, idb bun.IDB) (time.Time, error) {
	row, err := load(ctx, idb)
	if err != nil {
		return time.Time{}, err
	}
	return ledger.Day(row.CurrentAt), nil
}

// Snapshot returns the full stored row including version and last writer.
func (s *Service) Snapshot(ctx context.Context) (models.TimeReference, error) {
	var row models.TimeReference
	err := s.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		row, err = load(ctx, tx)
		return err
	})
	return row, err
}

// Advance moves the stored timestamp forward by deltaMinutes and returns the
// new value.
func (s *Service) Advance(ctx context.Context, actor string, deltaMinutes int) (time.Time, error) {
	if deltaMinutes <= 0 {
		return time.Time{}, ledger.InvalidArgument("advance delta must be positive, got %d minutes", deltaMinutes)
	}
	if deltaMinutes > MaxAdvanceMinutes {
		return time.Time{}, ledger.InvalidArgument("advance delta must not exceed %d minutes, got %d", MaxAdvanceMinutes, deltaMinutes)
	}

	var next time.Time
	err := s.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		row, err := load(ctx, tx)
		if err != nil {
			return err
		}
		next = row.CurrentAt.Add(time.Duration(deltaMinutes) * time.Minute).UTC()
		if !next.After(row.CurrentAt) {
			return ledger.InvalidArgument("advance by %d minutes does not move %s forward", deltaMinutes, row.CurrentAt.UTC().Format(time.RFC3339))
		}
		if err := update(ctx, tx, row.Version, next, actor); err != nil {
			return err
		}
		return s.Audit.Write(ctx, tx, actor, ActionAdvance, entityType, fmt.Sprint(rowID),
			auditState{CurrentAt: row.CurrentAt, Version: row.Version},
			auditState{CurrentAt: next, Version: row.Version + 1},
		)
	})
	if err != nil {
		return time.Time{}, err
	}
	metrics.IncClockWrite("advance")
	return next, nil
}

// AdvanceDefault advances by the configured fixed increment.
func (s *Service) AdvanceDefault(ctx context.Context, actor string) (time.Time, error) {
	return s.Advance(ctx, actor, s.AdvanceMinutes)
}

// Set overwrites the stored timestamp, creating the row on first use.
func (s *Service) Set(ctx context.Context, actor string, literal time.Time) (time.Time, error) {
	if literal.IsZero() {
		return time.Time{}, ledger.InvalidArgument("time reference value is required")
	}
	literal = literal.UTC()

	err := s.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		row, err := load(ctx, tx)
		if errors.Is(err, ledger.ErrNotConfigured) {
			created := &models.TimeReference{
				ID:        rowID,
				CurrentAt: literal,
				Version:   1,
				UpdatedBy: audit.NormalizeActor(actor),
			}
			if _, err := tx.NewInsert().Model(created).Exec(ctx); err != nil {
				return err
			}
			return s.Audit.Write(ctx, tx, actor, ActionSet, entityType, fmt.Sprint(rowID),
				nil, auditState{CurrentAt: literal, Version: 1})
		}
		if err != nil {
			return err
		}
		if err := update(ctx, tx, row.Version, literal, actor); err != nil {
			return err
		}
		return s.Audit.Write(ctx, tx, actor, ActionSet, entityType, fmt.Sprint(rowID),
			auditState{CurrentAt: row.CurrentAt, Version: row.Version},
			auditState{CurrentAt: literal, Version: row.Version + 1},
		)
	})
	if err != nil {
		return time.Time{}, err
	}
	metrics.IncClockWrite("set")
	return literal, nil
}

// History lists time reference changes, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]models.AuditLog, error) {
	var rows []models.AuditLog
	err := s.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		rows, err = s.Audit.List(ctx, tx, entityType, limit)
		return err
	})
	return rows, err
}

func load(ctx context.Context, idb bun.IDB) (models.TimeReference, error) {
	var row models.TimeReference
	err := idb.NewSelect().Model(&row).Where("id = ?", rowID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return row, ledger.ErrNotConfigured
	}
	if err != nil {
		return row, fmt.Errorf("load time reference: %w", err)
	}
	return row, nil
}

func update(ctx context.Context, idb bun.IDB, version int64, value time.Time, actor string) error {
	res, err := idb.NewUpdate().
		Model((*models.TimeReference)(nil)).
		Set("current_at = ?", value).
		Set("version = version + 1").
		Set("updated_at = CURRENT_TIMESTAMP").
		Set("updated_by = ?", audit.NormalizeActor(actor)).
		Where("id = ?", rowID).
		Where("version = ?", version).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update time reference: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("time reference version %d changed: %w", version, ledger.ErrConcurrentWriteConflict)
	}
	return nil
}
