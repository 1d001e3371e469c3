// Package reconcile re-derives the unbooked and remaining counters of a
// consignment from its capacity sources and its full booking ledger.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/uptrace/bun"

	"freightledger/infrastructure/metrics"
	"freightledger/infrastructure/sqlite"
	"freightledger/ledger"
	"freightledger/ledger/bookings"
	"freightledger/ledger/capacity"
)

// Clock supplies the business day. timeref.Service implements it.
type Clock interface {
	CurrentIn(ctx context.Context, idb bun.IDB) (time.Time, error)
}

// RetryPolicy bounds the retries of a standalone reconciliation after a write
// conflict.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxElapsed      time.Duration
}

// DefaultRetryPolicy applies when a RetryPolicy field is zero.
var DefaultRetryPolicy = RetryPolicy{
	InitialInterval: 50 * time.Millisecond,
	MaxElapsed:      5 * time.Second,
}

// Engine recomputes the unbooked and remaining counters of consignments.
type Engine struct {
	DB     *sqlite.DB
	Clock  Clock
	Retry  RetryPolicy
	Logger *slog.Logger
}

func NewEngine(db *sqlite.DB, clock Clock, retry RetryPolicy, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if retry.InitialInterval <= 0 {
		retry.InitialInterval = DefaultRetryPolicy.InitialInterval
	}
	// Zero would make backoff retry forever.
	if retry.MaxElapsed <= 0 {
		retry.MaxElapsed = DefaultRetryPolicy.MaxElapsed
	}
	return &Engine{DB: db, Clock: clock, Retry: retry, Logger: logger}
}

// UnitResult is the outcome for one capacity unit.
type UnitResult struct {
	Kind     string            `json:"kind"`
	LotID    int64             `json:"lot_id,omitempty"`
	Capacity int64             `json:"capacity"`
	Counters capacity.Counters `json:"counters"`
}

// Unit kinds reported in UnitResult.Kind.
const (
	KindEstimated = "estimated"
	KindActual    = "actual"
)

// Result is one reconciliation of a consignment against the day it ran for.
type Result struct {
	ConsignmentID    int64        `json:"consignment_id"`
	Today            time.Time    `json:"today"`
	TotalEffective   int64        `json:"total_effective"`
	ExpiredEffective int64        `json:"expired_effective"`
	Units            []UnitResult `json:"units"`
}

// ReconcileIn recomputes one consignment inside the caller's scope, so a
// booking write and its counter update commit together.
func (e *Engine) ReconcileIn(ctx context.Context, idb bun.IDB, consignmentID int64) (Result, error) {
	start := time.Now()
	res, err := e.reconcile(ctx, idb, consignmentID)
	metrics.ObserveReconcile(resultLabel(err), time.Since(start))
	return res, err
}

func (e *Engine) reconcile(ctx context.Context, idb bun.IDB, consignmentID int64) (Result, error) {
	res := Result{ConsignmentID: consignmentID}
	if err := ledger.ValidID("consignment", consignmentID); err != nil {
		return res, err
	}

	sources, err := capacity.Resolve(ctx, idb, consignmentID)
	if err != nil {
		return res, err
	}
	lines, err := bookings.LinesFor(ctx, idb, consignmentID)
	if err != nil {
		return res, err
	}
	today, err := e.Clock.CurrentIn(ctx, idb)
	if err != nil {
		return res, err
	}
	res.Today = ledger.Day(today)
	res.TotalEffective, res.ExpiredEffective = bookings.Totals(lines, res.Today)

	res.Units = make([]UnitResult, 0, len(sources))
	for _, src := range sources {
		counters := capacity.Counters{
			Unbooked:  src.Qty() - res.TotalEffective,
			Remaining: src.Qty() - res.ExpiredEffective,
		}
		if err := capacity.Persist(ctx, idb, src, counters); err != nil {
			return res, err
		}
		unit := UnitResult{Capacity: src.Qty(), Counters: counters}
		switch s := src.(type) {
		case capacity.Actual:
			unit.Kind = KindActual
			unit.LotID = s.LotID
		case capacity.Estimated:
			unit.Kind = KindEstimated
		}
		res.Units = append(res.Units, unit)
	}
	return res, nil
}

// Reconcile recomputes one consignment in its own write transaction. Write
// conflicts are retried with exponential backoff; any other error is returned
// as is.
func (e *Engine) Reconcile(ctx context.Context, consignmentID int64) (Result, error) {
	if err := ledger.ValidID("consignment", consignmentID); err != nil {
		return Result{ConsignmentID: consignmentID}, err
	}

	var res Result
	op := func() error {
		err := e.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
			var err error
			res, err = e.ReconcileIn(ctx, tx, consignmentID)
			return err
		})
		if err != nil && !ledger.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		e.Logger.Warn("reconcile conflict, retrying",
			slog.Int64("consignment_id", consignmentID),
			slog.Duration("wait", wait),
			slog.Any("err", err),
		)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(e.newBackOff(), ctx), notify); err != nil {
		return Result{ConsignmentID: consignmentID}, err
	}
	return res, nil
}

func (e *Engine) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.Retry.InitialInterval
	b.MaxElapsedTime = e.Retry.MaxElapsed
	b.Reset()
	return b
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, ledger.ErrDataIntegrityGap):
		return metrics.ResultGap
	case ledger.IsRetryable(err):
		return metrics.ResultConflict
	default:
		return metrics.ResultError
	}
}
