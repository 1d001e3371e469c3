package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"freightledger/infrastructure/audit"
	"freightledger/infrastructure/metrics"
	"freightledger/ledger"
	"freightledger/ledger/capacity"
	"freightledger/models"
)

// Failure is one consignment the batch could not reconcile.
type Failure struct {
	ConsignmentID int64  `json:"consignment_id"`
	Reason        string `json:"reason"`
}

// Report summarises a full run. Processed counts every consignment visited,
// Failed the subset that errored.
type Report struct {
	RunID      string    `json:"run_id"`
	Actor      string    `json:"actor"`
	Processed  int       `json:"processed"`
	Failed     int       `json:"failed"`
	Failures   []Failure `json:"failures"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Batch re-derives counters for every known consignment.
type Batch struct {
	Engine *Engine
	Logger *slog.Logger
}

func NewBatch(engine *Engine, logger *slog.Logger) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	return &Batch{Engine: engine, Logger: logger}
}

// RunFull reconciles each consignment in its own transaction. Item failures
// are recorded in the report and never stop the run. The report is persisted.
//
// If ctx is cancelled the run stops between items; the partial report is
// persisted and returned together with the context error.
func (b *Batch) RunFull(ctx context.Context, actor string) (Report, error) {
	report := Report{
		RunID:     uuid.NewString(),
		Actor:     audit.NormalizeActor(actor),
		Failures:  make([]Failure, 0),
		StartedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	var ids []int64
	err := b.Engine.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		ids, err = capacity.ListConsignmentIDs(ctx, tx)
		return err
	})
	if err != nil {
		return report, fmt.Errorf("list consignments: %w", err)
	}

	var runErr error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		report.Processed++
		if _, err := b.Engine.Reconcile(ctx, id); err != nil {
			report.Failed++
			report.Failures = append(report.Failures, Failure{ConsignmentID: id, Reason: err.Error()})
			b.Logger.Warn("batch reconcile item failed",
				slog.String("run_id", report.RunID),
				slog.Int64("consignment_id", id),
				slog.Any("err", err),
			)
		}
	}
	report.FinishedAt = time.Now().UTC().Truncate(time.Millisecond)

	if err := b.save(context.WithoutCancel(ctx), report); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("save run %s: %w", report.RunID, err))
	}

	result := metrics.ResultSuccess
	if runErr != nil {
		result = metrics.ResultError
	}
	metrics.ObserveBatch(result, report.Processed, report.Failed, report.FinishedAt.Sub(report.StartedAt))

	b.Logger.Info("batch reconcile finished",
		slog.String("run_id", report.RunID),
		slog.String("actor", report.Actor),
		slog.Int("processed", report.Processed),
		slog.Int("failed", report.Failed),
		slog.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, runErr
}

func (b *Batch) save(ctx context.Context, report Report) error {
	return b.Engine.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		run := &models.ReconcileRun{
			ID:         report.RunID,
			Actor:      report.Actor,
			Processed:  report.Processed,
			Failed:     report.Failed,
			StartedAt:  report.StartedAt,
			FinishedAt: report.FinishedAt,
		}
		if _, err := tx.NewInsert().Model(run).Exec(ctx); err != nil {
			return err
		}
		if len(report.Failures) == 0 {
			return nil
		}
		rows := make([]models.ReconcileFailure, 0, len(report.Failures))
		for _, f := range report.Failures {
			rows = append(rows, models.ReconcileFailure{RunID: report.RunID, ConsignmentID: f.ConsignmentID, Reason: f.Reason})
		}
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
}

// LoadRun reads a persisted run report.
func (b *Batch) LoadRun(ctx context.Context, runID string) (Report, error) {
	report := Report{RunID: runID, Failures: make([]Failure, 0)}
	if _, err := uuid.Parse(runID); err != nil {
		return report, ledger.InvalidArgument("run id %q is not a uuid", runID)
	}

	err := b.Engine.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var run models.ReconcileRun
		err := tx.NewSelect().Model(&run).Where("id = ?", runID).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("reconcile run %s: %w", runID, ledger.ErrNotFound)
		}
		if err != nil {
			return err
		}
		report.Actor = run.Actor
		report.Processed = run.Processed
		report.Failed = run.Failed
		report.StartedAt = run.StartedAt
		report.FinishedAt = run.FinishedAt

		var failures []models.ReconcileFailure
		if err := tx.NewSelect().Model(&failures).Where("run_id = ?", runID).OrderExpr("id ASC").Scan(ctx); err != nil {
			return err
		}
		for _, f := range failures {
			report.Failures = append(report.Failures, Failure{ConsignmentID: f.ConsignmentID, Reason: f.Reason})
		}
		return nil
	})
	return report, err
}

// ListRuns returns the newest run summaries without their failure lists.
func (b *Batch) ListRuns(ctx context.Context, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []models.ReconcileRun
	err := b.Engine.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&runs).OrderExpr("started_at DESC, id ASC").Limit(limit).Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	out := make([]Report, 0, len(runs))
	for _, run := range runs {
		out = append(out, Report{
			RunID:      run.ID,
			Actor:      run.Actor,
			Processed:  run.Processed,
			Failed:     run.Failed,
			StartedAt:  run.StartedAt,
			FinishedAt: run.FinishedAt,
		})
	}
	return out, nil
}
