package receipt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"

	"freightledger/infrastructure/audit"
	"freightledger/infrastructure/sqlite"
	"freightledger/infrastructure/timeref"
	"freightledger/ledger"
	"freightledger/ledger/triggers"
	"freightledger/models"
)

// Service records pallet receipts and estimate edits, recomputing the
// consignment in the same transaction.
type Service struct {
	DB        *sqlite.DB
	Audit     *audit.Service
	Clock     *timeref.Service
	Recompute *triggers.Recomputer
	Logger    *slog.Logger

	scope bun.IDB
}

func NewService(db *sqlite.DB, auditSvc *audit.Service, clock *timeref.Service, recompute *triggers.Recomputer, logger *slog.Logger) *Service {
	if auditSvc == nil {
		auditSvc = audit.NewService()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{DB: db, Audit: auditSvc, Clock: clock, Recompute: recompute, Logger: logger}
}

// In returns a copy whose writes join scope.
func (s *Service) In(scope bun.IDB) *Service {
	c := *s
	c.scope = scope
	return &c
}

// ReceiveLot creates a pallet lot. The first lot of a consignment replaces its
// estimate as capacity; counters are recomputed before the write commits.
func (s *Service) ReceiveLot(ctx context.Context, actor string, in LotInput) (LotResult, error) {
	var out LotResult
	if err := in.Validate(); err != nil {
		return out, err
	}

	err := s.DB.WithinWriteScope(ctx, s.scope, func(ctx context.Context, idb bun.IDB) error {
		if err := consignmentExists(ctx, idb, in.ConsignmentID); err != nil {
			return err
		}
		existing, err := idb.NewSelect().Model((*models.PalletLot)(nil)).Where("consignment_id = ?", in.ConsignmentID).Count(ctx)
		if err != nil {
			return err
		}
		out.FirstLot = existing == 0

		receivedAt := in.ReceivedAt
		if receivedAt.IsZero() {
			if receivedAt, err = s.Clock.CurrentIn(ctx, idb); err != nil {
				return err
			}
		}

		lot := models.PalletLot{
			ConsignmentID: in.ConsignmentID,
			LotCode:       in.LotCode,
			Quantity:      in.Quantity,
			ReceivedAt:    receivedAt.UTC(),
		}
		if _, err := idb.NewInsert().Model(&lot).Exec(ctx); err != nil {
			return err
		}

		if out.Recomputed, err = s.Recompute.Consignments(ctx, idb, in.ConsignmentID); err != nil {
			return err
		}
		// Counters were just written by the recompute.
		if err := idb.NewSelect().Model(&lot).WherePK().Scan(ctx); err != nil {
			return err
		}
		out.Lot = lot
		return s.Audit.Write(ctx, idb, actor, "lot.receive", "pallet_lots", fmt.Sprint(lot.ID), nil, lot)
	})
	if err != nil {
		return out, err
	}
	if out.FirstLot {
		s.Logger.Info("consignment capacity switched to received lots",
			slog.Int64("consignment_id", in.ConsignmentID),
			slog.Int64("lot_id", out.Lot.ID),
			slog.Int64("quantity", out.Lot.Quantity),
		)
	}
	return out, nil
}

// UpdateEstimate sets the planned pallet count. Once a lot exists the estimate
// no longer drives the counters, but it is still stored.
func (s *Service) UpdateEstimate(ctx context.Context, actor string, consignmentID int64, pallets int64) (EstimateResult, error) {
	var out EstimateResult
	if err := ledger.ValidID("consignment", consignmentID); err != nil {
		return out, err
	}
	if pallets < 0 {
		return out, ledger.InvalidArgument("estimated pallets must not be negative, got %d", pallets)
	}

	err := s.DB.WithinWriteScope(ctx, s.scope, func(ctx context.Context, idb bun.IDB) error {
		before, err := loadConsignment(ctx, idb, consignmentID)
		if err != nil {
			return err
		}
		if _, err := idb.NewUpdate().
			Model((*models.Consignment)(nil)).
			Set("estimated_pallets = ?", pallets).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", consignmentID).
			Exec(ctx); err != nil {
			return err
		}
		if out.Recomputed, err = s.Recompute.Consignments(ctx, idb, consignmentID); err != nil {
			return err
		}
		if out.Consignment, err = loadConsignment(ctx, idb, consignmentID); err != nil {
			return err
		}
		return s.Audit.Write(ctx, idb, actor, "consignment.estimate", "consignments", fmt.Sprint(consignmentID), before, out.Consignment)
	})
	return out, err
}

func loadConsignment(ctx context.Context, idb bun.IDB, id int64) (models.Consignment, error) {
	var c models.Consignment
	err := idb.NewSelect().Model(&c).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ledger.NotFound("consignment", id)
	}
	return c, err
}

func consignmentExists(ctx context.Context, idb bun.IDB, id int64) error {
	_, err := loadConsignment(ctx, idb, id)
	return err
}
