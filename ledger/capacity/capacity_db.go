package capacity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"freightledger/infrastructure/sqlite"
	"freightledger/ledger"
	"freightledger/models"
)

// Resolve returns the consignment's current capacity sources. Each received lot
// is its own Actual source; without lots the estimate is used. Nothing is
// cached: a receipt between two calls changes the answer.
func Resolve(ctx context.Context, idb bun.IDB, consignmentID int64) ([]Source, error) {
	if err := ledger.ValidID("consignment", consignmentID); err != nil {
		return nil, err
	}

	var consignment models.Consignment
	err := idb.NewSelect().Model(&consignment).Where("id = ?", consignmentID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.NotFound("consignment", consignmentID)
	}
	if err != nil {
		return nil, fmt.Errorf("load consignment %d: %w", consignmentID, err)
	}

	lots := make([]models.PalletLot, 0)
	if err := idb.NewSelect().
		Model(&lots).
		Where("consignment_id = ?", consignmentID).
		OrderExpr("id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("load lots of consignment %d: %w", consignmentID, err)
	}

	if len(lots) > 0 {
		sources := make([]Source, 0, len(lots))
		for _, lot := range lots {
			sources = append(sources, Actual{LotID: lot.ID, ConsignmentID: consignmentID, Quantity: lot.Quantity})
		}
		return sources, nil
	}

	if consignment.EstimatedPallets == nil {
		return nil, &ledger.GapError{ConsignmentID: consignmentID}
	}
	return []Source{Estimated{ConsignmentID: consignmentID, Quantity: *consignment.EstimatedPallets}}, nil
}

// Persist stores counters against the source's own row.
func Persist(ctx context.Context, idb bun.IDB, src Source, c Counters) error {
	var (
		res sql.Result
		err error
	)
	switch s := src.(type) {
	case Actual:
		res, err = idb.NewUpdate().
			Model((*models.PalletLot)(nil)).
			Set("unbooked_qty = ?", c.Unbooked).
			Set("remaining_qty = ?", c.Remaining).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", s.LotID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("persist lot %d counters: %w", s.LotID, err)
		}
	case Estimated:
		res, err = idb.NewUpdate().
			Model((*models.Consignment)(nil)).
			Set("unbooked_qty = ?", c.Unbooked).
			Set("remaining_qty = ?", c.Remaining).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", s.ConsignmentID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("persist consignment %d counters: %w", s.ConsignmentID, err)
		}
	default:
		return fmt.Errorf("unsupported capacity source %T", src)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.NotFound("capacity source of consignment", src.Consignment())
	}
	return nil
}

// ListConsignmentIDs returns every consignment reachable through a capacity
// source, ascending.
func ListConsignmentIDs(ctx context.Context, idb bun.IDB) ([]int64, error) {
	ids := make([]int64, 0)
	err := idb.NewRaw(`
SELECT id FROM consignments
UNION
SELECT consignment_id FROM pallet_lots
ORDER BY 1 ASC`).Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("list consignments: %w", err)
	}
	return ids, nil
}

// LoadCounters reads the stored counters of a consignment and its lots.
func LoadCounters(ctx context.Context, db *sqlite.DB, consignmentID int64) (ConsignmentCounters, error) {
	out := ConsignmentCounters{ConsignmentID: consignmentID, Lots: make([]LotCounters, 0)}
	if err := ledger.ValidID("consignment", consignmentID); err != nil {
		return out, err
	}

	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var consignment models.Consignment
		err := tx.NewSelect().Model(&consignment).Where("id = ?", consignmentID).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.NotFound("consignment", consignmentID)
		}
		if err != nil {
			return err
		}
		out.OrderID = consignment.OrderID
		out.EstimatedPallets = consignment.EstimatedPallets
		out.Estimate = Counters{Unbooked: consignment.UnbookedQty, Remaining: consignment.RemainingQty}

		lots := make([]models.PalletLot, 0)
		if err := tx.NewSelect().
			Model(&lots).
			Where("consignment_id = ?", consignmentID).
			OrderExpr("id ASC").
			Scan(ctx); err != nil {
			return err
		}
		for _, lot := range lots {
			out.Lots = append(out.Lots, LotCounters{
				LotID:    lot.ID,
				LotCode:  lot.LotCode,
				Quantity: lot.Quantity,
				Counters: Counters{Unbooked: lot.UnbookedQty, Remaining: lot.RemainingQty},
			})
		}
		return nil
	})
	return out, err
}
