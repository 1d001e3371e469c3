// Package triggers recomputes derived counters and order projections after a
// booking ledger or capacity write, inside the writer's transaction.
package triggers

import (
	"context"
	"fmt"
	"sort"

	"github.com/uptrace/bun"

	"freightledger/ledger/projection"
	"freightledger/ledger/reconcile"
)

// Recomputer reconciles consignments touched by a write and re-projects
// their orders.
type Recomputer struct {
	Engine    *reconcile.Engine
	Projector *projection.Projector
}

func NewRecomputer(engine *reconcile.Engine, projector *projection.Projector) *Recomputer {
	return &Recomputer{Engine: engine, Projector: projector}
}

// Consignments reconciles each distinct consignment once, then re-projects
// each distinct owning order once. Everything runs through idb, so it commits
// or rolls back with the triggering write.
func (r *Recomputer) Consignments(ctx context.Context, idb bun.IDB, ids ...int64) ([]reconcile.Result, error) {
	ids = Distinct(ids)
	results := make([]reconcile.Result, 0, len(ids))
	orders := make([]int64, 0, len(ids))

	for _, id := range ids {
		res, err := r.Engine.ReconcileIn(ctx, idb, id)
		if err != nil {
			return results, fmt.Errorf("recompute consignment %d: %w", id, err)
		}
		results = append(results, res)

		orderID, err := projection.OrderForConsignment(ctx, idb, id)
		if err != nil {
			return results, err
		}
		orders = append(orders, orderID)
	}

	for _, orderID := range Distinct(orders) {
		if _, err := r.Projector.ProjectIn(ctx, idb, orderID); err != nil {
			return results, fmt.Errorf("project order %d: %w", orderID, err)
		}
	}
	return results, nil
}

// Distinct returns ids without duplicates or non-positive values, ascending.
func Distinct(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
