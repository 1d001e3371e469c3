// Package projection maintains the earliest scheduled booking of each order.
package projection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"freightledger/infrastructure/metrics"
	"freightledger/infrastructure/sqlite"
	"freightledger/ledger"
	"freightledger/ledger/bookings"
	"freightledger/models"
)

// Earliest is the projected booking written onto an order. AccountID and
// Date are nil when the order has no dated, non-rejected booking.
type Earliest struct {
	OrderID       int64      `json:"order_id"`
	AccountID     *string    `json:"account_id"`
	Date          *time.Time `json:"date"`
	AppointmentID int64      `json:"appointment_id,omitempty"`
	LineID        int64      `json:"line_id,omitempty"`
}

// Projector writes each order's earliest booking.
type Projector struct {
	DB *sqlite.DB
}

func NewProjector(db *sqlite.DB) *Projector {
	return &Projector{DB: db}
}

// Project recomputes an order's earliest booking in its own transaction.
func (p *Projector) Project(ctx context.Context, orderID int64) (Earliest, error) {
	var out Earliest
	err := p.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		out, err = p.ProjectIn(ctx, tx, orderID)
		return err
	})
	return out, err
}

// ProjectIn recomputes an order's earliest booking inside the caller's scope.
func (p *Projector) ProjectIn(ctx context.Context, idb bun.IDB, orderID int64) (Earliest, error) {
	out := Earliest{OrderID: orderID}
	if err := ledger.ValidID("order", orderID); err != nil {
		return out, err
	}

	exists, err := idb.NewSelect().Model((*models.Order)(nil)).Where("id = ?", orderID).Exists(ctx)
	if err != nil {
		return out, fmt.Errorf("load order %d: %w", orderID, err)
	}
	if !exists {
		return out, ledger.NotFound("order", orderID)
	}

	lines, err := bookings.LinesForOrder(ctx, idb, orderID)
	if err != nil {
		return out, err
	}

	if best, ok := earliest(lines); ok {
		account := best.AccountID
		date := *best.ScheduledDate
		out.AccountID = &account
		out.Date = &date
		out.AppointmentID = best.AppointmentID
		out.LineID = best.LineID
	}

	if _, err := idb.NewUpdate().
		Model((*models.Order)(nil)).
		Set("earliest_booking_account = ?", out.AccountID).
		Set("earliest_booking_date = ?", out.Date).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", orderID).
		Exec(ctx); err != nil {
		return out, fmt.Errorf("write projection of order %d: %w", orderID, err)
	}

	if out.Date == nil {
		metrics.IncProjection("cleared")
	} else {
		metrics.IncProjection("set")
	}
	return out, nil
}

// earliest picks the dated line with the lowest day, breaking ties by
// appointment id and then line id.
func earliest(lines []bookings.LineView) (bookings.LineView, bool) {
	var (
		best  bookings.LineView
		found bool
	)
	for _, line := range lines {
		if line.ScheduledDate == nil {
			continue
		}
		if !found || before(line, best) {
			best = line
			found = true
		}
	}
	return best, found
}

func before(a, b bookings.LineView) bool {
	dayA, dayB := ledger.Day(*a.ScheduledDate), ledger.Day(*b.ScheduledDate)
	if !dayA.Equal(dayB) {
		return dayA.Before(dayB)
	}
	if a.AppointmentID != b.AppointmentID {
		return a.AppointmentID < b.AppointmentID
	}
	return a.LineID < b.LineID
}

// OrderForConsignment returns the order owning a consignment.
func OrderForConsignment(ctx context.Context, idb bun.IDB, consignmentID int64) (int64, error) {
	var orderID int64
	err := idb.NewSelect().
		Model((*models.Consignment)(nil)).
		Column("order_id").
		Where("id = ?", consignmentID).
		Limit(1).
		Scan(ctx, &orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ledger.NotFound("consignment", consignmentID)
	}
	if err != nil {
		return 0, fmt.Errorf("load order of consignment %d: %w", consignmentID, err)
	}
	return orderID, nil
}

// Load reads the stored projection of an order.
func (p *Projector) Load(ctx context.Context, orderID int64) (Earliest, error) {
	out := Earliest{OrderID: orderID}
	if err := ledger.ValidID("order", orderID); err != nil {
		return out, err
	}
	err := p.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var order models.Order
		err := tx.NewSelect().Model(&order).Where("id = ?", orderID).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.NotFound("order", orderID)
		}
		if err != nil {
			return err
		}
		out.AccountID = order.EarliestBookingAccount
		out.Date = order.EarliestBookingDate
		return nil
	})
	return out, err
}
