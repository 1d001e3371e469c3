package bookings

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"freightledger/ledger"
)

// LineView is one counted booking line: its appointment is not rejected.
type LineView struct {
	LineID            int64      `json:"line_id"`
	AppointmentID     int64      `json:"appointment_id"`
	ConsignmentID     int64      `json:"consignment_id"`
	AccountID         string     `json:"account_id"`
	EffectiveQuantity int64      `json:"effective_quantity"`
	ScheduledDate     *time.Time `json:"scheduled_date,omitempty"`
}

type lineRow struct {
	LineID        int64      `bun:"line_id"`
	AppointmentID int64      `bun:"appointment_id"`
	ConsignmentID int64      `bun:"consignment_id"`
	AccountID     string     `bun:"account_id"`
	EstimatedQty  int64      `bun:"estimated_qty"`
	RejectedQty   int64      `bun:"rejected_qty"`
	RequestedDate *time.Time `bun:"requested_date"`
	ConfirmedDate *time.Time `bun:"confirmed_date"`
}

func (r lineRow) view() LineView {
	v := LineView{
		LineID:            r.LineID,
		AppointmentID:     r.AppointmentID,
		ConsignmentID:     r.ConsignmentID,
		AccountID:         r.AccountID,
		EffectiveQuantity: r.EstimatedQty - r.RejectedQty,
	}
	scheduled := r.ConfirmedDate
	if scheduled == nil {
		scheduled = r.RequestedDate
	}
	if scheduled != nil {
		day := ledger.Day(*scheduled)
		v.ScheduledDate = &day
	}
	return v
}

const linesSelect = `
SELECT bl.id AS line_id, bl.appointment_id, bl.consignment_id, a.account_id,
       bl.estimated_qty, bl.rejected_qty, a.requested_date, a.confirmed_date
FROM booking_lines bl
JOIN appointments a ON a.id = bl.appointment_id
`

// LinesFor reads every counted line of a consignment. The full set is read on
// each call.
func LinesFor(ctx context.Context, idb bun.IDB, consignmentID int64) ([]LineView, error) {
	if err := ledger.ValidID("consignment", consignmentID); err != nil {
		return nil, err
	}
	var rows []lineRow
	if err := idb.NewRaw(linesSelect+`
WHERE bl.consignment_id = ?
  AND a.rejected = 0
ORDER BY bl.id ASC`, consignmentID).Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("read booking lines of consignment %d: %w", consignmentID, err)
	}
	return views(rows), nil
}

// LinesForOrder reads every counted line across all consignments of an order.
func LinesForOrder(ctx context.Context, idb bun.IDB, orderID int64) ([]LineView, error) {
	if err := ledger.ValidID("order", orderID); err != nil {
		return nil, err
	}
	var rows []lineRow
	if err := idb.NewRaw(linesSelect+`
JOIN consignments c ON c.id = bl.consignment_id
WHERE c.order_id = ?
  AND a.rejected = 0
ORDER BY bl.id ASC`, orderID).Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("read booking lines of order %d: %w", orderID, err)
	}
	return views(rows), nil
}

// ConsignmentsForAppointment returns the distinct consignments booked on an
// appointment, rejected or not.
func ConsignmentsForAppointment(ctx context.Context, idb bun.IDB, appointmentID int64) ([]int64, error) {
	ids := make([]int64, 0)
	if err := idb.NewRaw(`
SELECT DISTINCT consignment_id FROM booking_lines
WHERE appointment_id = ?
ORDER BY consignment_id ASC`, appointmentID).Scan(ctx, &ids); err != nil {
		return nil, fmt.Errorf("read consignments of appointment %d: %w", appointmentID, err)
	}
	return ids, nil
}

func views(rows []lineRow) []LineView {
	out := make([]LineView, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.view())
	}
	return out
}
