package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Order groups the consignments placed by one customer order.
type Order struct {
	bun.BaseModel `json:"-" bun:"table:orders,alias:o"`

	ID                     int64      `bun:"id,pk,autoincrement" json:"id"`
	Reference              string     `bun:"reference,notnull" json:"reference"`
	EarliestBookingAccount *string    `bun:"earliest_booking_account" json:"earliest_booking_account,omitempty"`
	EarliestBookingDate    *time.Time `bun:"earliest_booking_date" json:"earliest_booking_date,omitempty"`
	CreatedAt              time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt              time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// Consignment is one order-detail line. It also holds the estimate counters
// used until the first pallet lot is received.
type Consignment struct {
	bun.BaseModel `json:"-" bun:"table:consignments,alias:c"`

	ID               int64     `bun:"id,pk,autoincrement" json:"id"`
	OrderID          int64     `bun:"order_id,notnull" json:"order_id"`
	SKU              string    `bun:"sku,notnull" json:"sku"`
	EstimatedPallets *int64    `bun:"estimated_pallets" json:"estimated_pallets,omitempty"`
	UnbookedQty      int64     `bun:"unbooked_qty,notnull,default:0" json:"unbooked_qty"`
	RemainingQty     int64     `bun:"remaining_qty,notnull,default:0" json:"remaining_qty"`
	CreatedAt        time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt        time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// PalletLot is a physical lot created when a consignment is received.
type PalletLot struct {
	bun.BaseModel `json:"-" bun:"table:pallet_lots,alias:pl"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	ConsignmentID int64     `bun:"consignment_id,notnull" json:"consignment_id"`
	LotCode       string    `bun:"lot_code,notnull" json:"lot_code"`
	Quantity      int64     `bun:"quantity,notnull" json:"quantity"`
	UnbookedQty   int64     `bun:"unbooked_qty,notnull,default:0" json:"unbooked_qty"`
	RemainingQty  int64     `bun:"remaining_qty,notnull,default:0" json:"remaining_qty"`
	ReceivedAt    time.Time `bun:"received_at,notnull" json:"received_at"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// Appointment is an outbound delivery slot owning booking lines.
type Appointment struct {
	bun.BaseModel `json:"-" bun:"table:appointments,alias:a"`

	ID            int64      `bun:"id,pk,autoincrement" json:"id"`
	AccountID     string     `bun:"account_id,notnull" json:"account_id"`
	RequestedDate *time.Time `bun:"requested_date" json:"requested_date,omitempty"`
	ConfirmedDate *time.Time `bun:"confirmed_date" json:"confirmed_date,omitempty"`
	Rejected      bool       `bun:"rejected,notnull,default:false" json:"rejected"`
	CreatedAt     time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// ScheduledDate returns the confirmed date if set, else the requested date.
func (a Appointment) ScheduledDate() *time.Time {
	if a.ConfirmedDate != nil {
		return a.ConfirmedDate
	}
	return a.RequestedDate
}

// BookingLine claims part of a consignment on an appointment.
type BookingLine struct {
	bun.BaseModel `json:"-" bun:"table:booking_lines,alias:bl"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	AppointmentID int64     `bun:"appointment_id,notnull" json:"appointment_id"`
	ConsignmentID int64     `bun:"consignment_id,notnull" json:"consignment_id"`
	EstimatedQty  int64     `bun:"estimated_qty,notnull" json:"estimated_qty"`
	RejectedQty   int64     `bun:"rejected_qty,notnull,default:0" json:"rejected_qty"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// EffectiveQty is the booked quantity net of rejections. It may exceed capacity.
func (l BookingLine) EffectiveQty() int64 {
	return l.EstimatedQty - l.RejectedQty
}

// TimeReference is the single persisted notion of the current business time.
type TimeReference struct {
	bun.BaseModel `json:"-" bun:"table:time_reference,alias:tr"`

	ID        int64     `bun:"id,pk" json:"id"`
	CurrentAt time.Time `bun:"current_at,notnull" json:"current_at"`
	Version   int64     `bun:"version,notnull" json:"version"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
	UpdatedBy string    `bun:"updated_by,notnull" json:"updated_by"`
}

// ReconcileRun is the stored summary of one full reconciliation pass.
type ReconcileRun struct {
	bun.BaseModel `json:"-" bun:"table:reconcile_runs,alias:rr"`

	ID         string    `bun:"id,pk" json:"id"`
	Actor      string    `bun:"actor,notnull" json:"actor"`
	Processed  int       `bun:"processed,notnull" json:"processed"`
	Failed     int       `bun:"failed,notnull" json:"failed"`
	StartedAt  time.Time `bun:"started_at,notnull" json:"started_at"`
	FinishedAt time.Time `bun:"finished_at,notnull" json:"finished_at"`
}

// ReconcileFailure records one consignment that could not be reconciled in a run.
type ReconcileFailure struct {
	bun.BaseModel `json:"-" bun:"table:reconcile_failures,alias:rf"`

	ID            int64  `bun:"id,pk,autoincrement" json:"id"`
	RunID         string `bun:"run_id,notnull" json:"run_id"`
	ConsignmentID int64  `bun:"consignment_id,notnull" json:"consignment_id"`
	Reason        string `bun:"reason,notnull" json:"reason"`
}

// AuditLog captures immutable change history for key operations.
type AuditLog struct {
	bun.BaseModel `json:"-" bun:"table:audit_logs,alias:al"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	Actor      string    `bun:"actor,notnull" json:"actor"`
	Action     string    `bun:"action,notnull" json:"action"`
	EntityType string    `bun:"entity_type,notnull" json:"entity_type"`
	EntityID   string    `bun:"entity_id,notnull" json:"entity_id"`
	BeforeJSON string    `bun:"before_json" json:"before_json"`
	AfterJSON  string    `bun:"after_json" json:"after_json"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
