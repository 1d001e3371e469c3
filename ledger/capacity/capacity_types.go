package capacity

// Source is the authoritative quantity a consignment's bookings are measured
// against. It is either Estimated (before receipt) or Actual (one per lot).
type Source interface {
	Consignment() int64
	Qty() int64
	source()
}

// Estimated is the planned pallet count recorded on the consignment before any
// lot is received. Counters are stored on the consignment row.
type Estimated struct {
	ConsignmentID int64
	Quantity      int64
}

func (e Estimated) Consignment() int64 { return e.ConsignmentID }
func (e Estimated) Qty() int64         { return e.Quantity }
func (Estimated) source()              {}

// Actual is one received pallet lot. Counters are stored on the lot row.
type Actual struct {
	LotID         int64
	ConsignmentID int64
	Quantity      int64
}

func (a Actual) Consignment() int64 { return a.ConsignmentID }
func (a Actual) Qty() int64         { return a.Quantity }
func (Actual) source()              {}

// Counters are the two derived values persisted per capacity unit.
type Counters struct {
	Unbooked  int64 `json:"unbooked"`
	Remaining int64 `json:"remaining"`
}

// LotCounters are the stored counters of one pallet lot.
type LotCounters struct {
	LotID    int64    `json:"lot_id"`
	LotCode  string   `json:"lot_code"`
	Quantity int64    `json:"quantity"`
	Counters Counters `json:"counters"`
}

// ConsignmentCounters is the read view of every stored counter of a consignment.
// Estimate counters are kept for display after receipt but are no longer
// maintained once a lot exists.
type ConsignmentCounters struct {
	ConsignmentID    int64         `json:"consignment_id"`
	OrderID          int64         `json:"order_id"`
	EstimatedPallets *int64        `json:"estimated_pallets,omitempty"`
	Estimate         Counters      `json:"estimate"`
	Lots             []LotCounters `json:"lots"`
}
