package appointments

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"freightledger/ledger"
	"freightledger/ledger/reconcile"
	"freightledger/models"
)

type AppointmentInput struct {
	AccountID     string     `json:"account_id"`
	RequestedDate *time.Time `json:"requested_date"`
	ConfirmedDate *time.Time `json:"confirmed_date"`
}

func (in AppointmentInput) Validate() error {
	return invalid(validation.ValidateStruct(&in,
		validation.Field(&in.AccountID, validation.Required, validation.Length(1, 64)),
	))
}

// UnmarshalJSON accepts dates as YYYY-MM-DD or RFC 3339.
func (in *AppointmentInput) UnmarshalJSON(data []byte) error {
	var raw struct {
		AccountID     string  `json:"account_id"`
		RequestedDate *string `json:"requested_date"`
		ConfirmedDate *string `json:"confirmed_date"`
	}
	if err := decodeStrict(data, &raw); err != nil {
		return err
	}
	requested, confirmed, err := parseDates(raw.RequestedDate, raw.ConfirmedDate)
	if err != nil {
		return err
	}
	*in = AppointmentInput{AccountID: raw.AccountID, RequestedDate: requested, ConfirmedDate: confirmed}
	return nil
}

type ScheduleInput struct {
	RequestedDate *time.Time `json:"requested_date"`
	ConfirmedDate *time.Time `json:"confirmed_date"`
}

// UnmarshalJSON accepts dates as YYYY-MM-DD or RFC 3339.
func (in *ScheduleInput) UnmarshalJSON(data []byte) error {
	var raw struct {
		RequestedDate *string `json:"requested_date"`
		ConfirmedDate *string `json:"confirmed_date"`
	}
	if err := decodeStrict(data, &raw); err != nil {
		return err
	}
	requested, confirmed, err := parseDates(raw.RequestedDate, raw.ConfirmedDate)
	if err != nil {
		return err
	}
	*in = ScheduleInput{RequestedDate: requested, ConfirmedDate: confirmed}
	return nil
}

type LineInput struct {
	ConsignmentID int64 `json:"consignment_id"`
	EstimatedQty  int64 `json:"estimated_qty"`
	RejectedQty   int64 `json:"rejected_qty"`
}

// Validate checks quantities are non-negative. RejectedQty above EstimatedQty
// is accepted; the effective quantity then goes negative.
func (in LineInput) Validate() error {
	return invalid(validation.ValidateStruct(&in,
		validation.Field(&in.ConsignmentID, validation.Required, validation.Min(int64(1))),
		validation.Field(&in.EstimatedQty, validation.Min(int64(0))),
		validation.Field(&in.RejectedQty, validation.Min(int64(0))),
	))
}

type AppointmentResult struct {
	Appointment models.Appointment `json:"appointment"`
	Recomputed  []reconcile.Result `json:"recomputed"`
}

type LineResult struct {
	Line       models.BookingLine `json:"line"`
	Recomputed []reconcile.Result `json:"recomputed"`
}

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return ledger.InvalidArgument("%s", err.Error())
}

func day(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := ledger.Day(*t)
	return &d
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func parseDates(requested, confirmed *string) (*time.Time, *time.Time, error) {
	r, err := parseDate(requested)
	if err != nil {
		return nil, nil, err
	}
	c, err := parseDate(confirmed)
	if err != nil {
		return nil, nil, err
	}
	return r, c, nil
}

// parseDate treats null and "" as no date.
func parseDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := ledger.ParseTime(*raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
