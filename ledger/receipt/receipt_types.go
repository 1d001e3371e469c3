package receipt

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"freightledger/ledger"
	"freightledger/ledger/reconcile"
	"freightledger/models"
)

type LotInput struct {
	ConsignmentID int64  `json:"consignment_id"`
	LotCode       string `json:"lot_code"`
	Quantity      int64  `json:"quantity"`
	// ReceivedAt defaults to the time reference value when zero.
	ReceivedAt time.Time `json:"received_at"`
}

func (in LotInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.ConsignmentID, validation.Required, validation.Min(int64(1))),
		validation.Field(&in.LotCode, validation.Required, validation.Length(1, 64)),
		validation.Field(&in.Quantity, validation.Min(int64(0))),
	)
	if err != nil {
		return ledger.InvalidArgument("%s", err.Error())
	}
	return nil
}

type LotResult struct {
	Lot models.PalletLot `json:"lot"`
	// FirstLot is true when this receipt switched the consignment from its
	// estimate to actual capacity.
	FirstLot   bool               `json:"first_lot"`
	Recomputed []reconcile.Result `json:"recomputed"`
}

type EstimateResult struct {
	Consignment models.Consignment `json:"consignment"`
	Recomputed  []reconcile.Result `json:"recomputed"`
}
