package receipt

import (
	"net/http"

	"freightledger/infrastructure/respond"
	"freightledger/ledger"
)

type estimateRequest struct {
	EstimatedPallets *int64 `json:"estimated_pallets"`
}

// ReceiveLotCommandHandler takes the consignment from the path; a body
// consignment_id is ignored.
func ReceiveLotCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.PathID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		var in LotInput
		if err := respond.Decode(r, &in); err != nil {
			respond.Error(w, r, err)
			return
		}
		in.ConsignmentID = id
		res, err := svc.ReceiveLot(r.Context(), respond.Actor(r), in)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusCreated, res)
	}
}

func UpdateEstimateCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.PathID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		var req estimateRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, r, err)
			return
		}
		if req.EstimatedPallets == nil {
			respond.Error(w, r, ledger.InvalidArgument("estimated_pallets is required"))
			return
		}
		res, err := svc.UpdateEstimate(r.Context(), respond.Actor(r), id, *req.EstimatedPallets)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, res)
	}
}
