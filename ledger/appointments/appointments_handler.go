package appointments

import (
	"net/http"

	"freightledger/infrastructure/respond"
	"freightledger/ledger"
)

type rejectRequest struct {
	Rejected *bool `json:"rejected"`
}

type rejectedQtyRequest struct {
	RejectedQty *int64 `json:"rejected_qty"`
}

func CreateAppointmentCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in AppointmentInput
		if err := respond.Decode(r, &in); err != nil {
			respond.Error(w, r, err)
			return
		}
		appt, err := svc.Create(r.Context(), respond.Actor(r), in)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusCreated, appt)
	}
}

// RejectAppointmentCommandHandler sets the rejected flag; an empty body rejects.
func RejectAppointmentCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.PathID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		var req rejectRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, r, err)
			return
		}
		rejected := true
		if req.Rejected != nil {
			rejected = *req.Rejected
		}
		res, err := svc.SetRejected(r.Context(), respond.Actor(r), id, rejected)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, res)
	}
}

func RescheduleAppointmentCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.PathID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		var in ScheduleInput
		if err := respond.Decode(r, &in); err != nil {
			respond.Error(w, r, err)
			return
		}
		res, err := svc.Reschedule(r.Context(), respond.Actor(r), id, in)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, res)
	}
}

func DeleteAppointmentCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.PathID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		res, err := svc.Delete(r.Context(), respond.Actor(r), id)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, res)
	}
}

func CreateLineCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.PathID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		var in LineInput
		if err := respond.Decode(r, &in); err != nil {
			respond.Error(w, r, err)
			return
		}
		res, err := svc.CreateLine(r.Context(), respond.Actor(r), id, in)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusCreated, res)
	}
}

func UpdateLineCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.PathID(r, "lineID")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		var in LineInput
		if err := respond.Decode(r, &in); err != nil {
			respond.Error(w, r, err)
			return
		}
		res, err := svc.UpdateLine(r.Context(), respond.Actor(r), id, in)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, res)
	}
}

func SetRejectedQuantityCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.PathID(r, "lineID")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		var req rejectedQtyRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, r, err)
			return
		}
		if req.RejectedQty == nil {
			respond.Error(w, r, ledger.InvalidArgument("rejected_qty is required"))
			return
		}
		res, err := svc.SetRejectedQuantity(r.Context(), respond.Actor(r), id, *req.RejectedQty)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, res)
	}
}

func DeleteLineCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.PathID(r, "lineID")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		res, err := svc.DeleteLine(r.Context(), respond.Actor(r), id)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, res)
	}
}
