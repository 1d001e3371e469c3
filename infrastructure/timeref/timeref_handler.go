package timeref

import (
	"fmt"
	"net/http"
	"time"

	"freightledger/infrastructure/respond"
	"freightledger/ledger"
)

type clockView struct {
	CurrentAt time.Time `json:"current_at"`
	Today     string    `json:"today"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by"`
}

type setRequest struct {
	Value string `json:"value"`
}

type advanceRequest struct {
	Minutes *int `json:"minutes"`
}

// ParseLiteral accepts RFC 3339 timestamps and YYYY-MM-DD days.
func ParseLiteral(value string) (time.Time, error) {
	t, err := ledger.ParseTime(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("time reference value: %w", err)
	}
	return t, nil
}

func ClockQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		row, err := svc.Snapshot(r.Context())
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, clockView{
			CurrentAt: row.CurrentAt.UTC(),
			Today:     ledger.Day(row.CurrentAt).Format(time.DateOnly),
			Version:   row.Version,
			UpdatedAt: row.UpdatedAt.UTC(),
			UpdatedBy: row.UpdatedBy,
		})
	}
}

func SetClockCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, r, err)
			return
		}
		literal, err := ParseLiteral(req.Value)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		value, err := svc.Set(r.Context(), respond.Actor(r), literal)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, map[string]time.Time{"current_at": value})
	}
}

// AdvanceClockCommandHandler advances by "minutes", or by the configured
// increment when the body omits it.
func AdvanceClockCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req advanceRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, r, err)
			return
		}
		var (
			value time.Time
			err   error
		)
		if req.Minutes == nil {
			value, err = svc.AdvanceDefault(r.Context(), respond.Actor(r))
		} else {
			value, err = svc.Advance(r.Context(), respond.Actor(r), *req.Minutes)
		}
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, map[string]time.Time{"current_at": value})
	}
}

func ClockHistoryQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.History(r.Context(), respond.Limit(r, 50))
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, rows)
	}
}
