package reconcile

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"freightledger/infrastructure/respond"
)

func ReconcileConsignmentCommandHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.PathID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		res, err := engine.Reconcile(r.Context(), id)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, res)
	}
}

// RunFullCommandHandler runs a full pass synchronously and returns its report.
func RunFullCommandHandler(batch *Batch) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := batch.RunFull(r.Context(), respond.Actor(r))
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, report)
	}
}

func RunQueryHandler(batch *Batch) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := batch.LoadRun(r.Context(), chi.URLParam(r, "runID"))
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, report)
	}
}

func RunsQueryHandler(batch *Batch) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reports, err := batch.ListRuns(r.Context(), respond.Limit(r, 20))
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, reports)
	}
}
