package capacity

import (
	"net/http"

	"freightledger/infrastructure/respond"
	"freightledger/infrastructure/sqlite"
)

func CountersQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.PathID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		counters, err := LoadCounters(r.Context(), db, id)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, counters)
	}
}
