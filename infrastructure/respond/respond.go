// Package respond holds the JSON helpers shared by API handlers.
package respond

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"freightledger/infrastructure/audit"
	"freightledger/ledger"
)

// ActorHeader carries the opaque caller identity recorded in audit rows.
const ActorHeader = "X-Actor"

type errorBody struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", slog.Any("err", err))
	}
}

// Error maps ledger errors onto HTTP status codes.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("err", err),
		)
	}
	JSON(w, status, errorBody{Error: err.Error(), Retryable: ledger.IsRetryable(err)})
}

// Status returns the HTTP status for err.
func Status(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrNotConfigured):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrDataIntegrityGap):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrConcurrentWriteConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Actor returns the request actor, defaulting to the system actor.
func Actor(r *http.Request) string {
	return audit.NormalizeActor(r.Header.Get(ActorHeader))
}

// PathID parses a positive integer URL parameter.
func PathID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ledger.InvalidArgument("invalid %s %q", name, raw)
	}
	return id, nil
}

// Decode reads a JSON body into v. An empty body leaves v untouched.
func Decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return ledger.InvalidArgument("decode request body: %v", err)
	}
	return nil
}

// Limit parses the optional ?limit= query value.
func Limit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
