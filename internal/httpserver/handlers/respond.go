package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/confsync/internal/domain"
	"github.com/MrSnakeDoc/confsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/confsync/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(d deps.Deps, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		d.Logger.Debug("failed to write response", logger.Error(err))
	}
}

// writeError maps domain errors to HTTP statuses.
func writeError(d deps.Deps, w http.ResponseWriter, err error) {
	status, kind := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, domain.ErrMalformedDocument):
		status, kind = http.StatusUnprocessableEntity, "malformed_document"
	case errors.Is(err, domain.ErrUpstreamFetch):
		status, kind = http.StatusBadGateway, "upstream_fetch"
	case errors.Is(err, domain.ErrDeliveryEnqueue):
		status, kind = http.StatusServiceUnavailable, "delivery_enqueue"
	case errors.Is(err, domain.ErrImportInProgress):
		status, kind = http.StatusConflict, "import_in_progress"
	case errors.Is(err, domain.ErrNotFound):
		status, kind = http.StatusNotFound, "not_found"
	}
	writeJSON(d, w, status, errorResponse{Error: err.Error(), Kind: kind})
}

// decodeOptional decodes a JSON body into v; an empty body keeps v as is.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
