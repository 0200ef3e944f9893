package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/confsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/confsync/internal/imminent"
)

type imminentRequest struct {
	ConferenceID string     `json:"conference_id"`
	Now          *time.Time `json:"now"`
	DryRun       bool       `json:"dry_run"`
}

type imminentResponse struct {
	Now         time.Time                  `json:"now"`
	Conferences map[string]imminent.Result `json:"conferences"`
}

// Imminent runs the imminent-start scan for one or every conference.
func Imminent(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req imminentRequest
		if err := decodeOptional(r, &req); err != nil {
			writeJSON(d, w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "bad_request"})
			return
		}

		now := d.Now()
		if req.Now != nil {
			now = *req.Now
		}

		ids := []string{req.ConferenceID}
		if req.ConferenceID == "" {
			confs, err := d.Store.ListConferences(r.Context())
			if err != nil {
				writeError(d, w, err)
				return
			}
			ids = ids[:0]
			for _, c := range confs {
				ids = append(ids, c.ID)
			}
		}

		resp := imminentResponse{Now: now, Conferences: make(map[string]imminent.Result, len(ids))}
		for _, id := range ids {
			res, err := d.Imminent.Run(r.Context(), id, now, req.DryRun)
			if err != nil {
				writeError(d, w, err)
				return
			}
			resp.Conferences[id] = res
		}
		writeJSON(d, w, http.StatusOK, resp)
	}
}
