package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/confsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/confsync/internal/logger"
	"github.com/MrSnakeDoc/confsync/internal/pipeline"
)

type importRequest struct {
	Force                    bool  `json:"force"`
	GroupNotificationsByUser *bool `json:"group_notifications_by_user"`
}

// Import runs a schedule import synchronously and returns its summary.
func Import(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req importRequest
		if err := decodeOptional(r, &req); err != nil {
			writeJSON(d, w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "bad_request"})
			return
		}

		d.Logger.Info("schedule import requested via endpoint",
			logger.String("remote_ip", r.RemoteAddr),
			logger.Bool("force", req.Force))

		sum, err := d.Importer.Import(r.Context(), pipeline.Request{
			Force:       req.Force,
			GroupByUser: req.GroupNotificationsByUser,
		})
		if err != nil {
			writeError(d, w, err)
			return
		}
		writeJSON(d, w, http.StatusOK, sum)
	}
}
