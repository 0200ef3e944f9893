package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/confsync/internal/httpserver/deps"
)

type componentStatus struct {
	OK          bool   `json:"ok"`
	Conferences *int   `json:"conferences,omitempty"`
	Queue       string `json:"queue,omitempty"`
	Depth       *int64 `json:"depth,omitempty"`
	LastRun     string `json:"last_run,omitempty"`
	Changes     *int   `json:"changes,omitempty"`
	Enqueued    *int   `json:"enqueued,omitempty"`
	Impact      string `json:"impact,omitempty"`
	Error       string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Source     string                     `json:"source,omitempty"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		components := map[string]componentStatus{
			"redis":  checkRedis(ctx, d),
			"store":  checkStore(ctx, d),
			"queue":  checkQueue(ctx, d),
			"import": checkImport(ctx, d),
		}

		resp := infraResponse{
			Mode:       determineMode(components),
			Components: components,
		}
		if d.Importer != nil {
			resp.Source = d.Importer.Source()
		}
		writeJSON(d, w, http.StatusOK, resp)
	}
}

func determineMode(components map[string]componentStatus) string {
	if store, ok := components["store"]; ok && !store.OK {
		return "critical" // nothing to reconcile against
	}
	if redis, ok := components["redis"]; ok && !redis.OK {
		return "degraded" // imports run but notifications cannot be delivered
	}
	if imp, ok := components["import"]; ok && !imp.OK {
		return "degraded"
	}
	return "operational"
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{OK: false, Impact: "notifications-disabled", Error: "client not initialized"}
	}
	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{OK: false, Impact: "notifications-disabled", Error: "timeout"}
	}
	return componentStatus{OK: true}
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	if d.Store == nil {
		return componentStatus{OK: false, Error: "store not initialized"}
	}
	confs, err := d.Store.ListConferences(ctx)
	if err != nil {
		return componentStatus{OK: false, Error: err.Error()}
	}
	n := len(confs)
	return componentStatus{OK: true, Conferences: &n}
}

func checkQueue(ctx context.Context, d deps.Deps) componentStatus {
	if d.Queue == nil {
		return componentStatus{OK: false, Error: "queue not initialized"}
	}
	depth, err := d.Queue.Length(ctx)
	if err != nil {
		return componentStatus{OK: false, Queue: d.Queue.Name(), Error: err.Error()}
	}
	return componentStatus{OK: true, Queue: d.Queue.Name(), Depth: &depth}
}

// checkImport prefers the in-process reloader state and falls back to the
// status recorded in Redis by any instance.
func checkImport(ctx context.Context, d deps.Deps) componentStatus {
	if d.LastReload != nil {
		last := d.LastReload()
		if !last.At.IsZero() {
			st := componentStatus{
				OK:       last.Err == nil,
				LastRun:  last.At.Format("2006-01-02 15:04:05"),
				Changes:  &last.Summary.Changes,
				Enqueued: &last.Summary.Notifications.Enqueued,
			}
			if last.Err != nil {
				st.Error = last.Err.Error()
			}
			return st
		}
	}

	if d.Status == nil || d.Importer == nil {
		return componentStatus{OK: true, LastRun: "never"}
	}
	status, found, err := d.Status.Get(ctx, d.Importer.Source())
	if err != nil {
		return componentStatus{OK: false, Error: err.Error()}
	}
	if !found {
		return componentStatus{OK: true, LastRun: "never"}
	}
	return componentStatus{
		OK:       status.Error == "",
		LastRun:  status.FinishedAt.Format("2006-01-02 15:04:05"),
		Changes:  &status.Changes,
		Enqueued: &status.Enqueued,
		Error:    status.Error,
	}
}
