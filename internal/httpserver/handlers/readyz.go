package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/confsync/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready  bool              `json:"ready"`
	Checks map[string]string `json:"checks"`
}

// Readyz reports ready when the store and Redis answer.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := readyzResponse{Ready: true, Checks: map[string]string{}}
		check := func(name string, ping func(context.Context) error) {
			if err := ping(ctx); err != nil {
				resp.Ready = false
				resp.Checks[name] = err.Error()
				return
			}
			resp.Checks[name] = "ok"
		}

		if d.StorePinger != nil {
			check("store", d.StorePinger.Ping)
		}
		if d.RedisClient != nil {
			check("redis", func(ctx context.Context) error { return d.RedisClient.Ping(ctx).Err() })
		}

		status := http.StatusOK
		if !resp.Ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(d, w, status, resp)
	}
}
