package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/confsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/confsync/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/confsync/internal/httpserver/mw"
)

func init() { Register("imminent", registerImminent) }

func registerImminent(r chi.Router, d deps.Deps) {
	if d.Imminent == nil || d.Store == nil {
		return
	}
	r.With(mw.Admin(d.AllowedCIDRS, d.AllowedHosts, d.TrustProxy, d.Logger)).Post("/api/notify/imminent", handlers.Imminent(d))
}
