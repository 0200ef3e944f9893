package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/confsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/confsync/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/confsync/internal/httpserver/mw"
)

func init() { Register("reload", registerReload) }

func registerReload(r chi.Router, d deps.Deps) {
	if d.ImportTrigger == nil {
		return
	}
	r.With(mw.Admin(d.AllowedCIDRS, d.AllowedHosts, d.TrustProxy, d.Logger)).Post("/api/reload", handlers.Reload(d))
}
