package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/confsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/confsync/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/confsync/internal/httpserver/mw"
)

func init() { Register("infra", registerInfra) }

func registerInfra(r chi.Router, d deps.Deps) {
	r.With(mw.Admin(d.AllowedCIDRS, d.AllowedHosts, d.TrustProxy, d.Logger)).Get("/api/infra", handlers.Infra(d))
}
