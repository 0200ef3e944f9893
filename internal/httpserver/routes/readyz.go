package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/confsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/confsync/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/confsync/internal/httpserver/mw"
)

func init() { Register("readyz", registerReadyz) }

func registerReadyz(r chi.Router, d deps.Deps) {
	r.With(mw.Admin(d.AllowedCIDRS, nil, d.TrustProxy, d.Logger)).Get("/readyz", handlers.Readyz(d))
}
