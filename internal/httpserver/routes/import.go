package routes

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/confsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/confsync/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/confsync/internal/httpserver/mw"
)

func init() { Register("import", registerImport) }

func registerImport(r chi.Router, d deps.Deps) {
	if d.Importer == nil {
		return
	}
	burst := d.ImportRateBurst
	if burst <= 0 {
		burst = 3
	}
	limit := mw.RateLimit(mw.RateLimitConfig{
		Burst:             burst,
		RefillPerIPPerMin: burst,
		MaxEntries:        1024,
		SweepInterval:     time.Minute,
		IdleTTL:           10 * time.Minute,
		TrustProxy:        d.TrustProxy,
		Logger:            d.Logger,
		Now:               d.TimeNow,
	})
	r.With(
		mw.Admin(d.AllowedCIDRS, d.AllowedHosts, d.TrustProxy, d.Logger),
		limit,
	).Post("/api/import", handlers.Import(d))
}
