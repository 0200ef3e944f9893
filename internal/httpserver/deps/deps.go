package deps

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/confsync/internal/domain"
	"github.com/MrSnakeDoc/confsync/internal/imminent"
	"github.com/MrSnakeDoc/confsync/internal/logger"
	"github.com/MrSnakeDoc/confsync/internal/pipeline"
	"github.com/MrSnakeDoc/confsync/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/confsync/internal/store/redis"
)

// Importer runs a schedule import on request.
type Importer interface {
	Source() string
	Import(ctx context.Context, req pipeline.Request) (pipeline.Summary, error)
}

// ImminentRunner runs the imminent-start scan for one conference.
type ImminentRunner interface {
	Run(ctx context.Context, conferenceID string, now time.Time, dryRun bool) (imminent.Result, error)
}

// ConferenceStore is the read side the admin surface needs.
type ConferenceStore interface {
	ListConferences(ctx context.Context) ([]domain.Conference, error)
}

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueueInspector exposes the delivery queue depth.
type QueueInspector interface {
	Name() string
	Length(ctx context.Context) (int64, error)
}

// StatusReader returns the last recorded import outcome of a source.
type StatusReader interface {
	Get(ctx context.Context, source string) (redisstore.ImportStatus, bool, error)
}

type Deps struct {
	Logger          logger.Logger
	StartTime       time.Time
	Version         string
	Commit          string
	BuildDate       string
	GoVersion       string
	TimeNow         func() time.Time         // for testing, defaults to time.Now
	AllowedHosts    []string                 // Host headers allowed to access the server
	AllowedCIDRS    []string                 // IPs allowed to access the admin endpoints
	TrustProxy      bool                     // true if running behind a trusted reverse proxy (e.g., cloudflared)
	ImportRateBurst int                      // manual imports allowed in a burst per client IP
	RedisClient     *redis.Client            // Redis client connection
	Store           ConferenceStore          // schedule persistence
	StorePinger     Pinger                   // nil when the driver has nothing to ping
	Importer        Importer                 // synchronous import for POST /api/import
	Imminent        ImminentRunner           // imminent-start notifier
	Queue           QueueInspector           // delivery queue
	Status          StatusReader             // last import outcome
	LastReload      func() scheduler.LastRun // periodic reloader state, nil when not running
	ImportTrigger   chan struct{}            // Channel to trigger a background import
}

// Now returns TimeNow() or time.Now().
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
