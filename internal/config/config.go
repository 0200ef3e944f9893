package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request deadline on the admin surface (default: 60s)

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Schedule import
	ScheduleSource           string         // URL or file path of the schedule XML
	ImportInterval           time.Duration  // periodic re-import (default: 10m)
	FetchTimeout             time.Duration  // HTTP timeout when the source is a URL
	Timezone                 string         // zone used to build session start times (default: Europe/Rome)
	Location                 *time.Location // resolved Timezone
	GroupNotificationsByUser bool           // true => one OPEN_BOOKMARKS payload per user
	ChecksumBeforeDiff       bool           // true => digest persisted before the diff runs
	TrackAliasFile           string         // optional YAML overriding the track alias table
	ImportLockTTL            time.Duration  // lease of the cross-instance import lock in Redis
	Tracks                   TrackAliases   // resolved alias table

	// Imminent-start scan
	ImminentCron      string        // cron spec (default: every minute)
	ImminentLookahead time.Duration // window size (default: 5m)
	ImminentDryRun    bool          // compute but never enqueue

	// Storage
	StoreDriver string // "sqlite" | "memory"
	SQLitePath  string // path of the sqlite database file

	// Delivery queue
	QueueName       string // Redis list drained by the push worker
	AuditKey        string // capped Redis list of enqueued messages
	AuditMaxEntries int    // audit list cap

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	// Admin surface
	AllowedHosts    []string // optional, restrict access to specific Host headers
	AllowedCIDRS    []string // optional, restrict access to specific IP (e.g. "1.2.3.4, 5.6.7.8")
	TrustProxy      bool     // true => trust X-Forwarded-For headers
	ImportRateBurst int      // manual import calls allowed in a burst per client IP
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("CONFSYNC_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("CONFSYNC_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("CONFSYNC_REQUEST_TIMEOUT", 60*time.Second),

		// Logging
		LogLevel:  getenv("CONFSYNC_LOG_LEVEL", "info"),
		PrettyLog: mustBool("CONFSYNC_PRETTY_LOG", false),

		// Schedule import
		ScheduleSource:           requireEnv("CONFSYNC_SCHEDULE_SOURCE"),
		ImportInterval:           mustDuration("CONFSYNC_IMPORT_INTERVAL", 10*time.Minute),
		FetchTimeout:             mustDuration("CONFSYNC_FETCH_TIMEOUT", 15*time.Second),
		Timezone:                 getenv("CONFSYNC_TIMEZONE", "Europe/Rome"),
		GroupNotificationsByUser: mustBool("CONFSYNC_GROUP_NOTIFICATIONS_BY_USER", true),
		ChecksumBeforeDiff:       mustBool("CONFSYNC_CHECKSUM_BEFORE_DIFF", true),
		TrackAliasFile:           getenv("CONFSYNC_TRACK_ALIAS_FILE", ""),
		ImportLockTTL:            mustDuration("CONFSYNC_IMPORT_LOCK_TTL", 2*time.Minute),

		// Imminent-start scan
		ImminentCron:      getenv("CONFSYNC_IMMINENT_CRON", "* * * * *"),
		ImminentLookahead: mustDuration("CONFSYNC_IMMINENT_LOOKAHEAD", 5*time.Minute),
		ImminentDryRun:    mustBool("CONFSYNC_IMMINENT_DRY_RUN", false),

		// Storage
		StoreDriver: getenv("CONFSYNC_STORE_DRIVER", "sqlite"),
		SQLitePath:  getenv("CONFSYNC_SQLITE_PATH", "/app/data/confsync.db"),

		// Delivery queue
		QueueName:       getenv("CONFSYNC_QUEUE_NAME", "opencon_push_notification"),
		AuditKey:        getenv("CONFSYNC_AUDIT_KEY", "confsync:notifications:audit"),
		AuditMaxEntries: getenvInt("CONFSYNC_AUDIT_MAX_ENTRIES", 1000),

		// Redis settings
		RedisAddr:             requireEnv("CONFSYNC_REDIS_ADDR"),
		RedisUser:             getenv("CONFSYNC_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("CONFSYNC_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("CONFSYNC_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("CONFSYNC_REDIS_DB", 0),
		RedisDT:               mustDuration("CONFSYNC_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("CONFSYNC_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("CONFSYNC_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("CONFSYNC_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("CONFSYNC_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("CONFSYNC_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("CONFSYNC_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("CONFSYNC_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("CONFSYNC_REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts:    splitAndTrim(getenv("CONFSYNC_ALLOWED_HOSTS", "")),
		AllowedCIDRS:    parseAllowedIPs(getenv("CONFSYNC_ALLOWED_CIDRS", "")),
		TrustProxy:      mustBool("CONFSYNC_TRUST_PROXY", false),
		ImportRateBurst: getenvInt("CONFSYNC_IMPORT_RATE_BURST", 3),
	}

	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: CONFSYNC_REDIS_PASSWORD is required when CONFSYNC_REDIS_PASSWORD_REQUIRED=true")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid CONFSYNC_TIMEZONE %q: %v", cfg.Timezone, err))
	}
	cfg.Location = loc

	switch cfg.StoreDriver {
	case "sqlite", "memory":
	default:
		panic(fmt.Sprintf("❌ FATAL: Unsupported CONFSYNC_STORE_DRIVER %q (want sqlite or memory)", cfg.StoreDriver))
	}

	tracks, err := LoadTrackAliases(cfg.TrackAliasFile)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: %v", err))
	}
	cfg.Tracks = tracks

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
