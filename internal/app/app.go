package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/confsync/internal/config"
	"github.com/MrSnakeDoc/confsync/internal/httpserver"
	"github.com/MrSnakeDoc/confsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/confsync/internal/imminent"
	"github.com/MrSnakeDoc/confsync/internal/logger"
	"github.com/MrSnakeDoc/confsync/internal/notify"
	"github.com/MrSnakeDoc/confsync/internal/pipeline"
	"github.com/MrSnakeDoc/confsync/internal/reconcile"
	"github.com/MrSnakeDoc/confsync/internal/redis"
	"github.com/MrSnakeDoc/confsync/internal/scheduler"
	"github.com/MrSnakeDoc/confsync/internal/sources/schedule"
	"github.com/MrSnakeDoc/confsync/internal/store"
	"github.com/MrSnakeDoc/confsync/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/confsync/internal/store/redis"
	"github.com/MrSnakeDoc/confsync/internal/store/sqlite"
	"github.com/MrSnakeDoc/confsync/internal/utils"
	"github.com/MrSnakeDoc/confsync/internal/version"
)

// Services is the wired core shared by the server and the one-shot commands.
type Services struct {
	Config   *config.Config
	Logger   logger.Logger
	Redis    *goredis.Client
	Store    store.Store
	Queue    *redisstore.Queue
	Status   *redisstore.StatusStore
	Importer *pipeline.Importer
	Imminent *imminent.Notifier
}

// Wire connects Redis, opens the store and builds the pipeline.
func Wire(ctx context.Context, cfg *config.Config, log logger.Logger) (*Services, error) {
	log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	redisClient, err := redis.New(ctx, redis.OptionsFromConfig(cfg), log)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Info("Redis initialized successfully")

	st, err := openStore(ctx, cfg)
	if err != nil {
		_ = redisClient.Close()
		return nil, err
	}
	log.Info("store opened",
		logger.String("driver", cfg.StoreDriver),
		logger.String("path", cfg.SQLitePath))

	queue := redisstore.NewQueue(redisClient, cfg.QueueName,
		redisstore.WithAudit(cfg.AuditKey, cfg.AuditMaxEntries))
	status := redisstore.NewStatusStore(redisClient, 0)

	planner := notify.NewPlanner(st, log, cfg.Location)
	notifier := notify.NewService(planner, queue, log)

	importer := pipeline.NewImporter(
		schedule.NewLoader(cfg.ScheduleSource, cfg.FetchTimeout),
		schedule.NewParser(cfg.Tracks, cfg.Location),
		reconcile.New(st, log, cfg.Tracks.Default),
		notifier,
		st,
		log,
		pipeline.Options{
			GroupByUser:        cfg.GroupNotificationsByUser,
			ChecksumBeforeDiff: cfg.ChecksumBeforeDiff,
		},
	).WithStatus(status).
		WithGuard(redisstore.NewImportLocker(redisClient, cfg.ImportLockTTL))

	return &Services{
		Config:   cfg,
		Logger:   log,
		Redis:    redisClient,
		Store:    st,
		Queue:    queue,
		Status:   status,
		Importer: importer,
		Imminent: imminent.New(st, queue, log, cfg.ImminentLookahead, cfg.Location),
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.StoreDriver == "memory" {
		return memory.New(), nil
	}
	st, err := sqlite.Open(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// Close releases the store and the Redis client.
func (s *Services) Close() {
	utils.CloseLogged(s.Store, s.Logger, "store")
	if s.Redis != nil {
		utils.CloseLogged(s.Redis, s.Logger, "redis")
	}
}

type App struct {
	cfg      *config.Config
	logger   logger.Logger
	services *Services
	server   *httpserver.Server
	reloader *scheduler.ScheduleReloader
	scanner  *scheduler.ImminentScanner
}

func New(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	svc, err := Wire(ctx, cfg, loggerClient)
	if err != nil {
		return nil, err
	}

	// Create manual import trigger channel
	importTrigger := make(chan struct{}, 1)

	reloader := scheduler.NewScheduleReloader(
		svc.Importer,
		loggerClient,
		cfg.ImportInterval,
		importTrigger,
	)

	scanner := scheduler.NewImminentScanner(
		svc.Store,
		svc.Imminent,
		loggerClient,
		cfg.ImminentCron,
		cfg.ImminentDryRun,
	)

	d := deps.Deps{
		Logger:          loggerClient,
		StartTime:       time.Now(),
		Version:         version.Version,
		Commit:          version.Commit,
		BuildDate:       version.BuildDate,
		GoVersion:       version.GoVersion,
		TimeNow:         time.Now,
		AllowedHosts:    cfg.AllowedHosts,
		AllowedCIDRS:    cfg.AllowedCIDRS,
		TrustProxy:      cfg.TrustProxy,
		ImportRateBurst: cfg.ImportRateBurst,
		RedisClient:     svc.Redis,
		Store:           svc.Store,
		Importer:        svc.Importer,
		Imminent:        svc.Imminent,
		Queue:           svc.Queue,
		Status:          svc.Status,
		LastReload:      reloader.Last,
		ImportTrigger:   importTrigger,
	}
	if p, ok := svc.Store.(deps.Pinger); ok {
		d.StorePinger = p
	}

	return &App{
		cfg:      cfg,
		logger:   loggerClient,
		services: svc,
		server:   httpserver.New(cfg, loggerClient, d),
		reloader: reloader,
		scanner:  scanner,
	}, nil
}

// Serve loads the configuration, wires the app and runs it until SIGINT/SIGTERM.
func Serve() error {
	cfg := config.Load()
	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
	defer func() { _ = loggerClient.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := New(ctx, cfg, loggerClient)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("🚀 Starting confsync v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("confsync %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)
	defer a.services.Close()

	// Start schedule reloader (imports once, then keeps refreshing)
	a.reloader.Start(ctx)
	a.logger.Info("schedule reloader started",
		logger.String("source", a.services.Importer.Source()),
		logger.Duration("interval", a.cfg.ImportInterval))

	if err := a.scanner.Start(ctx); err != nil {
		a.reloader.Stop()
		return fmt.Errorf("failed to start imminent scanner: %w", err)
	}
	a.logger.Info("imminent scanner started",
		logger.String("cron", a.cfg.ImminentCron),
		logger.Duration("lookahead", a.cfg.ImminentLookahead),
		logger.Bool("dry_run", a.cfg.ImminentDryRun))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	a.scanner.Stop()
	a.reloader.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	if runErr == nil {
		a.logger.Info("✅ confsync stopped cleanly")
	}
	return runErr
}
