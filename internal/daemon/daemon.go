package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eduguardian/guardian/internal/api"
	"github.com/eduguardian/guardian/internal/app/progression"
	"github.com/eduguardian/guardian/internal/domain"
	"github.com/eduguardian/guardian/internal/health"
	"github.com/eduguardian/guardian/internal/infra/aiclient"
	"github.com/eduguardian/guardian/internal/infra/jobs"
	"github.com/eduguardian/guardian/internal/infra/logger"
	"github.com/eduguardian/guardian/internal/infra/redislock"
	"github.com/eduguardian/guardian/internal/infra/sqlite"
)

// Daemon is the EduGuardian runtime. It wires together all services.
type Daemon struct {
	Config   Config
	Log      *logger.Logger
	DB       *sqlite.DB
	Engine   *progression.Engine
	Activity *progression.ActivityService
	AI       *progression.AIService
	Locker   *redislock.Locker // nil when running single-instance
	Jobs     *jobs.Runner
	Health   *health.Checker
	Server   *api.Server
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	// Open SQLite
	db, err := sqlite.OpenWith(cfg.Database.Dir, sqlite.Options{
		BusyTimeout: time.Duration(cfg.Database.BusyTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	d := &Daemon{Config: cfg, Log: log, DB: db}
	if err := d.wire(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Daemon) wire() error {
	cfg := d.Config
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Progression engine; the catalog is code-defined and mirrored to the DB.
	d.Engine = progression.NewEngine(d.DB, cfg.EngineConfig(), d.Log)
	catalog := d.Engine.Catalog().Definitions()
	if err := d.DB.SyncCatalog(ctx, catalog); err != nil {
		return fmt.Errorf("sync badge catalog: %w", err)
	}

	// Cross-instance user lock
	if cfg.Redis.Addr != "" {
		locker, err := redislock.Dial(ctx, redislock.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      parseDuration(cfg.Redis.LockTTL, 10*time.Second),
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		d.Locker = locker
		d.Engine.SetLocker(locker)
		d.Log.Info("using redis user lock", "addr", cfg.Redis.Addr)
	}

	// AI generation
	var gen domain.AIGenerator
	if cfg.AI.Endpoint != "" {
		client := aiclient.New(cfg.AI.Endpoint, parseDuration(cfg.AI.Timeout, 60*time.Second))
		gen = aiclient.NewBreaker(client, aiclient.DefaultBreakerConfig())
	} else {
		d.Log.Warn("no AI endpoint configured, using mock generator")
		gen = aiclient.NewMock()
	}
	d.Activity = progression.NewActivityService(d.DB)
	d.AI = progression.NewAIService(d.Engine, gen, d.Log)

	// Background jobs
	runner, err := jobs.New(d.Log)
	if err != nil {
		return err
	}
	interval := parseDuration(cfg.Jobs.CooldownSweepInterval, 10*time.Minute)
	if err := runner.ScheduleCooldownSweep(d.DB, interval, d.Engine.Config().Cooldown); err != nil {
		return err
	}
	d.Jobs = runner

	// Health checker
	d.Health = health.NewChecker(60*time.Second, d.Log).Add(
		health.PingCheck("database", d.DB),
		health.DataDirCheck(cfg.Database.Dir),
		health.CatalogCheck(d.DB, catalog),
	)
	if d.Locker != nil {
		d.Health.Add(health.PingCheck("redis", d.Locker))
	}

	// Initialize API server
	d.Server = api.NewServer(d.Engine, d.Activity, d.AI, d.DB, d.Health, d.Log, api.Options{
		CORSOrigins:    cfg.API.CORSOrigins,
		RequestTimeout: parseDuration(cfg.API.RequestTimeout, 30*time.Second),
		Metrics:        cfg.Telemetry.Prometheus,
	})
	return nil
}

// Serve starts the HTTP server and background services and blocks until
// ctx is cancelled or a termination signal arrives.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // AI generation can be slow
		IdleTimeout:  2 * time.Minute,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.Health.Run(ctx)
		return nil
	})

	d.Jobs.Start()

	g.Go(func() error {
		d.Log.Info("EduGuardian serving", "addr", "http://"+addr, "metrics", d.Config.Telemetry.Prometheus)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	d.Close()
	return err
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.Jobs != nil {
		if err := d.Jobs.Shutdown(); err != nil {
			d.Log.Warn("scheduler shutdown", "error", err)
		}
	}
	if d.Locker != nil {
		_ = d.Locker.Close()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
	if d.Log != nil {
		d.Log.Sync()
	}
}
