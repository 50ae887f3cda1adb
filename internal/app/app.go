package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/obe-backend/internal/data/db"
	"github.com/yungbote/obe-backend/internal/http"
	"github.com/yungbote/obe-backend/internal/observability"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services
	Metrics  *observability.Metrics
	Server   *http.Server

	dbService       *db.DatabaseService
	shutdownTracing func(context.Context) error
	cancel          context.CancelFunc
}

// New loads config from the environment and wires everything. Migrations run
// when migrate is true.
func New(ctx context.Context, migrate bool) (*App, error) {
	bootLog, err := logger.New("development")
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	bootLog.Info("Loading configuration...")
	cfg, err := LoadConfig(bootLog)
	if err != nil {
		bootLog.Sync()
		return nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return NewWithConfig(ctx, log, cfg, migrate)
}

func NewWithConfig(ctx context.Context, log *logger.Logger, cfg Config, migrate bool) (*App, error) {
	dbService, err := db.NewDatabaseService(cfg.DB, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if migrate {
		if err := dbService.AutoMigrateAll(); err != nil {
			_ = dbService.Close()
			log.Sync()
			return nil, fmt.Errorf("automigrate: %w", err)
		}
	}
	theDB := dbService.DB()

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}

	metrics := observability.NewMetrics()
	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(theDB, log, cfg, reposet, clients, metrics)
	if err != nil {
		clients.Close()
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}

	a := &App{
		Log:       log,
		DB:        theDB,
		Cfg:       cfg,
		Clients:   clients,
		Repos:     reposet,
		Services:  serviceset,
		Metrics:   metrics,
		dbService: dbService,
	}
	if sqlDB, err := theDB.DB(); err == nil {
		a.Server = wireServer(log, cfg, metrics, wireHandlers(log, sqlDB, serviceset))
	} else {
		a.Server = wireServer(log, cfg, metrics, wireHandlers(log, nil, serviceset))
	}
	return a, nil
}

// Start launches tracing and the background job driver. It is idempotent.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.shutdownTracing = observability.InitTracing(ctx, a.Log, a.Cfg.Tracing)
	if a.Cfg.MetricsEnabled {
		a.Metrics.StartJobQueueCollector(ctx, a.Log, a.DB, a.Cfg.QueueSample)
	}

	switch {
	case a.Services.TemporalRunner != nil:
		if err := a.Services.TemporalRunner.Start(ctx); err != nil {
			return fmt.Errorf("start temporal worker: %w", err)
		}
	case a.Services.JobWorker != nil:
		a.Services.JobWorker.Start(ctx)
	}
	return nil
}

// Run serves HTTP until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return errors.New("app not initialized")
	}
	a.Log.Info("Serving", "addr", a.Cfg.HTTPAddr, "recalc_mode", a.Cfg.Recalc.Mode, "temporal", a.Cfg.Temporal.Enabled())
	return a.Server.Run(ctx, a.Cfg.HTTPAddr, a.Cfg.ShutdownTimeout)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Services.JobWorker != nil {
		a.Services.JobWorker.Wait()
	}
	if a.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.shutdownTracing(ctx); err != nil {
			a.Log.Warn("Tracing shutdown failed", "error", err)
		}
		cancel()
	}
	a.Clients.Close()
	if a.dbService != nil {
		if err := a.dbService.Close(); err != nil {
			a.Log.Warn("Database close failed", "error", err)
		}
	}
	a.Log.Sync()
}
