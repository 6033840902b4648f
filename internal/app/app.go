// Package app assembles the store, event bus and services from a Config.
// Both binaries build on it.
package app

import (
	"database/sql"
	"fmt"

	"github.com/gin-gonic/gin"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"studytrack/backend/internal/config"
	"studytrack/backend/internal/db"
	"studytrack/backend/internal/events"
	"studytrack/backend/internal/metrics"
	"studytrack/backend/internal/middleware"
	"studytrack/backend/internal/repository"
	"studytrack/backend/internal/router"
	"studytrack/backend/internal/service"
)

type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	DB       *sql.DB
	Dialect  db.Dialect
	Bus      *events.Bus
	Services router.Services

	nc   *nats.Conn
	nats *natsserver.Server
}

type Options struct {
	// WithBus connects to NATS_URL, or starts an embedded server when it is
	// empty. The CLI runs without one.
	WithBus bool
	// Migrate applies pending migrations after opening the store.
	Migrate bool
}

func New(cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}

	database, dialect, err := db.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.DB = database
	a.Dialect = dialect

	if opts.Migrate {
		applied, err := db.RunMigrations(database, dialect, cfg.MigrationsDir)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		for _, name := range applied {
			logger.Info("migration applied", zap.String("name", name))
		}
	}

	var publisher events.Publisher = events.Nop{}
	if opts.WithBus {
		if err := a.connectBus(); err != nil {
			a.Close()
			return nil, err
		}
		publisher = a.Bus
	}

	rt := service.Runtime{
		Logger:   logger,
		Metrics:  a.Metrics,
		Location: cfg.Location(),
	}

	users := repository.NewUserRepository(database, dialect)
	timers := repository.NewTimerRepository(database, dialect)
	sessions := repository.NewSessionRepository(database, dialect)
	subjects := repository.NewSubjectRepository(database, dialect)
	activities := repository.NewActivityRepository(database, dialect)
	progress := service.NewProgressService(rt, users, sessions, activities)

	timerService := service.NewTimerService(rt, timers, sessions, subjects, users, progress, publisher)

	a.Services = router.Services{
		Auth:     service.NewAuthService(rt, users, timers, cfg.JWTSecret, cfg.TokenTTL),
		Users:    service.NewUserService(rt, users, progress, timerService),
		Subjects: service.NewSubjectService(rt, subjects),
		Timer:    timerService,
		Sessions: service.NewSessionService(rt, sessions),
		Stats:    service.NewStatsService(rt, sessions, subjects),
		Goals:    service.NewGoalService(rt, users, sessions, activities, progress),
	}
	return a, nil
}

func (a *App) connectBus() error {
	url := a.Config.NATSURL
	if url == "" {
		srv, err := events.StartEmbedded("127.0.0.1", -1)
		if err != nil {
			return fmt.Errorf("start embedded nats: %w", err)
		}
		a.nats = srv
		url = srv.ClientURL()
		a.Logger.Info("embedded nats started", zap.String("url", url))
	}

	nc, err := events.Connect(url, a.Logger)
	if err != nil {
		return err
	}
	a.nc = nc
	a.Bus = events.NewBus(nc, a.Logger)
	return nil
}

// Router builds the HTTP engine over the assembled services.
func (a *App) Router() *gin.Engine {
	opts := router.Options{
		CORS: middleware.CORSConfig{
			Origins: a.Config.CORSOrigins,
			Headers: a.Config.CORSHeaders,
			MaxAge:  a.Config.CORSMaxAge,
		},
		AuthRateLimit: a.Config.AuthRateLimit,
		Metrics:       a.Metrics,
		Logger:        a.Logger,
	}
	if a.Bus != nil {
		opts.Subscriber = a.Bus
	}
	return router.New(a.Services, opts)
}

// Close releases the bus and the store.
func (a *App) Close() {
	if a.nc != nil {
		a.nc.Close()
	}
	if a.nats != nil {
		a.nats.Shutdown()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn("database close failed", zap.Error(err))
		}
	}
}
