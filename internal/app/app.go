package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/coursegen-backend/internal/data/db"
	httpserver "github.com/yungbote/coursegen-backend/internal/http"
	"github.com/yungbote/coursegen-backend/internal/platform/envutil"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
	"github.com/yungbote/coursegen-backend/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Services Services
	Hub      *realtime.Hub
	Server   *httpserver.Server

	dbService *db.Service
	clients   *Clients
	cancel    context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	logMode := "production"
	if envutil.Bool("DEV_MODE", false) {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	dbService, err := db.OpenURI(log, cfg.DatabaseURI)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := db.AutoMigrateAll(dbService.DB()); err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	theDB := dbService.DB()

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}

	hub := realtime.NewHub(log)
	hub.UseBus(clients.Bus)

	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(theDB, log, cfg, reposet, clients, hub)
	if err != nil {
		clients.Close(ctx)
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}
	middleware := wireMiddleware(log, cfg)
	handlerset := wireHandlers(theDB, log, cfg, serviceset, middleware.Auth, hub)

	return &App{
		Log:       log,
		DB:        theDB,
		Cfg:       cfg,
		Services:  serviceset,
		Hub:       hub,
		Server:    wireServer(log, cfg, handlerset, middleware),
		dbService: dbService,
		clients:   clients,
	}, nil
}

// Start launches the bus forwarder and the job workers.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.Hub.StartForwarder(ctx); err != nil {
		cancel()
		a.cancel = nil
		return fmt.Errorf("start event forwarder: %w", err)
	}
	a.Services.Runner.Start(ctx)
	return nil
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("HTTP server listening", "port", a.Cfg.Port)
	return a.Server.Run()
}

// Shutdown stops accepting requests, drains the workers and closes clients.
func (a *App) Shutdown(ctx context.Context) {
	if a == nil {
		return
	}
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			a.Log.Warn("HTTP shutdown", "error", err)
		}
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Services.Runner != nil {
		a.Services.Runner.Stop()
	}
	a.clients.Close(ctx)
	if a.dbService != nil {
		_ = a.dbService.Close()
	}
	a.Log.Sync()
}
