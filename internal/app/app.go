package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/portakall/retromeet/internal/http"
	"github.com/portakall/retromeet/internal/observability"
	"github.com/portakall/retromeet/internal/platform/logger"
	"github.com/portakall/retromeet/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services
	SSEHub   *realtime.SSEHub
	Server   *http.Server

	ctx          context.Context
	cancel       context.CancelFunc
	started      bool
	otelShutdown func(context.Context) error
}

// New loads configuration and wires every layer. The caller owns the
// returned App and must Close it.
func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	observability.Init(log)
	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel)

	appCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	fail := func(err error) (*App, error) {
		cancel()
		_ = otelShutdown(context.Background())
		log.Sync()
		return nil, err
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		return fail(err)
	}
	hub := realtime.NewSSEHub(log)
	reposet := wireRepos(clients.DB, log)
	serviceset, err := wireServices(appCtx, clients.DB, log, cfg, reposet, clients, hub)
	if err != nil {
		clients.Close()
		return fail(err)
	}
	handlerset := wireHandlers(log, clients.DB, serviceset, hub)

	return &App{
		Log:          log,
		Cfg:          cfg,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		SSEHub:       hub,
		Server:       wireServer(log, cfg, handlerset),
		ctx:          appCtx,
		cancel:       cancel,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background loops the API needs: the realtime bus
// forwarder and the metrics endpoint.
func (a *App) Start() error {
	if a == nil || a.started {
		return nil
	}
	if a.Clients.Bus != nil {
		if err := a.Clients.Bus.StartForwarder(a.ctx, a.SSEHub.Broadcast); err != nil {
			return fmt.Errorf("start SSE forwarder: %w", err)
		}
	}
	if m := observability.Current(); m != nil {
		m.StartServer(a.ctx, a.Log, a.Cfg.MetricsAddr)
		if a.Clients.Redis != nil {
			m.StartRedisCollector(a.ctx, a.Log, a.Clients.Redis)
		}
	}
	a.started = true
	return nil
}

// Run serves the HTTP API until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	addr := a.Cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	a.Log.Info("HTTP server listening", "addr", addr)
	return a.Server.Run(ctx, addr, a.Cfg.ShutdownTimeout)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	timeout := a.Cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if a.Services.Chat != nil {
		if err := a.Services.Chat.Stop(ctx); err != nil {
			a.Log.Warn("Chat session stop failed", "error", err)
		}
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	a.Log.Sync()
}
