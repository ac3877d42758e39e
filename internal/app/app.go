package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yungbote/draftsync-backend/internal/data/repos"
	apphttp "github.com/yungbote/draftsync-backend/internal/http"
	"github.com/yungbote/draftsync-backend/internal/observability"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
	"github.com/yungbote/draftsync-backend/internal/realtime"
	"github.com/yungbote/draftsync-backend/internal/realtime/bus"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Clients  Clients
	Repos    repos.Set
	Services Services
	Hub      *realtime.SSEHub
	Bus      bus.Bus
	Server   *apphttp.Server
	Metrics  *observability.Metrics

	shutdownTracing func(context.Context) error
	cancel          context.CancelFunc
	wg              sync.WaitGroup
}

func New(ctx context.Context, log *logger.Logger) (*App, error) {
	log.Info("Loading configuration...")
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	metrics := observability.Init(log)
	shutdownTracing := observability.InitOTel(ctx, log, cfg.Otel)

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}

	hub := realtime.NewSSEHub(log)
	var sseBus bus.Bus
	var relay realtime.Relay
	if clients.Redis != nil {
		sseBus, err = bus.NewRedisBus(log, clients.Redis, cfg.RedisChannel)
		if err != nil {
			clients.Close()
			_ = shutdownTracing(ctx)
			return nil, fmt.Errorf("init SSE bus: %w", err)
		}
		relay = sseBus
	}

	reposet := repos.NewSet(clients.DB, log)
	serviceset := wireServices(log, cfg, clients, reposet, metrics, realtime.NewPublisher(log, hub, relay))
	handlerset := wireHandlers(log, clients, serviceset, hub)

	return &App{
		Log:             log,
		Cfg:             cfg,
		Clients:         clients,
		Repos:           reposet,
		Services:        serviceset,
		Hub:             hub,
		Bus:             sseBus,
		Server:          wireServer(log, cfg, handlerset, metrics),
		Metrics:         metrics,
		shutdownTracing: shutdownTracing,
	}, nil
}

// Start launches background loops: session eviction, the cross-replica
// event forwarder and the metrics collectors.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.Services.Sessions.Run(ctx)
	}()

	if a.Bus != nil {
		if err := a.Bus.StartForwarder(ctx, a.Hub.Broadcast); err != nil {
			return fmt.Errorf("start SSE forwarder: %w", err)
		}
	}

	a.Metrics.StartPostgresCollector(ctx, a.Log, a.Clients.DB)
	a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Redis)
	return nil
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	addr := ":" + a.Cfg.Port
	a.Log.Info("HTTP server listening", "addr", addr)
	return a.Server.Run(addr)
}

// Shutdown stops accepting requests, then settles every pending draft edit
// before the stores go away.
func (a *App) Shutdown(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var errs []error
	a.Hub.CloseAll()
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.Services.Draft.Drain(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain drafts: %w", err))
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.wg.Wait()
	if a.Bus != nil {
		_ = a.Bus.Close()
	}
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
		}
	}
	a.Clients.Close()
	a.Log.Sync()
	return errors.Join(errs...)
}
