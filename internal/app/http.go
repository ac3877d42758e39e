package app

import (
	"context"

	apphttp "github.com/yungbote/draftsync-backend/internal/http"
	httpH "github.com/yungbote/draftsync-backend/internal/http/handlers"
	httpMW "github.com/yungbote/draftsync-backend/internal/http/middleware"
	"github.com/yungbote/draftsync-backend/internal/observability"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
	"github.com/yungbote/draftsync-backend/internal/realtime"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Draft    *httpH.DraftHandler
	Media    *httpH.MediaHandler
	Realtime *httpH.RealtimeHandler
}

func wireHandlers(log *logger.Logger, clients Clients, svcs Services, hub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.Pinger{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := clients.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if clients.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return clients.Redis.Ping(ctx).Err() }
	}
	return Handlers{
		Health:   httpH.NewHealthHandler(checks),
		Draft:    httpH.NewDraftHandler(log, svcs.Draft),
		Media:    httpH.NewMediaHandler(log, svcs.Draft),
		Realtime: httpH.NewRealtimeHandler(log, hub),
	}
}

func wireServer(log *logger.Logger, cfg Config, h Handlers, metrics *observability.Metrics) *apphttp.Server {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return apphttp.NewServer(apphttp.RouterConfig{
		Log:                log,
		Metrics:            metrics,
		ServiceName:        serviceName,
		AllowedOrigins:     cfg.AllowedOrigins,
		IdentityMiddleware: httpMW.NewIdentityMiddleware(log, cfg.JWTSecret),
		DraftHandler:       h.Draft,
		MediaHandler:       h.Media,
		RealtimeHandler:    h.Realtime,
		HealthHandler:      h.Health,
	})
}
