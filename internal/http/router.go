package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/draftsync-backend/internal/http/handlers"
	httpMW "github.com/yungbote/draftsync-backend/internal/http/middleware"
	"github.com/yungbote/draftsync-backend/internal/observability"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log     *logger.Logger
	Metrics *observability.Metrics

	// ServiceName enables otelgin spans when set.
	ServiceName    string
	AllowedOrigins []string

	IdentityMiddleware *httpMW.IdentityMiddleware

	DraftHandler    *httpH.DraftHandler
	MediaHandler    *httpH.MediaHandler
	RealtimeHandler *httpH.RealtimeHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.CORS(cfg.AllowedOrigins))
	r.Use(httpMW.Metrics(cfg.Metrics))
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	protected := r.Group("/api")
	if cfg.IdentityMiddleware != nil {
		protected.Use(cfg.IdentityMiddleware.RequireUser())
	}

	if h := cfg.DraftHandler; h != nil {
		protected.POST("/drafts", h.Create)
		protected.GET("/drafts/:id", h.Get)
		protected.PATCH("/drafts/:id/title", h.UpdateTitle)
		protected.PATCH("/drafts/:id/slug", h.UpdateSlug)
		protected.PATCH("/drafts/:id/derive-slug", h.SetDeriveSlug)
		protected.PATCH("/drafts/:id/description", h.UpdateDescription)
		protected.PATCH("/drafts/:id/body", h.UpdateBody)
		protected.PATCH("/drafts/:id/type", h.SwitchType)
		protected.PUT("/drafts/:id/authors", h.ReplaceAuthors)
		protected.PUT("/drafts/:id/topics", h.ReplaceTopics)
		protected.PUT("/drafts/:id/graphic-media", h.UpdateGraphicMedia)
		protected.POST("/drafts/:id/publish", h.Publish)
		protected.POST("/drafts/:id/archive", h.Archive)
		protected.POST("/drafts/:id/sync/enable", h.EnableSync)
		protected.POST("/drafts/:id/sync/disable", h.DisableSync)
		protected.GET("/drafts/:id/content", h.Content)
		protected.GET("/drafts/:id/staleness", h.Staleness)
	}

	if h := cfg.MediaHandler; h != nil {
		protected.POST("/drafts/:id/images", h.AddImage)
		protected.POST("/drafts/:id/cover", h.SetCover)
		protected.DELETE("/drafts/:id/media/:mediaId", h.Mark)
		protected.POST("/media/commit-deletion", h.CommitDeletion)
	}

	// Realtime (SSE)
	if cfg.RealtimeHandler != nil {
		protected.GET("/drafts/:id/events", cfg.RealtimeHandler.DraftEvents)
	}

	return r
}
