package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/draftsync-backend/internal/platform/ctxutil"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
	"github.com/yungbote/draftsync-backend/internal/realtime"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.SSEHub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub}
}

// GET /api/drafts/:id/events
func (h *RealtimeHandler) DraftEvents(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	userID := ctxutil.ActingUser(c.Request.Context())
	if userID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "not authenticated", "code": "unauthorized"}})
		return
	}

	client := h.hub.NewSSEClient(userID)
	client.Logger = h.log.With("sse_client_id", client.ID, "article_id", id)
	h.hub.AddChannel(client, realtime.DraftChannel(id))
	client.Logger.Debug("Draft event stream open")

	h.hub.ServeHTTP(c.Writer, c.Request, client)
	h.hub.CloseClient(client)
}
