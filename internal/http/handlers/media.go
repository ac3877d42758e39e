package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"github.com/yungbote/draftsync-backend/internal/http/response"
	"github.com/yungbote/draftsync-backend/internal/modules/drafts/media"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
	"github.com/yungbote/draftsync-backend/internal/services"
)

type MediaHandler struct {
	log    *logger.Logger
	drafts services.DraftService
}

func NewMediaHandler(log *logger.Logger, drafts services.DraftService) *MediaHandler {
	return &MediaHandler{log: log.With("handler", "MediaHandler"), drafts: drafts}
}

type addImageRequest struct {
	Ref     string            `json:"ref"`
	Intent  types.MediaIntent `json:"intent"`
	Caption string            `json:"caption"`
}

// POST /api/drafts/:id/images
func (h *MediaHandler) AddImage(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	var req addImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.Intent == "" {
		req.Intent = types.IntentContent
	}
	asset, err := h.drafts.AddImage(c.Request.Context(), media.IngestInput{
		ArticleID: id,
		Ref:       strings.TrimSpace(req.Ref),
		Intent:    req.Intent,
		Caption:   req.Caption,
	})
	if err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	response.RespondOK(c, asset)
}

// POST /api/drafts/:id/cover
func (h *MediaHandler) SetCover(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	ref, ok := bindValue[string](c)
	if !ok {
		return
	}
	asset, err := h.drafts.SetCover(c.Request.Context(), id, strings.TrimSpace(ref))
	if err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	response.RespondOK(c, asset)
}

// DELETE /api/drafts/:id/media/:mediaId
func (h *MediaHandler) Mark(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	mediaID, ok := uuidParam(c, "mediaId", "invalid_media_id")
	if !ok {
		return
	}
	if err := h.drafts.MarkMedia(c.Request.Context(), id, mediaID); err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/media/commit-deletion
func (h *MediaHandler) CommitDeletion(c *gin.Context) {
	res, err := h.drafts.CommitDeletion(c.Request.Context())
	if err != nil {
		response.RespondDomainError(c, err, res)
		return
	}
	if len(res.LeakedKeys) > 0 {
		h.log.Warn("Media blobs leaked on deletion", "count", len(res.LeakedKeys))
	}
	response.RespondOK(c, res)
}
