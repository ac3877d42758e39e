package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainagg "github.com/yungbote/draftsync-backend/internal/domain/aggregates"
	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"github.com/yungbote/draftsync-backend/internal/http/response"
	"github.com/yungbote/draftsync-backend/internal/modules/drafts/session"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
	"github.com/yungbote/draftsync-backend/internal/services"
)

type DraftHandler struct {
	log    *logger.Logger
	drafts services.DraftService
}

func NewDraftHandler(log *logger.Logger, drafts services.DraftService) *DraftHandler {
	return &DraftHandler{log: log.With("handler", "DraftHandler"), drafts: drafts}
}

type valueRequest[T any] struct {
	Value T `json:"value"`
}

type createDraftRequest struct {
	Title     string            `json:"title"`
	Type      types.ArticleType `json:"type"`
	AuthorIDs []uuid.UUID       `json:"author_ids"`
	TopicIDs  []uuid.UUID       `json:"topic_ids"`
}

type bodyRequest struct {
	Value  string              `json:"value"`
	Format types.ContentFormat `json:"format"`
}

type enableSyncRequest struct {
	URL     *string `json:"url"`
	Confirm bool    `json:"confirm"`
}

// POST /api/drafts
func (h *DraftHandler) Create(c *gin.Context) {
	var req createDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.Type == "" {
		req.Type = types.TypeDefault
	}
	d, err := h.drafts.Create(c.Request.Context(), domainagg.CreateDraftInput{
		Title:     req.Title,
		Type:      req.Type,
		AuthorIDs: req.AuthorIDs,
		TopicIDs:  req.TopicIDs,
	})
	if err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	response.RespondCreated(c, d.View())
}

// GET /api/drafts/:id
func (h *DraftHandler) Get(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	d, err := h.drafts.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	response.RespondOK(c, d.View())
}

// PATCH /api/drafts/:id/title
func (h *DraftHandler) UpdateTitle(c *gin.Context) {
	req, ok := bindValue[string](c)
	if !ok {
		return
	}
	h.commit(c, session.Title{Value: req})
}

// PATCH /api/drafts/:id/slug
func (h *DraftHandler) UpdateSlug(c *gin.Context) {
	req, ok := bindValue[string](c)
	if !ok {
		return
	}
	h.commit(c, session.Slug{Value: req})
}

// PATCH /api/drafts/:id/derive-slug
func (h *DraftHandler) SetDeriveSlug(c *gin.Context) {
	req, ok := bindValue[bool](c)
	if !ok {
		return
	}
	h.commit(c, session.DeriveSlug{Enabled: req})
}

// PATCH /api/drafts/:id/description
func (h *DraftHandler) UpdateDescription(c *gin.Context) {
	req, ok := bindValue[string](c)
	if !ok {
		return
	}
	h.submit(c, session.Description{Value: req})
}

// PATCH /api/drafts/:id/body
func (h *DraftHandler) UpdateBody(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	var req bodyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	tk, err := h.drafts.EditBody(c.Request.Context(), id, req.Value, req.Format)
	if err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	response.RespondAccepted(c, gin.H{"mutation_id": tk.ID, "draft": tk.Draft.View()})
}

// PATCH /api/drafts/:id/type
func (h *DraftHandler) SwitchType(c *gin.Context) {
	req, ok := bindValue[types.ArticleType](c)
	if !ok {
		return
	}
	h.commit(c, session.Type{Target: req})
}

// PUT /api/drafts/:id/authors
func (h *DraftHandler) ReplaceAuthors(c *gin.Context) {
	req, ok := bindValue[[]uuid.UUID](c)
	if !ok {
		return
	}
	h.commit(c, session.Authors{UserIDs: req})
}

// PUT /api/drafts/:id/topics
func (h *DraftHandler) ReplaceTopics(c *gin.Context) {
	req, ok := bindValue[[]uuid.UUID](c)
	if !ok {
		return
	}
	h.commit(c, session.Topics{TopicIDs: req})
}

// PUT /api/drafts/:id/graphic-media
func (h *DraftHandler) UpdateGraphicMedia(c *gin.Context) {
	req, ok := bindValue[[]uuid.UUID](c)
	if !ok {
		return
	}
	h.commit(c, session.GraphicMedia{MediaIDs: req})
}

// POST /api/drafts/:id/publish
func (h *DraftHandler) Publish(c *gin.Context) {
	h.commit(c, session.Status{To: types.StatusPublished})
}

// POST /api/drafts/:id/archive
func (h *DraftHandler) Archive(c *gin.Context) {
	h.commit(c, session.Status{To: types.StatusArchived})
}

// POST /api/drafts/:id/sync/enable
func (h *DraftHandler) EnableSync(c *gin.Context) {
	var req enableSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	h.commit(c, session.EnableSync{URL: req.URL, Confirmed: req.Confirm})
}

// POST /api/drafts/:id/sync/disable
func (h *DraftHandler) DisableSync(c *gin.Context) {
	h.commit(c, session.DisableSync{})
}

// GET /api/drafts/:id/content
func (h *DraftHandler) Content(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	content, err := h.drafts.Content(c.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	response.RespondOK(c, gin.H{
		"body":   content.Body,
		"format": content.Format,
		"state":  content.State,
		"live":   content.Live,
	})
}

// GET /api/drafts/:id/staleness
func (h *DraftHandler) Staleness(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	st, err := h.drafts.Staleness(c.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	out := gin.H{"stale": st.Stale, "sync_disabled_at": st.SyncDisabledAt}
	if !st.ModifiedTime.IsZero() {
		out["modified_time"] = st.ModifiedTime
	}
	response.RespondOK(c, out)
}

// commit runs m to settlement. Failures carry the restored draft so the
// client can drop its optimistic copy.
func (h *DraftHandler) commit(c *gin.Context, m session.Mutation) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	out, err := h.drafts.Commit(c.Request.Context(), id, m)
	if err != nil {
		var restored any
		if out.Draft.ArticleID != uuid.Nil {
			restored = out.Draft.View()
		}
		if !domainagg.IsCode(err, domainagg.CodeValidation) {
			h.log.Warn("Draft mutation failed", "article_id", id, "mutation", m.Kind(), "error", err)
		}
		response.RespondDomainError(c, err, restored)
		return
	}
	response.RespondOK(c, out.Draft.View())
}

// submit is for debounced fields: the optimistic draft comes back with 202
// and settlement arrives over the event stream.
func (h *DraftHandler) submit(c *gin.Context, m session.Mutation) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	tk, err := h.drafts.Submit(c.Request.Context(), id, m)
	if err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	response.RespondAccepted(c, gin.H{"mutation_id": tk.ID, "draft": tk.Draft.View()})
}

func articleID(c *gin.Context) (uuid.UUID, bool) {
	return uuidParam(c, "id", "invalid_article_id")
}

func uuidParam(c *gin.Context, name, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil || id == uuid.Nil {
		if err == nil {
			err = errors.New("nil id")
		}
		response.RespondError(c, http.StatusBadRequest, code, err)
		return uuid.Nil, false
	}
	return id, true
}

func bindValue[T any](c *gin.Context) (T, bool) {
	var req valueRequest[T]
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		var zero T
		return zero, false
	}
	return req.Value, true
}
