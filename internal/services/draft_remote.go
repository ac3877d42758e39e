package services

import (
	"context"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/draftsync-backend/internal/domain/aggregates"
	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"github.com/yungbote/draftsync-backend/internal/modules/drafts/doc"
	"github.com/yungbote/draftsync-backend/internal/modules/drafts/media"
	"github.com/yungbote/draftsync-backend/internal/modules/drafts/session"
	"github.com/yungbote/draftsync-backend/internal/modules/drafts/source"
	"github.com/yungbote/draftsync-backend/internal/platform/ctxutil"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
)

type DraftRemoteDeps struct {
	Log     *logger.Logger
	Drafts  domainagg.DraftAggregate
	Sync    source.Service
	Deleter media.Deleter
}

// draftRemote is the durable side of the session coordinator.
type draftRemote struct {
	log     *logger.Logger
	drafts  domainagg.DraftAggregate
	sync    source.Service
	deleter media.Deleter
}

func NewDraftRemote(deps DraftRemoteDeps) session.Remote {
	return &draftRemote{
		log:     deps.Log.With("service", "DraftRemote"),
		drafts:  deps.Drafts,
		sync:    deps.Sync,
		deleter: deps.Deleter,
	}
}

func (r *draftRemote) UpdateTitle(ctx context.Context, id uuid.UUID, title string) (types.Article, error) {
	return r.drafts.UpdateTitle(ctx, id, title)
}

func (r *draftRemote) UpdateSlug(ctx context.Context, id uuid.UUID, slug string) (types.Article, error) {
	return r.drafts.UpdateSlug(ctx, id, slug)
}

func (r *draftRemote) SetDeriveSlug(ctx context.Context, id uuid.UUID, derive bool) (types.Article, error) {
	return r.drafts.SetDeriveSlug(ctx, id, derive)
}

func (r *draftRemote) UpdateDescription(ctx context.Context, id uuid.UUID, description string) (string, error) {
	return r.drafts.UpdateDescription(ctx, id, description)
}

// UpdateBody commits the body, then marks the assets the edit dropped. A
// marking failure leaves the body committed.
func (r *draftRemote) UpdateBody(ctx context.Context, id uuid.UUID, body string, format types.ContentFormat) (types.SyncState, error) {
	change, err := r.drafts.UpdateBody(ctx, id, body, format)
	if err != nil {
		return types.SyncState{}, err
	}
	r.markRemoved(ctx, id, change)
	return change.After, nil
}

func (r *draftRemote) markRemoved(ctx context.Context, id uuid.UUID, change domainagg.BodyChange) {
	user := ctxutil.ActingUser(ctx)
	if r.deleter == nil || user == uuid.Nil {
		return
	}
	if change.Before.Format != types.FormatDoc || change.After.Format != types.FormatDoc {
		return
	}
	before, err := doc.Parse(change.Before.Content)
	if err != nil {
		return
	}
	after, err := doc.Parse(change.After.Content)
	if err != nil {
		return
	}
	if err := r.deleter.MarkRemovedFromBody(ctx, id, before, after, user); err != nil {
		r.log.Warn("Marking removed body images failed", "article_id", id, "error", err)
	}
}

func (r *draftRemote) UpdateGraphicMedia(ctx context.Context, id uuid.UUID, mediaIDs []uuid.UUID) ([]uuid.UUID, error) {
	return r.drafts.UpdateGraphicMedia(ctx, id, mediaIDs)
}

func (r *draftRemote) SwitchType(ctx context.Context, id uuid.UUID, target types.ArticleType) (types.Draft, error) {
	return r.drafts.SwitchType(ctx, id, target)
}

func (r *draftRemote) ReplaceAuthors(ctx context.Context, id uuid.UUID, userIDs []uuid.UUID) ([]uuid.UUID, error) {
	return r.drafts.ReplaceAuthors(ctx, id, userIDs)
}

func (r *draftRemote) ReplaceTopics(ctx context.Context, id uuid.UUID, topicIDs []uuid.UUID) ([]uuid.UUID, error) {
	return r.drafts.ReplaceTopics(ctx, id, topicIDs)
}

func (r *draftRemote) TransitionStatus(ctx context.Context, id uuid.UUID, to types.ArticleStatus) (types.Article, error) {
	return r.drafts.TransitionStatus(ctx, id, to)
}

func (r *draftRemote) EnableSync(ctx context.Context, id uuid.UUID, newURL *string, confirmed bool) (types.SyncState, error) {
	return r.sync.EnableSync(ctx, id, newURL, confirmed)
}

func (r *draftRemote) DisableSync(ctx context.Context, id uuid.UUID) (types.SyncState, error) {
	return r.sync.DisableSync(ctx, id)
}

func (r *draftRemote) RefreshMirror(ctx context.Context, id uuid.UUID, html, editingURL string) (types.SyncState, error) {
	return r.sync.RefreshMirror(ctx, id, html, editingURL)
}
