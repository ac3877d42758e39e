package session

import (
	"context"

	"github.com/google/uuid"

	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
)

// Remote is the durable side of every mutation. Each call returns the
// committed values the coordinator reconciles against.
type Remote interface {
	UpdateTitle(ctx context.Context, articleID uuid.UUID, title string) (types.Article, error)
	UpdateSlug(ctx context.Context, articleID uuid.UUID, slug string) (types.Article, error)
	SetDeriveSlug(ctx context.Context, articleID uuid.UUID, derive bool) (types.Article, error)
	UpdateDescription(ctx context.Context, articleID uuid.UUID, description string) (string, error)
	UpdateBody(ctx context.Context, articleID uuid.UUID, body string, format types.ContentFormat) (types.SyncState, error)
	UpdateGraphicMedia(ctx context.Context, articleID uuid.UUID, mediaIDs []uuid.UUID) ([]uuid.UUID, error)
	SwitchType(ctx context.Context, articleID uuid.UUID, target types.ArticleType) (types.Draft, error)
	ReplaceAuthors(ctx context.Context, articleID uuid.UUID, userIDs []uuid.UUID) ([]uuid.UUID, error)
	ReplaceTopics(ctx context.Context, articleID uuid.UUID, topicIDs []uuid.UUID) ([]uuid.UUID, error)
	TransitionStatus(ctx context.Context, articleID uuid.UUID, to types.ArticleStatus) (types.Article, error)
	EnableSync(ctx context.Context, articleID uuid.UUID, newURL *string, confirmed bool) (types.SyncState, error)
	DisableSync(ctx context.Context, articleID uuid.UUID) (types.SyncState, error)
	RefreshMirror(ctx context.Context, articleID uuid.UUID, html, editingURL string) (types.SyncState, error)
}

// withArticle copies the identity columns of a committed article row.
func withArticle(d types.Draft, a types.Article) types.Draft {
	d.Title = a.Title
	d.Slug = a.Slug
	d.DeriveSlugFromTitle = a.DeriveSlugFromTitle
	d.Status = a.Status
	d.Type = a.Type
	d.Version = a.Version
	return d
}

func withSync(d types.Draft, s types.SyncState) types.Draft {
	if v, ok := d.DefaultContent(); ok {
		v.Sync = s.Clone()
		d.Content = v
	}
	return d
}
