package aggregates

import (
	"context"

	"github.com/google/uuid"
	"github.com/yungbote/draftsync-backend/internal/domain/drafts"
)

// Field names used in field-level validation errors.
const (
	FieldTitle        = "title"
	FieldSlug         = "slug"
	FieldDeriveSlug   = "derive_slug"
	FieldDescription  = "description"
	FieldBody         = "body"
	FieldType         = "type"
	FieldAuthors      = "authors"
	FieldTopics       = "topics"
	FieldStatus       = "status"
	FieldSync         = "sync"
	FieldGraphicMedia = "graphic_media"
)

// MaxTitleLen bounds titles in runes.
const MaxTitleLen = 300

type CreateDraftInput struct {
	Title     string
	Type      drafts.ArticleType
	AuthorIDs []uuid.UUID
	TopicIDs  []uuid.UUID
}

// BodyChange carries the body before and after a committed edit so callers
// can diff embedded media.
type BodyChange struct {
	Before drafts.SyncState
	After  drafts.SyncState
}

// SyncTransition computes the next sync state from the committed one. It
// runs inside the write transaction and must not perform I/O.
type SyncTransition func(current drafts.SyncState) (drafts.SyncState, error)

// DraftAggregate owns every multi-row write against a draft.
type DraftAggregate interface {
	Create(ctx context.Context, in CreateDraftInput) (drafts.Draft, error)
	Load(ctx context.Context, articleID uuid.UUID) (drafts.Draft, error)

	UpdateTitle(ctx context.Context, articleID uuid.UUID, title string) (drafts.Article, error)
	UpdateSlug(ctx context.Context, articleID uuid.UUID, slug string) (drafts.Article, error)
	SetDeriveSlug(ctx context.Context, articleID uuid.UUID, derive bool) (drafts.Article, error)
	UpdateDescription(ctx context.Context, articleID uuid.UUID, description string) (string, error)
	UpdateBody(ctx context.Context, articleID uuid.UUID, body string, format drafts.ContentFormat) (BodyChange, error)
	UpdateGraphicMedia(ctx context.Context, articleID uuid.UUID, mediaIDs []uuid.UUID) ([]uuid.UUID, error)
	SwitchType(ctx context.Context, articleID uuid.UUID, target drafts.ArticleType) (drafts.Draft, error)
	ReplaceAuthors(ctx context.Context, articleID uuid.UUID, userIDs []uuid.UUID) ([]uuid.UUID, error)
	ReplaceTopics(ctx context.Context, articleID uuid.UUID, topicIDs []uuid.UUID) ([]uuid.UUID, error)
	TransitionStatus(ctx context.Context, articleID uuid.UUID, to drafts.ArticleStatus) (drafts.Article, error)
	CommitSync(ctx context.Context, articleID uuid.UUID, fn SyncTransition) (drafts.SyncState, error)
}
