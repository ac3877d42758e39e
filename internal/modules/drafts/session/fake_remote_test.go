package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
)

// fakeRemote echoes committed values back unless a hook overrides a call.
type fakeRemote struct {
	mu    sync.Mutex
	calls map[string]int
	last  map[string]interface{}

	onTitle       func(ctx context.Context, title string) (types.Article, error)
	onSlug        func(ctx context.Context, slug string) (types.Article, error)
	onDescription func(ctx context.Context, desc string) (string, error)
	onAuthors     func(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	onType        func(ctx context.Context, t types.ArticleType) (types.Draft, error)
	onStatus      func(ctx context.Context, to types.ArticleStatus) (types.Article, error)

	article types.Article
}

func newFakeRemote(d types.Draft) *fakeRemote {
	return &fakeRemote{
		calls: map[string]int{},
		last:  map[string]interface{}{},
		article: types.Article{
			ID:                  d.ArticleID,
			Title:               d.Title,
			Slug:                d.Slug,
			DeriveSlugFromTitle: d.DeriveSlugFromTitle,
			Status:              d.Status,
			Type:                d.Type,
			Version:             d.Version,
		},
	}
}

func (f *fakeRemote) record(name string, v interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	f.last[name] = v
}

func (f *fakeRemote) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeRemote) Last(name string) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last[name]
}

func (f *fakeRemote) bump(fn func(a *types.Article)) types.Article {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.article)
	f.article.Version++
	return f.article
}

func (f *fakeRemote) UpdateTitle(ctx context.Context, _ uuid.UUID, title string) (types.Article, error) {
	f.record("title", title)
	if f.onTitle != nil {
		return f.onTitle(ctx, title)
	}
	return f.bump(func(a *types.Article) {
		a.Title = title
		if a.DeriveSlugFromTitle {
			a.Slug = "server-" + title
		}
	}), nil
}

func (f *fakeRemote) UpdateSlug(ctx context.Context, _ uuid.UUID, slug string) (types.Article, error) {
	f.record("slug", slug)
	if f.onSlug != nil {
		return f.onSlug(ctx, slug)
	}
	return f.bump(func(a *types.Article) {
		a.Slug = slug
		a.DeriveSlugFromTitle = false
	}), nil
}

func (f *fakeRemote) SetDeriveSlug(_ context.Context, _ uuid.UUID, derive bool) (types.Article, error) {
	f.record("derive_slug", derive)
	return f.bump(func(a *types.Article) { a.DeriveSlugFromTitle = derive }), nil
}

func (f *fakeRemote) UpdateDescription(ctx context.Context, _ uuid.UUID, desc string) (string, error) {
	f.record("description", desc)
	if f.onDescription != nil {
		return f.onDescription(ctx, desc)
	}
	return desc, nil
}

func (f *fakeRemote) UpdateBody(_ context.Context, _ uuid.UUID, body string, format types.ContentFormat) (types.SyncState, error) {
	f.record("body", body)
	return types.SyncState{Content: body, Format: format}, nil
}

func (f *fakeRemote) UpdateGraphicMedia(_ context.Context, _ uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	f.record("graphic_media", ids)
	return ids, nil
}

func (f *fakeRemote) SwitchType(ctx context.Context, _ uuid.UUID, t types.ArticleType) (types.Draft, error) {
	f.record("type", t)
	if f.onType != nil {
		return f.onType(ctx, t)
	}
	return types.Draft{}, context.Canceled
}

func (f *fakeRemote) ReplaceAuthors(ctx context.Context, _ uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	f.record("authors", ids)
	if f.onAuthors != nil {
		return f.onAuthors(ctx, ids)
	}
	return ids, nil
}

func (f *fakeRemote) ReplaceTopics(_ context.Context, _ uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	f.record("topics", ids)
	return ids, nil
}

func (f *fakeRemote) TransitionStatus(ctx context.Context, _ uuid.UUID, to types.ArticleStatus) (types.Article, error) {
	f.record("status", to)
	if f.onStatus != nil {
		return f.onStatus(ctx, to)
	}
	return f.bump(func(a *types.Article) { a.Status = to }), nil
}

func (f *fakeRemote) EnableSync(_ context.Context, _ uuid.UUID, newURL *string, _ bool) (types.SyncState, error) {
	f.record("enable_sync", newURL)
	return types.SyncState{IsSynced: true, EditingURL: "https://docs.google.com/document/d/copy/edit", Content: "<p>mirrored</p>", Format: types.FormatHTML}, nil
}

func (f *fakeRemote) DisableSync(_ context.Context, _ uuid.UUID) (types.SyncState, error) {
	f.record("disable_sync", nil)
	return types.SyncState{IsSynced: false, Content: "<p>mirrored</p>", Format: types.FormatHTML}, nil
}

func (f *fakeRemote) RefreshMirror(_ context.Context, _ uuid.UUID, html, editingURL string) (types.SyncState, error) {
	f.record("refresh_mirror", html)
	return types.SyncState{IsSynced: true, EditingURL: editingURL, Content: html, Format: types.FormatHTML}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) Kinds() []EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventKind, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

func sampleDraft() types.Draft {
	return types.Draft{
		ArticleID:           uuid.New(),
		Title:               "Orig",
		Slug:                "orig",
		DeriveSlugFromTitle: true,
		Status:              types.StatusDraft,
		Type:                types.TypeDefault,
		Version:             1,
		AuthorIDs:           []uuid.UUID{uuid.New()},
		Content: types.DefaultVariant{
			Description: "orig desc",
			Sync:        types.SyncState{Content: `{"type":"doc","content":[{"type":"paragraph"}]}`, Format: types.FormatDoc},
		},
		Inactive: map[types.ArticleType]types.ContentVariant{},
	}
}

func testLog() *logger.Logger { return logger.Nop() }

