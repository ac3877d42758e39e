package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/draftsync-backend/internal/domain/aggregates"
	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"github.com/yungbote/draftsync-backend/internal/platform/gcp"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
)

const exportMime = "text/html"

// ErrDocumentUnavailable marks a mirrored body that could not be exported.
var ErrDocumentUnavailable = errors.New("document unavailable")

// Store is the persistence side the sync service needs.
type Store interface {
	Load(ctx context.Context, articleID uuid.UUID) (types.Draft, error)
	CommitSync(ctx context.Context, articleID uuid.UUID, fn domainagg.SyncTransition) (types.SyncState, error)
}

// ImageMirror stores images referenced by exported html and points them at
// stored copies.
type ImageMirror interface {
	MirrorHTML(ctx context.Context, articleID uuid.UUID, html string) (string, error)
}

type Content struct {
	Body   string
	Format types.ContentFormat
	State  State
	Live   bool
	// EditingURL is the document a live body was exported from.
	EditingURL string
}

type Staleness struct {
	Stale          bool
	ModifiedTime   time.Time
	SyncDisabledAt *time.Time
}

type Service interface {
	EnableSync(ctx context.Context, articleID uuid.UUID, newURL *string, confirmed bool) (types.SyncState, error)
	DisableSync(ctx context.Context, articleID uuid.UUID) (types.SyncState, error)
	Read(ctx context.Context, articleID uuid.UUID) (Content, error)
	// RefreshMirror stores html as the cached mirror of editingURL. It is a
	// no-op when sync was turned off or relinked since the export.
	RefreshMirror(ctx context.Context, articleID uuid.UUID, html, editingURL string) (types.SyncState, error)
	StalenessCheck(ctx context.Context, articleID uuid.UUID) (Staleness, error)
}

type Deps struct {
	Log      *logger.Logger
	Provider gcp.DocProvider
	Store    Store
	// Mirror is optional; nil leaves exported image sources untouched.
	Mirror ImageMirror
	Now    func() time.Time
}

type service struct {
	log      *logger.Logger
	provider gcp.DocProvider
	store    Store
	mirror   ImageMirror
	now      func() time.Time
}

func NewService(deps Deps) Service {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		log:      log.With("service", "SyncService"),
		provider: deps.Provider,
		store:    deps.Store,
		mirror:   deps.Mirror,
		now:      now,
	}
}

func (s *service) EnableSync(ctx context.Context, articleID uuid.UUID, newURL *string, confirmed bool) (types.SyncState, error) {
	const op = "Drafts.Sync.Enable"
	if !confirmed {
		return types.SyncState{}, domainagg.FieldError(op, domainagg.FieldSync, "enabling sync replaces the local body; confirmation required")
	}
	d, err := s.store.Load(ctx, articleID)
	if err != nil {
		return types.SyncState{}, err
	}
	cur, ok := d.DefaultContent()
	if !ok {
		return types.SyncState{}, domainagg.FieldError(op, domainagg.FieldSync, fmt.Sprintf("%s articles cannot mirror an external document", d.Type))
	}

	var editingURL, originalURL, editID string
	if newURL != nil && strings.TrimSpace(*newURL) != "" {
		originalURL = strings.TrimSpace(*newURL)
		srcID, ok := DocumentID(originalURL)
		if !ok {
			return types.SyncState{}, domainagg.FieldError(op, domainagg.FieldSync, "not a Google Docs url")
		}
		meta, err := s.provider.Get(ctx, srcID)
		if err != nil {
			return types.SyncState{}, providerError(op, "document lookup failed", err)
		}
		name := strings.TrimSpace(meta.Name)
		if name == "" {
			name = d.Title
		}
		editID, err = s.provider.Copy(ctx, srcID, name+" (editing copy)")
		if err != nil {
			return types.SyncState{}, providerError(op, "document copy failed", err)
		}
		editingURL = EditURL(editID)
	} else {
		editingURL = cur.Sync.EditingURL
		id, ok := DocumentID(editingURL)
		if !ok {
			return types.SyncState{}, domainagg.FieldError(op, domainagg.FieldSync, "no linked document; provide a url")
		}
		editID = id
	}

	html, err := s.provider.Export(ctx, editID, exportMime)
	if err != nil {
		return types.SyncState{}, providerError(op, "document export failed", err)
	}
	html = s.mirrorImages(ctx, articleID, html)

	next, err := s.store.CommitSync(ctx, articleID, func(cur types.SyncState) (types.SyncState, error) {
		return Enable(cur, editingURL, originalURL, html), nil
	})
	if err != nil {
		if originalURL != "" {
			s.log.Warn("Editing copy left unlinked", "article_id", articleID, "copy_id", editID, "error", err)
		}
		return types.SyncState{}, err
	}
	s.log.Info("Sync enabled", "article_id", articleID, "doc_id", editID, "bytes", len(html))
	return next, nil
}

func (s *service) DisableSync(ctx context.Context, articleID uuid.UUID) (types.SyncState, error) {
	const op = "Drafts.Sync.Disable"
	now := s.now()
	next, err := s.store.CommitSync(ctx, articleID, func(cur types.SyncState) (types.SyncState, error) {
		if !cur.IsSynced {
			return cur, domainagg.FieldError(op, domainagg.FieldSync, "sync is not enabled")
		}
		return Disable(cur, now), nil
	})
	if err != nil {
		return types.SyncState{}, err
	}
	s.log.Info("Sync disabled", "article_id", articleID)
	return next, nil
}

func (s *service) Read(ctx context.Context, articleID uuid.UUID) (Content, error) {
	const op = "Drafts.Sync.Read"
	d, err := s.store.Load(ctx, articleID)
	if err != nil {
		return Content{}, err
	}
	cur, ok := d.DefaultContent()
	if !ok {
		return Content{}, domainagg.FieldError(op, domainagg.FieldBody, fmt.Sprintf("%s articles have no body", d.Type))
	}
	if StateOf(cur.Sync) == Local {
		return Content{Body: cur.Sync.Content, Format: cur.Sync.Format, State: Local}, nil
	}

	editID, ok := DocumentID(cur.Sync.EditingURL)
	if !ok {
		return Content{}, domainagg.NewError(domainagg.CodeInvariantViolation, op, "mirrored draft has no editing document", nil)
	}
	html, err := s.provider.Export(ctx, editID, exportMime)
	if err != nil {
		return Content{}, domainagg.Unavailable(op, "document unavailable", errors.Join(ErrDocumentUnavailable, err))
	}
	html = s.mirrorImages(ctx, articleID, html)
	return Content{Body: html, Format: types.FormatHTML, State: Mirrored, Live: true, EditingURL: cur.Sync.EditingURL}, nil
}

func (s *service) RefreshMirror(ctx context.Context, articleID uuid.UUID, html, editingURL string) (types.SyncState, error) {
	return s.store.CommitSync(ctx, articleID, func(latest types.SyncState) (types.SyncState, error) {
		if !latest.IsSynced || latest.EditingURL != editingURL || latest.Content == html {
			return latest, nil
		}
		latest.Content = html
		latest.Format = types.FormatHTML
		return latest, nil
	})
}

func (s *service) StalenessCheck(ctx context.Context, articleID uuid.UUID) (Staleness, error) {
	const op = "Drafts.Sync.Staleness"
	d, err := s.store.Load(ctx, articleID)
	if err != nil {
		return Staleness{}, err
	}
	cur, ok := d.DefaultContent()
	if !ok {
		return Staleness{}, domainagg.FieldError(op, domainagg.FieldSync, fmt.Sprintf("%s articles cannot mirror an external document", d.Type))
	}
	out := Staleness{SyncDisabledAt: cur.Sync.SyncDisabledAt}
	if cur.Sync.IsSynced || cur.Sync.SyncDisabledAt == nil {
		return out, nil
	}
	editID, ok := DocumentID(cur.Sync.EditingURL)
	if !ok {
		return out, nil
	}
	meta, err := s.provider.Get(ctx, editID)
	if err != nil {
		return out, providerError(op, "document lookup failed", err)
	}
	out.ModifiedTime = meta.ModifiedTime
	out.Stale = Stale(cur.Sync, meta.ModifiedTime)
	return out, nil
}

func (s *service) mirrorImages(ctx context.Context, articleID uuid.UUID, html string) string {
	if s.mirror == nil {
		return html
	}
	out, err := s.mirror.MirrorHTML(ctx, articleID, html)
	if err != nil {
		s.log.Warn("Image mirroring incomplete", "article_id", articleID, "error", err)
	}
	if out == "" {
		return html
	}
	return out
}

// providerError keeps user-fixable lookups (missing or private documents)
// as validation failures; everything else is an outage.
func providerError(op, msg string, err error) error {
	switch {
	case errors.Is(err, gcp.ErrDocNotFound):
		return domainagg.FieldError(op, domainagg.FieldSync, "document not found")
	case errors.Is(err, gcp.ErrDocForbidden):
		return domainagg.FieldError(op, domainagg.FieldSync, "document is not shared with the service account")
	default:
		return domainagg.Unavailable(op, msg, err)
	}
}


