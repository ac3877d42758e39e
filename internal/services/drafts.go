package services

import (
	"context"
	"errors"
	"sync"

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

// DraftService is what the HTTP layer talks to. Field edits go through the
// session manager; media and sync reads go to their modules.
type DraftService interface {
	Create(ctx context.Context, in domainagg.CreateDraftInput) (types.Draft, error)
	Get(ctx context.Context, articleID uuid.UUID) (types.Draft, error)

	// Submit applies m optimistically and returns without waiting.
	Submit(ctx context.Context, articleID uuid.UUID, m session.Mutation) (session.Ticket, error)
	// Commit applies m and waits for it to settle.
	Commit(ctx context.Context, articleID uuid.UUID, m session.Mutation) (session.Outcome, error)
	// EditBody submits a body edit and ingests its unresolved images in the
	// background, patching each node as its asset lands.
	EditBody(ctx context.Context, articleID uuid.UUID, body string, format types.ContentFormat) (session.Ticket, error)

	Content(ctx context.Context, articleID uuid.UUID) (source.Content, error)
	Staleness(ctx context.Context, articleID uuid.UUID) (source.Staleness, error)

	AddImage(ctx context.Context, in media.IngestInput) (*types.MediaAsset, error)
	SetCover(ctx context.Context, articleID uuid.UUID, ref string) (*types.MediaAsset, error)
	MarkMedia(ctx context.Context, articleID, mediaID uuid.UUID) error
	CommitDeletion(ctx context.Context) (media.CommitResult, error)

	// Drain flushes debounced edits and waits for background image work.
	Drain(ctx context.Context) error
}

type DraftServiceDeps struct {
	Log      *logger.Logger
	Drafts   domainagg.DraftAggregate
	Sessions *session.Manager
	Sync     source.Service
	Resolver media.Resolver
	Deleter  media.Deleter
	Pending  *media.PendingTable
}

type draftService struct {
	log      *logger.Logger
	drafts   domainagg.DraftAggregate
	sessions *session.Manager
	sync     source.Service
	resolver media.Resolver
	deleter  media.Deleter
	pending  *media.PendingTable

	background sync.WaitGroup
}

func NewDraftService(deps DraftServiceDeps) DraftService {
	if deps.Pending == nil {
		deps.Pending = media.NewPendingTable()
	}
	return &draftService{
		log:      deps.Log.With("service", "DraftService"),
		drafts:   deps.Drafts,
		sessions: deps.Sessions,
		sync:     deps.Sync,
		resolver: deps.Resolver,
		deleter:  deps.Deleter,
		pending:  deps.Pending,
	}
}

func (s *draftService) Create(ctx context.Context, in domainagg.CreateDraftInput) (types.Draft, error) {
	d, err := s.drafts.Create(ctx, in)
	if err != nil {
		return types.Draft{}, err
	}
	s.sessions.Adopt(d)
	s.log.Info("Draft created", "article_id", d.ArticleID, "type", d.Type, "slug", d.Slug)
	return d, nil
}

func (s *draftService) Get(ctx context.Context, articleID uuid.UUID) (types.Draft, error) {
	return s.sessions.Current(ctx, articleID)
}

func (s *draftService) Submit(ctx context.Context, articleID uuid.UUID, m session.Mutation) (session.Ticket, error) {
	return s.sessions.Submit(ctx, articleID, m)
}

// Commit waits on the settlement. When ctx ends first the mutation keeps
// running and the caller gets the optimistic draft with ctx's error.
func (s *draftService) Commit(ctx context.Context, articleID uuid.UUID, m session.Mutation) (session.Outcome, error) {
	tk, err := s.sessions.Submit(ctx, articleID, m)
	if err != nil {
		return session.Outcome{}, err
	}
	select {
	case out := <-tk.Done:
		return out, out.Err
	case <-ctx.Done():
		return session.Outcome{ID: tk.ID, Draft: tk.Draft}, domainagg.Unavailable("Drafts.Commit", "request ended before commit settled", ctx.Err())
	}
}

func (s *draftService) EditBody(ctx context.Context, articleID uuid.UUID, body string, format types.ContentFormat) (session.Ticket, error) {
	if format == "" {
		format = types.FormatDoc
	}
	var pending map[string]media.Pending
	if format == types.FormatDoc {
		if root, err := doc.Parse(body); err == nil {
			root = doc.AssignImageIDs(root)
			if raw, err := root.Marshal(); err == nil {
				body = raw
				pending = s.register(articleID, root, ctxutil.ActingUser(ctx))
			}
		}
	}

	tk, err := s.sessions.Submit(ctx, articleID, session.Body{Value: body, Format: format})
	if err != nil {
		for id := range pending {
			s.pending.Resolve(id)
		}
		return session.Ticket{}, err
	}
	if len(pending) > 0 {
		s.ingestPending(ctx, pending)
	}
	return tk, nil
}

// register records every image node that still points at its original
// source. Nodes already in flight from an earlier keystroke are skipped; the
// settle patch finds them again by correlation id.
func (s *draftService) register(articleID uuid.UUID, root doc.Node, user uuid.UUID) map[string]media.Pending {
	out := map[string]media.Pending{}
	for _, img := range doc.Images(root) {
		if img.MediaID != "" || img.Src == "" {
			continue
		}
		id := img.CorrelationID
		if id == "" {
			id = img.NodeID
		}
		p := media.Pending{ArticleID: articleID, CorrelationID: img.CorrelationID, NodeID: img.NodeID, Ref: img.Src, ActingUser: user}
		if s.pending.Register(id, p) {
			out[id] = p
		}
	}
	return out
}

func (s *draftService) ingestPending(ctx context.Context, items map[string]media.Pending) {
	bctx := context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		s.resolver.IngestBatch(bctx, items, func(res media.BatchResult) {
			s.settleImage(bctx, res)
		})
	}()
}

func (s *draftService) settleImage(ctx context.Context, res media.BatchResult) {
	p, ok := s.pending.Resolve(res.CorrelationID)
	if !ok {
		return
	}
	if res.Err != nil {
		s.log.Warn("Body image ingestion failed", "article_id", p.ArticleID, "node_id", p.NodeID, "code", domainagg.CodeOf(res.Err), "error", res.Err)
		return
	}
	_, err := s.sessions.Submit(ctx, p.ArticleID, session.PatchImage{
		CorrelationID: p.CorrelationID,
		NodeID:        p.NodeID,
		Src:           res.Asset.URL,
		MediaID:       res.Asset.ID,
	})
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNodeGone):
		if p.ActingUser == uuid.Nil {
			return
		}
		if _, err := s.deleter.Mark(ctx, p.ArticleID, []uuid.UUID{res.Asset.ID}, p.ActingUser); err != nil {
			s.log.Warn("Marking orphaned image failed", "article_id", p.ArticleID, "media_id", res.Asset.ID, "error", err)
		}
	default:
		s.log.Warn("Patching body image failed", "article_id", p.ArticleID, "node_id", p.NodeID, "error", err)
	}
}

// Content reads the body. A live export that differs from the cached mirror
// is written back through the session so the cached draft follows it.
func (s *draftService) Content(ctx context.Context, articleID uuid.UUID) (source.Content, error) {
	c, err := s.sync.Read(ctx, articleID)
	if err != nil || !c.Live {
		return c, err
	}
	cur, err := s.sessions.Current(ctx, articleID)
	if err != nil {
		return c, nil
	}
	if v, ok := cur.DefaultContent(); ok && v.Sync.Content == c.Body {
		return c, nil
	}
	_, err = s.sessions.Submit(ctx, articleID, session.RefreshMirror{HTML: c.Body, EditingURL: c.EditingURL})
	if err != nil && !errors.Is(err, session.ErrMirrorMoved) {
		s.log.Warn("Mirror cache refresh failed", "article_id", articleID, "error", err)
	}
	return c, nil
}

func (s *draftService) Staleness(ctx context.Context, articleID uuid.UUID) (source.Staleness, error) {
	return s.sync.StalenessCheck(ctx, articleID)
}

func (s *draftService) AddImage(ctx context.Context, in media.IngestInput) (*types.MediaAsset, error) {
	if in.Intent == types.IntentCover {
		return s.resolver.SetCover(ctx, in.ArticleID, in.Ref, ctxutil.ActingUser(ctx))
	}
	return s.resolver.Ingest(ctx, in)
}

func (s *draftService) SetCover(ctx context.Context, articleID uuid.UUID, ref string) (*types.MediaAsset, error) {
	return s.resolver.SetCover(ctx, articleID, ref, ctxutil.ActingUser(ctx))
}

func (s *draftService) MarkMedia(ctx context.Context, articleID, mediaID uuid.UUID) error {
	_, err := s.deleter.Mark(ctx, articleID, []uuid.UUID{mediaID}, ctxutil.ActingUser(ctx))
	return err
}

func (s *draftService) CommitDeletion(ctx context.Context) (media.CommitResult, error) {
	return s.deleter.CommitDeletion(ctx, ctxutil.ActingUser(ctx))
}

func (s *draftService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.sessions.Drain(ctx)
}
