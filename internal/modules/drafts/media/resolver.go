package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/draftsync-backend/internal/data/aggregates"
	"github.com/yungbote/draftsync-backend/internal/data/repos"
	domainagg "github.com/yungbote/draftsync-backend/internal/domain/aggregates"
	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"github.com/yungbote/draftsync-backend/internal/observability"
	"github.com/yungbote/draftsync-backend/internal/platform/dbctx"
	"github.com/yungbote/draftsync-backend/internal/platform/gcp"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
)

const DefaultConcurrency = 4

// BlobStore is the slice of gcp.BucketService the resolver needs.
type BlobStore interface {
	Upload(ctx context.Context, key, mimeType string, r io.Reader) (gcp.StoredObject, error)
	Delete(ctx context.Context, keys []string) ([]string, error)
}

type IngestInput struct {
	ArticleID uuid.UUID
	Ref       string
	Intent    types.MediaIntent
	Caption   string
}

// BatchResult is the outcome of one image in IngestBatch.
type BatchResult struct {
	CorrelationID string
	Pending       Pending
	Asset         *types.MediaAsset
	Err           error
}

type Resolver interface {
	Ingest(ctx context.Context, in IngestInput) (*types.MediaAsset, error)
	SetCover(ctx context.Context, articleID uuid.UUID, ref string, actingUser uuid.UUID) (*types.MediaAsset, error)
	IngestBatch(ctx context.Context, items map[string]Pending, each func(BatchResult)) []BatchResult
}

type ResolverDeps struct {
	Log         *logger.Logger
	Media       repos.MediaAssetRepo
	Covers      domainagg.MediaAggregate
	Blobs       BlobStore
	Fetcher     *Fetcher
	Concurrency int
	Metrics     *observability.Metrics
}

type resolver struct {
	log         *logger.Logger
	media       repos.MediaAssetRepo
	covers      domainagg.MediaAggregate
	blobs       BlobStore
	fetcher     *Fetcher
	concurrency int
	metrics     *observability.Metrics
}

func NewResolver(deps ResolverDeps) Resolver {
	if deps.Fetcher == nil {
		deps.Fetcher = NewFetcher(0, 0)
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = DefaultConcurrency
	}
	return &resolver{
		log:         deps.Log.With("service", "MediaResolver"),
		media:       deps.Media,
		covers:      deps.Covers,
		blobs:       deps.Blobs,
		fetcher:     deps.Fetcher,
		concurrency: deps.Concurrency,
		metrics:     deps.Metrics,
	}
}

func (r *resolver) Ingest(ctx context.Context, in IngestInput) (*types.MediaAsset, error) {
	const op = "Drafts.Media.Ingest"
	if in.ArticleID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing article id", nil)
	}
	if in.Intent == "" {
		in.Intent = types.IntentContent
	}
	if !in.Intent.Valid() {
		return nil, domainagg.FieldError(op, "intent", fmt.Sprintf("unknown intent %q", in.Intent))
	}
	asset, outcome, err := r.ingest(ctx, op, in)
	if err != nil {
		outcome = string(domainagg.CodeOf(err))
	}
	r.metrics.IncMediaIngest(string(in.Intent), outcome)
	return asset, err
}

func (r *resolver) ingest(ctx context.Context, op string, in IngestInput) (*types.MediaAsset, string, error) {
	ref, err := ParseRef(in.Ref)
	if err != nil {
		return nil, "", err
	}
	dbc := dbctx.Context{Ctx: ctx}

	existing, err := r.media.FindByRef(dbc, in.ArticleID, ref.SourceRef)
	if err != nil {
		return nil, "", domainagg.Unavailable(op, "lookup media asset", err)
	}
	if existing != nil {
		if existing.Marked() {
			if err := r.media.ClearMarks(dbc, []uuid.UUID{existing.ID}); err != nil {
				return nil, "", domainagg.Unavailable(op, "clear deletion mark", err)
			}
			existing.MarkedForDeletion = nil
			return existing, "restored", nil
		}
		return existing, "deduplicated", nil
	}

	payload, err := r.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, "", err
	}
	info, err := inspectImage(payload.Data, payload.MimeType)
	if err != nil {
		return nil, "", err
	}

	assetID := uuid.New()
	name := fileName(ref.URL, info.MimeType, assetID)
	key := storageKey(in.ArticleID, assetID, name)
	stored, err := r.blobs.Upload(ctx, key, info.MimeType, bytes.NewReader(payload.Data))
	if err != nil {
		return nil, "", domainagg.Unavailable(op, "upload image", err)
	}

	row := &types.MediaAsset{
		ID:         assetID,
		ArticleID:  in.ArticleID,
		Intent:     in.Intent,
		SourceRef:  ref.SourceRef,
		URL:        stored.URL,
		StorageKey: stored.Key,
		Size:       int64(len(payload.Data)),
		FileName:   name,
		MimeType:   info.MimeType,
		Width:      info.Width,
		Height:     info.Height,
		Caption:    strings.TrimSpace(in.Caption),
	}
	if _, err := r.media.Create(dbc, []*types.MediaAsset{row}); err != nil {
		r.discardBlob(ctx, stored.Key)
		if aggregates.IsUniqueViolation(err) {
			winner, rerr := r.media.FindByRef(dbc, in.ArticleID, ref.SourceRef)
			if rerr == nil && winner != nil {
				return winner, "deduplicated", nil
			}
		}
		return nil, "", domainagg.Unavailable(op, "insert media asset", err)
	}
	r.log.Info("Media ingested", "article_id", in.ArticleID, "media_id", row.ID, "intent", row.Intent, "size", row.Size)
	return row, "stored", nil
}

// discardBlob removes an upload whose row never landed.
func (r *resolver) discardBlob(ctx context.Context, key string) {
	if key == "" {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if failed, err := r.blobs.Delete(cctx, []string{key}); err != nil || len(failed) > 0 {
		r.log.Warn("Orphan blob cleanup failed", "key", key, "error", err)
	}
}

func (r *resolver) SetCover(ctx context.Context, articleID uuid.UUID, ref string, actingUser uuid.UUID) (*types.MediaAsset, error) {
	asset, err := r.Ingest(ctx, IngestInput{ArticleID: articleID, Ref: ref, Intent: types.IntentCover})
	if err != nil {
		return nil, err
	}
	return r.covers.PromoteCover(ctx, articleID, asset.ID, actingUser)
}

// IngestBatch ingests every pending image concurrently. One failure never
// cancels the others; results come back in no particular order. each, when
// set, is called from the worker as soon as its image settles.
func (r *resolver) IngestBatch(ctx context.Context, items map[string]Pending, each func(BatchResult)) []BatchResult {
	out := make([]BatchResult, 0, len(items))
	if len(items) == 0 {
		return out
	}
	results := make(chan BatchResult, len(items))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for id, p := range items {
		g.Go(func() error {
			asset, err := r.Ingest(ctx, IngestInput{ArticleID: p.ArticleID, Ref: p.Ref, Intent: types.IntentContent})
			res := BatchResult{CorrelationID: id, Pending: p, Asset: asset, Err: err}
			if each != nil {
				each(res)
			}
			results <- res
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	for res := range results {
		out = append(out, res)
	}
	return out
}
