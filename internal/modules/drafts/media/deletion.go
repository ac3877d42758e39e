package media

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/draftsync-backend/internal/data/repos"
	domainagg "github.com/yungbote/draftsync-backend/internal/domain/aggregates"
	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"github.com/yungbote/draftsync-backend/internal/modules/drafts/doc"
	"github.com/yungbote/draftsync-backend/internal/observability"
	"github.com/yungbote/draftsync-backend/internal/platform/dbctx"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
)

// CommitResult reports a deletion commit. LeakedKeys are rows that are gone
// whose blobs could not be removed.
type CommitResult struct {
	DeletedIDs []uuid.UUID `json:"deleted_ids"`
	LeakedKeys []string    `json:"leaked_keys,omitempty"`
}

// Deleter runs the two-phase media deletion: marks first, then a commit by
// the user who placed them.
type Deleter interface {
	Mark(ctx context.Context, articleID uuid.UUID, assetIDs []uuid.UUID, actingUser uuid.UUID) ([]uuid.UUID, error)
	MarkRemovedFromBody(ctx context.Context, articleID uuid.UUID, before, after doc.Node, actingUser uuid.UUID) error
	CommitDeletion(ctx context.Context, actingUser uuid.UUID) (CommitResult, error)
}

type DeleterDeps struct {
	Log     *logger.Logger
	Media   repos.MediaAssetRepo
	Purger  domainagg.MediaAggregate
	Blobs   BlobStore
	Metrics *observability.Metrics
}

type deleter struct {
	log     *logger.Logger
	media   repos.MediaAssetRepo
	purger  domainagg.MediaAggregate
	blobs   BlobStore
	metrics *observability.Metrics
}

func NewDeleter(deps DeleterDeps) Deleter {
	return &deleter{
		log:     deps.Log.With("service", "MediaDeleter"),
		media:   deps.Media,
		purger:  deps.Purger,
		blobs:   deps.Blobs,
		metrics: deps.Metrics,
	}
}

// Mark marks the article's assets among assetIDs and returns the ids marked.
// Ids that belong to another article are ignored.
func (d *deleter) Mark(ctx context.Context, articleID uuid.UUID, assetIDs []uuid.UUID, actingUser uuid.UUID) ([]uuid.UUID, error) {
	const op = "Drafts.Media.Mark"
	if actingUser == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing acting user", nil)
	}
	dbc := dbctx.Context{Ctx: ctx}
	rows, err := d.media.GetByIDs(dbc, assetIDs)
	if err != nil {
		return nil, domainagg.Unavailable(op, "load media assets", err)
	}
	ids := ownedIDs(rows, articleID)
	if len(ids) == 0 && len(assetIDs) > 0 {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, "media asset not found", nil)
	}
	if err := d.media.MarkForDeletion(dbc, ids, actingUser); err != nil {
		return nil, domainagg.Unavailable(op, "mark media assets", err)
	}
	return ids, nil
}

func (d *deleter) MarkRemovedFromBody(ctx context.Context, articleID uuid.UUID, before, after doc.Node, actingUser uuid.UUID) error {
	const op = "Drafts.Media.MarkRemovedFromBody"
	removed, added := doc.DiffSources(before, after)
	if len(removed) == 0 && len(added) == 0 {
		return nil
	}
	dbc := dbctx.Context{Ctx: ctx}
	if len(removed) > 0 {
		rows, err := d.media.GetByURLs(dbc, articleID, removed)
		if err != nil {
			return domainagg.Unavailable(op, "load removed media", err)
		}
		var ids []uuid.UUID
		for _, row := range rows {
			// The live cover is never referenced by the body.
			if row.Intent == types.IntentCover || row.Marked() {
				continue
			}
			ids = append(ids, row.ID)
		}
		if err := d.media.MarkForDeletion(dbc, ids, actingUser); err != nil {
			return domainagg.Unavailable(op, "mark removed media", err)
		}
	}
	if len(added) > 0 {
		rows, err := d.media.GetByURLs(dbc, articleID, added)
		if err != nil {
			return domainagg.Unavailable(op, "load restored media", err)
		}
		if err := d.media.ClearMarks(dbc, ownedIDs(rows, articleID)); err != nil {
			return domainagg.Unavailable(op, "clear restored media", err)
		}
	}
	return nil
}

func (d *deleter) CommitDeletion(ctx context.Context, actingUser uuid.UUID) (CommitResult, error) {
	out := CommitResult{DeletedIDs: []uuid.UUID{}}
	rows, err := d.purger.PurgeMarked(ctx, actingUser)
	if err != nil {
		return out, err
	}
	if len(rows) == 0 {
		return out, nil
	}
	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		out.DeletedIDs = append(out.DeletedIDs, row.ID)
		if row.StorageKey != "" {
			keys = append(keys, row.StorageKey)
		}
	}
	failed, err := d.blobs.Delete(ctx, keys)
	if err != nil || len(failed) > 0 {
		out.LeakedKeys = failed
		d.log.Warn("Media blob deletion incomplete",
			"code", domainagg.CodePartialFailure,
			"user_id", actingUser,
			"leaked", len(failed),
			"error", fmt.Sprint(err),
		)
	}
	d.metrics.AddMediaDeleted(len(out.DeletedIDs), len(out.LeakedKeys))
	return out, nil
}

func ownedIDs(rows []*types.MediaAsset, articleID uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		if row.ArticleID == articleID {
			out = append(out, row.ID)
		}
	}
	return out
}
