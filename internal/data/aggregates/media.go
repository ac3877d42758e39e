package aggregates

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/yungbote/draftsync-backend/internal/data/repos"
	domainagg "github.com/yungbote/draftsync-backend/internal/domain/aggregates"
	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"github.com/yungbote/draftsync-backend/internal/platform/dbctx"
)

type MediaAggregateDeps struct {
	Base  BaseDeps
	Media repos.MediaAssetRepo
}

type mediaAggregate struct {
	deps MediaAggregateDeps
}

func NewMediaAggregate(deps MediaAggregateDeps) domainagg.MediaAggregate {
	deps.Base = deps.Base.withDefaults()
	return &mediaAggregate{deps: deps}
}

func (a *mediaAggregate) PromoteCover(ctx context.Context, articleID, assetID, actingUser uuid.UUID) (*types.MediaAsset, error) {
	const op = "Drafts.Media.PromoteCover"
	var out *types.MediaAsset

	if articleID == uuid.Nil || assetID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing article or asset id", nil)
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		asset, err := a.deps.Media.GetByID(dbc, assetID)
		if err != nil {
			return err
		}
		if asset == nil || asset.ArticleID != articleID {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("media asset not found: %s", assetID), nil)
		}
		covers, err := a.deps.Media.ActiveCovers(dbc, articleID)
		if err != nil {
			return err
		}
		previous := make([]uuid.UUID, 0, len(covers))
		for _, c := range covers {
			if c.ID != assetID {
				previous = append(previous, c.ID)
			}
		}
		if err := a.deps.Media.MarkForDeletion(dbc, previous, actingUser); err != nil {
			return err
		}
		if asset.Intent != types.IntentCover || asset.Marked() {
			if err := a.deps.Media.UpdateFields(dbc, asset.ID, map[string]interface{}{
				"intent":              types.IntentCover,
				"marked_for_deletion": nil,
			}); err != nil {
				return err
			}
			asset.Intent = types.IntentCover
			asset.MarkedForDeletion = nil
		}
		out = asset
		return nil
	})
	return out, err
}

func (a *mediaAggregate) PurgeMarked(ctx context.Context, actingUser uuid.UUID) ([]*types.MediaAsset, error) {
	const op = "Drafts.Media.PurgeMarked"
	var out []*types.MediaAsset

	if actingUser == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing acting user", nil)
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		rows, err := a.deps.Media.ListMarkedBy(dbc, actingUser)
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.ID)
		}
		// A mark cleared after the listing keeps its row.
		deleted, err := a.deps.Media.DeleteMarkedBy(dbc, ids, actingUser)
		if err != nil {
			return err
		}
		gone := make(map[uuid.UUID]struct{}, len(deleted))
		for _, r := range deleted {
			gone[r.ID] = struct{}{}
		}
		out = make([]*types.MediaAsset, 0, len(deleted))
		for _, r := range rows {
			if _, ok := gone[r.ID]; ok {
				out = append(out, r)
			}
		}
		return nil
	})
	return out, err
}
