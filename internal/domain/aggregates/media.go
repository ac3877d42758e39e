package aggregates

import (
	"context"

	"github.com/google/uuid"
	"github.com/yungbote/draftsync-backend/internal/domain/drafts"
)

// MediaAggregate owns the media writes that touch more than one row.
type MediaAggregate interface {
	// PromoteCover makes assetID the article's only live cover and marks any
	// previous cover for deletion by actingUser.
	PromoteCover(ctx context.Context, articleID, assetID, actingUser uuid.UUID) (*drafts.MediaAsset, error)
	// PurgeMarked deletes every row actingUser marked and returns them.
	PurgeMarked(ctx context.Context, actingUser uuid.UUID) ([]*drafts.MediaAsset, error)
}
