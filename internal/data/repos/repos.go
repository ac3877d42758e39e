package repos

import (
	"github.com/yungbote/draftsync-backend/internal/data/repos/drafts"
	"github.com/yungbote/draftsync-backend/internal/data/repos/media"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type ArticleRepo = drafts.ArticleRepo
type ContentRepo = drafts.ContentRepo
type LinkRepo = drafts.LinkRepo
type MediaAssetRepo = media.MediaAssetRepo

// Set groups every repo the engine uses.
type Set struct {
	Articles ArticleRepo
	Content  ContentRepo
	Links    LinkRepo
	Media    MediaAssetRepo
}

func NewSet(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Articles: drafts.NewArticleRepo(db, log),
		Content:  drafts.NewContentRepo(db, log),
		Links:    drafts.NewLinkRepo(db, log),
		Media:    media.NewMediaAssetRepo(db, log),
	}
}
