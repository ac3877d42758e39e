package db

import (
	"fmt"

	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"gorm.io/gorm"
)

// Models lists every table the draft engine owns, in creation order.
func Models() []interface{} {
	return []interface{}{
		&types.Article{},
		&types.ArticleAuthor{},
		&types.ArticleTopic{},
		&types.DefaultContent{},
		&types.GraphicContent{},
		&types.MediaAsset{},
	}
}

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return EnsureArticleSlugIndexes(db)
}

// EnsureArticleSlugIndexes backs slug uniqueness within a status partition.
// Archived articles keep their slug but leave the uniqueness domain.
func EnsureArticleSlugIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_article_status_slug_active
		ON article(status, slug)
		WHERE deleted_at IS NULL AND status <> 'archived';
	`).Error; err != nil {
		return fmt.Errorf("create idx_article_status_slug_active: %w", err)
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_article_slug_prefix
		ON article(status, slug text_pattern_ops);
	`).Error; err != nil {
		return fmt.Errorf("create idx_article_slug_prefix: %w", err)
	}
	return nil
}
