package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"gorm.io/gorm"
)

func SeedArticle(tb testing.TB, ctx context.Context, tx *gorm.DB, title, slug string, status types.ArticleStatus) *types.Article {
	tb.Helper()
	a := &types.Article{
		ID:                  uuid.New(),
		Title:               title,
		Slug:                slug,
		DeriveSlugFromTitle: true,
		Status:              status,
		Type:                types.TypeDefault,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed article: %v", err)
	}
	return a
}

func SeedDefaultContent(tb testing.TB, ctx context.Context, tx *gorm.DB, articleID uuid.UUID, v types.DefaultVariant) *types.DefaultContent {
	tb.Helper()
	row := types.DefaultContentFor(articleID, v)
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed default content: %v", err)
	}
	return row
}

func SeedMediaAsset(tb testing.TB, ctx context.Context, tx *gorm.DB, articleID uuid.UUID, sourceRef, key string) *types.MediaAsset {
	tb.Helper()
	m := &types.MediaAsset{
		ID:         uuid.New(),
		ArticleID:  articleID,
		Intent:     types.IntentContent,
		SourceRef:  sourceRef,
		URL:        "https://cdn.example.com/" + key,
		StorageKey: key,
		Size:       3,
		FileName:   "image.png",
		MimeType:   "image/png",
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed media asset: %v", err)
	}
	return m
}
