package drafts

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ArticleStatus string

const (
	StatusDraft     ArticleStatus = "draft"
	StatusPublished ArticleStatus = "published"
	StatusArchived  ArticleStatus = "archived"
)

func (s ArticleStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

type ArticleType string

const (
	TypeDefault  ArticleType = "default"
	TypeHeadline ArticleType = "headline"
	TypeGraphic  ArticleType = "graphic"
)

func (t ArticleType) Valid() bool {
	switch t {
	case TypeDefault, TypeHeadline, TypeGraphic:
		return true
	}
	return false
}

// Article is the identity row. Status and Type are independent axes.
type Article struct {
	ID                  uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Title               string        `gorm:"column:title;not null" json:"title"`
	Slug                string        `gorm:"column:slug;not null;index:idx_article_status_slug" json:"slug"`
	DeriveSlugFromTitle bool          `gorm:"column:derive_slug_from_title;not null" json:"derive_slug_from_title"`
	Status              ArticleStatus `gorm:"column:status;not null;index:idx_article_status_slug" json:"status"`
	Type                ArticleType   `gorm:"column:type;not null" json:"type"`
	Version             int           `gorm:"column:version;not null" json:"version"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Article) TableName() string { return "article" }

func (a *Article) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

type ArticleAuthor struct {
	ArticleID uuid.UUID `gorm:"type:uuid;primaryKey" json:"article_id"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	Position  int       `gorm:"column:position;not null" json:"position"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (ArticleAuthor) TableName() string { return "article_author" }

type ArticleTopic struct {
	ArticleID uuid.UUID `gorm:"type:uuid;primaryKey" json:"article_id"`
	TopicID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"topic_id"`
	Position  int       `gorm:"column:position;not null" json:"position"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (ArticleTopic) TableName() string { return "article_topic" }
