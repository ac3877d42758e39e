package drafts

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MediaIntent string

const (
	IntentCover   MediaIntent = "cover_img"
	IntentContent MediaIntent = "content_img"
)

func (i MediaIntent) Valid() bool {
	return i == IntentCover || i == IntentContent
}

// MediaAsset is one stored image attached to an article. SourceRef is the
// ingestion key: the exact source URL, or sha256:<hex> for inline payloads.
type MediaAsset struct {
	ID                uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	ArticleID         uuid.UUID   `gorm:"type:uuid;not null;index;uniqueIndex:idx_media_asset_article_source" json:"article_id"`
	Intent            MediaIntent `gorm:"column:intent;not null;index" json:"intent"`
	SourceRef         string      `gorm:"column:source_ref;not null;uniqueIndex:idx_media_asset_article_source" json:"source_ref"`
	URL               string      `gorm:"column:url;not null;index" json:"url"`
	StorageKey        string      `gorm:"column:storage_key;not null" json:"storage_key"`
	Size              int64       `gorm:"column:size;not null" json:"size"`
	FileName          string      `gorm:"column:file_name;not null" json:"file_name"`
	MimeType          string      `gorm:"column:mime_type;not null" json:"mime_type"`
	Width             int         `gorm:"column:width" json:"width,omitempty"`
	Height            int         `gorm:"column:height" json:"height,omitempty"`
	Caption           string      `gorm:"column:caption" json:"caption"`
	MarkedForDeletion *uuid.UUID  `gorm:"type:uuid;column:marked_for_deletion;index" json:"marked_for_deletion,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (MediaAsset) TableName() string { return "media_asset" }

func (m *MediaAsset) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func (m *MediaAsset) Marked() bool { return m.MarkedForDeletion != nil }
