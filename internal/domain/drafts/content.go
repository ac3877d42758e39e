package drafts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ContentVariant is the sum of the three body shapes. Only the types in this
// package implement it.
type ContentVariant interface {
	VariantType() ArticleType
	isContentVariant()
}

type DefaultVariant struct {
	Description string
	Sync        SyncState
}

type GraphicVariant struct {
	Description string
	MediaIDs    []uuid.UUID
}

type HeadlineVariant struct{}

func (DefaultVariant) VariantType() ArticleType  { return TypeDefault }
func (GraphicVariant) VariantType() ArticleType  { return TypeGraphic }
func (HeadlineVariant) VariantType() ArticleType { return TypeHeadline }

func (DefaultVariant) isContentVariant()  {}
func (GraphicVariant) isContentVariant()  {}
func (HeadlineVariant) isContentVariant() {}

// Shell returns the empty content for a freshly created article of type t.
func Shell(t ArticleType) (ContentVariant, error) {
	switch t {
	case TypeDefault:
		return DefaultVariant{Sync: SyncState{Format: FormatDoc}}, nil
	case TypeGraphic:
		return GraphicVariant{}, nil
	case TypeHeadline:
		return HeadlineVariant{}, nil
	default:
		return nil, fmt.Errorf("unknown article type %q", t)
	}
}

func CloneVariant(v ContentVariant) ContentVariant {
	switch c := v.(type) {
	case DefaultVariant:
		return DefaultVariant{Description: c.Description, Sync: c.Sync.Clone()}
	case GraphicVariant:
		ids := make([]uuid.UUID, len(c.MediaIDs))
		copy(ids, c.MediaIDs)
		return GraphicVariant{Description: c.Description, MediaIDs: ids}
	case HeadlineVariant:
		return c
	default:
		return nil
	}
}

// Description reports the description of v and whether v has one.
func Description(v ContentVariant) (string, bool) {
	switch c := v.(type) {
	case DefaultVariant:
		return c.Description, true
	case GraphicVariant:
		return c.Description, true
	case HeadlineVariant:
		return "", false
	default:
		return "", false
	}
}

// WithDescription returns v with its description replaced. ok is false for
// variants without a description.
func WithDescription(v ContentVariant, desc string) (ContentVariant, bool) {
	switch c := v.(type) {
	case DefaultVariant:
		c.Description = desc
		return c, true
	case GraphicVariant:
		c.Description = desc
		return c, true
	case HeadlineVariant:
		return c, false
	default:
		return v, false
	}
}

// SwitchVariant moves the active variant into the stash and activates the
// target. A stashed target is restored verbatim. The description is carried
// forward only into a target that is new or has an empty description.
func SwitchVariant(active ContentVariant, stash map[ArticleType]ContentVariant, target ArticleType) (ContentVariant, map[ArticleType]ContentVariant, error) {
	if !target.Valid() {
		return nil, nil, fmt.Errorf("unknown article type %q", target)
	}
	out := make(map[ArticleType]ContentVariant, len(stash)+1)
	for k, v := range stash {
		out[k] = CloneVariant(v)
	}
	if active != nil && active.VariantType() == target {
		return CloneVariant(active), out, nil
	}

	next, found := out[target]
	if !found {
		shell, err := Shell(target)
		if err != nil {
			return nil, nil, err
		}
		next = shell
	}
	delete(out, target)

	if active != nil {
		if desc, ok := Description(active); ok && desc != "" {
			if cur, has := Description(next); has && (!found || cur == "") {
				next, _ = WithDescription(next, desc)
			}
		}
		if _, headline := active.(HeadlineVariant); !headline {
			out[active.VariantType()] = CloneVariant(active)
		}
	}
	return next, out, nil
}

// DefaultContent persists the default variant, one row per article.
type DefaultContent struct {
	ID             uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	ArticleID      uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex" json:"article_id"`
	Description    string        `gorm:"column:description;not null" json:"description"`
	Content        string        `gorm:"column:content;type:text;not null" json:"content"`
	ContentFormat  ContentFormat `gorm:"column:content_format;not null" json:"content_format"`
	IsSynced       bool          `gorm:"column:is_synced;not null" json:"is_synced"`
	EditingURL     string        `gorm:"column:editing_url;not null" json:"editing_url"`
	OriginalURL    string        `gorm:"column:original_url;not null" json:"original_url"`
	SyncDisabledAt *time.Time    `gorm:"column:sync_disabled_at" json:"sync_disabled_at,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (DefaultContent) TableName() string { return "default_content" }

func (c *DefaultContent) Variant() DefaultVariant {
	return DefaultVariant{
		Description: c.Description,
		Sync: SyncState{
			IsSynced:       c.IsSynced,
			EditingURL:     c.EditingURL,
			OriginalURL:    c.OriginalURL,
			SyncDisabledAt: c.SyncDisabledAt,
			Content:        c.Content,
			Format:         c.ContentFormat,
		},
	}.cloned()
}

func (v DefaultVariant) cloned() DefaultVariant {
	return DefaultVariant{Description: v.Description, Sync: v.Sync.Clone()}
}

// SyncColumns returns the column updates that persist s.
func SyncColumns(s SyncState) map[string]interface{} {
	return map[string]interface{}{
		"is_synced":        s.IsSynced,
		"editing_url":      s.EditingURL,
		"original_url":     s.OriginalURL,
		"sync_disabled_at": s.SyncDisabledAt,
		"content":          s.Content,
		"content_format":   s.Format,
	}
}

func DefaultContentFor(articleID uuid.UUID, v DefaultVariant) *DefaultContent {
	format := v.Sync.Format
	if format == "" {
		format = FormatDoc
	}
	return &DefaultContent{
		ID:             uuid.New(),
		ArticleID:      articleID,
		Description:    v.Description,
		Content:        v.Sync.Content,
		ContentFormat:  format,
		IsSynced:       v.Sync.IsSynced,
		EditingURL:     v.Sync.EditingURL,
		OriginalURL:    v.Sync.OriginalURL,
		SyncDisabledAt: v.Sync.SyncDisabledAt,
	}
}

// GraphicContent persists the graphic variant, one row per article.
type GraphicContent struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ArticleID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"article_id"`
	Description string         `gorm:"column:description;not null" json:"description"`
	MediaIDs    datatypes.JSON `gorm:"column:media_ids" json:"media_ids"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (GraphicContent) TableName() string { return "graphic_content" }

func (c *GraphicContent) Variant() (GraphicVariant, error) {
	out := GraphicVariant{Description: c.Description}
	if len(c.MediaIDs) > 0 && string(c.MediaIDs) != "null" {
		if err := json.Unmarshal(c.MediaIDs, &out.MediaIDs); err != nil {
			return GraphicVariant{}, fmt.Errorf("decode graphic media ids: %w", err)
		}
	}
	return out, nil
}

func GraphicContentFor(articleID uuid.UUID, v GraphicVariant) (*GraphicContent, error) {
	raw, err := MediaIDsJSON(v.MediaIDs)
	if err != nil {
		return nil, err
	}
	return &GraphicContent{ID: uuid.New(), ArticleID: articleID, Description: v.Description, MediaIDs: raw}, nil
}

func MediaIDsJSON(ids []uuid.UUID) (datatypes.JSON, error) {
	if ids == nil {
		ids = []uuid.UUID{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("encode graphic media ids: %w", err)
	}
	return datatypes.JSON(raw), nil
}
