package drafts

import (
	"time"

	"github.com/google/uuid"
)

// DraftView is the wire shape of a draft. Exactly one of the variant blocks
// is set and matches Type.
type DraftView struct {
	ArticleID           uuid.UUID     `json:"article_id"`
	Title               string        `json:"title"`
	Slug                string        `json:"slug"`
	DeriveSlugFromTitle bool          `json:"derive_slug_from_title"`
	Status              ArticleStatus `json:"status"`
	Type                ArticleType   `json:"type"`
	Version             int           `json:"version"`
	AuthorIDs           []uuid.UUID   `json:"author_ids"`
	TopicIDs            []uuid.UUID   `json:"topic_ids"`
	Default             *DefaultView  `json:"default_content,omitempty"`
	Graphic             *GraphicView  `json:"graphic_content,omitempty"`
	UpdatedAt           *time.Time    `json:"updated_at,omitempty"`
}

type DefaultView struct {
	Description string    `json:"description"`
	Sync        SyncState `json:"sync"`
}

type GraphicView struct {
	Description string      `json:"description"`
	MediaIDs    []uuid.UUID `json:"media_ids"`
}

func (d Draft) View() DraftView {
	v := DraftView{
		ArticleID:           d.ArticleID,
		Title:               d.Title,
		Slug:                d.Slug,
		DeriveSlugFromTitle: d.DeriveSlugFromTitle,
		Status:              d.Status,
		Type:                d.Type,
		Version:             d.Version,
		AuthorIDs:           nonNilIDs(d.AuthorIDs),
		TopicIDs:            nonNilIDs(d.TopicIDs),
	}
	switch c := d.Content.(type) {
	case DefaultVariant:
		v.Default = &DefaultView{Description: c.Description, Sync: c.Sync.Clone()}
	case GraphicVariant:
		v.Graphic = &GraphicView{Description: c.Description, MediaIDs: nonNilIDs(c.MediaIDs)}
	}
	if !d.UpdatedAt.IsZero() {
		t := d.UpdatedAt
		v.UpdatedAt = &t
	}
	return v
}

func nonNilIDs(in []uuid.UUID) []uuid.UUID {
	if in == nil {
		return []uuid.UUID{}
	}
	return cloneIDs(in)
}
