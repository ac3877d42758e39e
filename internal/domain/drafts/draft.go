package drafts

import (
	"time"

	"github.com/google/uuid"
)

// Draft is the full editable representation of one article: identity fields,
// links, the active content variant, and the preserved rows of the others.
type Draft struct {
	ArticleID           uuid.UUID
	Title               string
	Slug                string
	DeriveSlugFromTitle bool
	Status              ArticleStatus
	Type                ArticleType
	Version             int
	AuthorIDs           []uuid.UUID
	TopicIDs            []uuid.UUID
	Content             ContentVariant
	Inactive            map[ArticleType]ContentVariant
	UpdatedAt           time.Time
}

func (d Draft) Clone() Draft {
	out := d
	out.AuthorIDs = cloneIDs(d.AuthorIDs)
	out.TopicIDs = cloneIDs(d.TopicIDs)
	if d.Content != nil {
		out.Content = CloneVariant(d.Content)
	}
	if d.Inactive != nil {
		out.Inactive = make(map[ArticleType]ContentVariant, len(d.Inactive))
		for k, v := range d.Inactive {
			out.Inactive[k] = CloneVariant(v)
		}
	}
	return out
}

// DefaultContent returns the active default variant, if the draft has one.
func (d Draft) DefaultContent() (DefaultVariant, bool) {
	v, ok := d.Content.(DefaultVariant)
	return v, ok
}

func cloneIDs(in []uuid.UUID) []uuid.UUID {
	if in == nil {
		return nil
	}
	out := make([]uuid.UUID, len(in))
	copy(out, in)
	return out
}
