package session

import (
	"github.com/google/uuid"

	domainagg "github.com/yungbote/draftsync-backend/internal/domain/aggregates"
	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
)

// Field is one independently owned slice of a draft.
type Field string

const (
	FieldTitle        Field = domainagg.FieldTitle
	FieldSlug         Field = domainagg.FieldSlug
	FieldDeriveSlug   Field = domainagg.FieldDeriveSlug
	FieldType         Field = domainagg.FieldType
	FieldVariants     Field = "variants"
	FieldDescription  Field = domainagg.FieldDescription
	FieldBody         Field = domainagg.FieldBody
	FieldSync         Field = domainagg.FieldSync
	FieldGraphicMedia Field = domainagg.FieldGraphicMedia
	FieldAuthors      Field = domainagg.FieldAuthors
	FieldTopics       Field = domainagg.FieldTopics
	FieldStatus       Field = domainagg.FieldStatus
)

// variantInner are the fields stored inside the active content variant.
var variantInner = []Field{FieldDescription, FieldBody, FieldSync, FieldGraphicMedia}

// copyField returns dst with field f taken from src. Fields that live inside
// a variant only copy when both drafts carry that variant shape.
func copyField(dst, src types.Draft, f Field) types.Draft {
	switch f {
	case FieldTitle:
		dst.Title = src.Title
	case FieldSlug:
		dst.Slug = src.Slug
	case FieldDeriveSlug:
		dst.DeriveSlugFromTitle = src.DeriveSlugFromTitle
	case FieldType:
		dst.Type = src.Type
	case FieldVariants:
		next := src.Clone()
		dst.Content = next.Content
		dst.Inactive = next.Inactive
	case FieldDescription:
		if desc, ok := types.Description(src.Content); ok {
			if next, ok := types.WithDescription(dst.Content, desc); ok {
				dst.Content = next
			}
		}
	case FieldBody:
		s, okSrc := src.DefaultContent()
		d, okDst := dst.DefaultContent()
		if okSrc && okDst {
			d.Sync.Content = s.Sync.Content
			d.Sync.Format = s.Sync.Format
			dst.Content = d
		}
	case FieldSync:
		s, okSrc := src.DefaultContent()
		d, okDst := dst.DefaultContent()
		if okSrc && okDst {
			body, format := d.Sync.Content, d.Sync.Format
			d.Sync = s.Sync.Clone()
			d.Sync.Content, d.Sync.Format = body, format
			dst.Content = d
		}
	case FieldGraphicMedia:
		s, okSrc := src.Content.(types.GraphicVariant)
		d, okDst := dst.Content.(types.GraphicVariant)
		if okSrc && okDst {
			d.MediaIDs = append([]uuid.UUID(nil), s.MediaIDs...)
			dst.Content = d
		}
	case FieldAuthors:
		dst.AuthorIDs = append([]uuid.UUID(nil), src.AuthorIDs...)
	case FieldTopics:
		dst.TopicIDs = append([]uuid.UUID(nil), src.TopicIDs...)
	case FieldStatus:
		dst.Status = src.Status
	}
	return dst
}

func withBody(d types.Draft, body string, format types.ContentFormat) types.Draft {
	if v, ok := d.DefaultContent(); ok {
		v.Sync.Content = body
		v.Sync.Format = format
		d.Content = v
	}
	return d
}

func owns(fields []Field, f Field) bool {
	for _, x := range fields {
		if x == f {
			return true
		}
	}
	return false
}
