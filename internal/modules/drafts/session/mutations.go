package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/draftsync-backend/internal/domain/aggregates"
	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"github.com/yungbote/draftsync-backend/internal/modules/drafts/doc"
	"github.com/yungbote/draftsync-backend/internal/modules/drafts/slug"
)

// Scope tokens shared by mutations that race on the same derived artifact.
const (
	ScopeSlug          = "slug"
	ScopeContentSource = "content_source"
)

// Mutation is one field edit. Apply must be pure; Commit writes the values
// of the owned fields as they stand in d and returns d with the committed
// values filled in.
type Mutation interface {
	Kind() string
	Fields() []Field
	Scopes() []string
	DebounceKey() string
	Validate(d types.Draft) error
	Apply(d types.Draft) types.Draft
	Commit(ctx context.Context, r Remote, d types.Draft) (types.Draft, error)
}

// base carries the defaults most mutations share.
type base struct{}

func (base) Scopes() []string    { return nil }
func (base) DebounceKey() string { return "" }

func opName(kind string) string { return "Drafts.Session." + kind }

type Title struct {
	base
	Value string
}

func (Title) Kind() string     { return "title" }
func (Title) Fields() []Field  { return []Field{FieldTitle, FieldSlug} }
func (Title) Scopes() []string { return []string{ScopeSlug} }

func (m Title) Validate(types.Draft) error {
	t := strings.TrimSpace(m.Value)
	if t == "" {
		return domainagg.FieldError(opName(m.Kind()), domainagg.FieldTitle, "title is required")
	}
	if utf8.RuneCountInString(t) > domainagg.MaxTitleLen {
		return domainagg.FieldError(opName(m.Kind()), domainagg.FieldTitle, fmt.Sprintf("title exceeds %d characters", domainagg.MaxTitleLen))
	}
	return nil
}

// Apply predicts the derived slug without the collision suffix; the commit
// reconciles it.
func (m Title) Apply(d types.Draft) types.Draft {
	d.Title = strings.TrimSpace(m.Value)
	if d.DeriveSlugFromTitle {
		d.Slug = slug.Base(d.Title)
	}
	return d
}

func (m Title) Commit(ctx context.Context, r Remote, d types.Draft) (types.Draft, error) {
	a, err := r.UpdateTitle(ctx, d.ArticleID, d.Title)
	if err != nil {
		return d, err
	}
	return withArticle(d, a), nil
}

// Slug is a manual slug edit. It turns derivation off.
type Slug struct {
	base
	Value string
}

func (Slug) Kind() string     { return "slug" }
func (Slug) Fields() []Field  { return []Field{FieldSlug, FieldDeriveSlug} }
func (Slug) Scopes() []string { return []string{ScopeSlug} }

func (m Slug) Validate(types.Draft) error {
	if slug.Normalize(m.Value) == "" {
		return domainagg.FieldError(opName(m.Kind()), domainagg.FieldSlug, "slug must contain letters or digits")
	}
	return nil
}

func (m Slug) Apply(d types.Draft) types.Draft {
	d.Slug = slug.Normalize(m.Value)
	d.DeriveSlugFromTitle = false
	return d
}

func (m Slug) Commit(ctx context.Context, r Remote, d types.Draft) (types.Draft, error) {
	a, err := r.UpdateSlug(ctx, d.ArticleID, d.Slug)
	if err != nil {
		return d, err
	}
	return withArticle(d, a), nil
}

type DeriveSlug struct {
	base
	Enabled bool
}

func (DeriveSlug) Kind() string               { return "derive_slug" }
func (DeriveSlug) Fields() []Field            { return []Field{FieldDeriveSlug, FieldSlug} }
func (DeriveSlug) Scopes() []string           { return []string{ScopeSlug} }
func (DeriveSlug) Validate(types.Draft) error { return nil }

// Apply re-derives once when enabling; disabling freezes the current slug.
func (m DeriveSlug) Apply(d types.Draft) types.Draft {
	d.DeriveSlugFromTitle = m.Enabled
	if m.Enabled {
		d.Slug = slug.Base(d.Title)
	}
	return d
}

func (m DeriveSlug) Commit(ctx context.Context, r Remote, d types.Draft) (types.Draft, error) {
	a, err := r.SetDeriveSlug(ctx, d.ArticleID, d.DeriveSlugFromTitle)
	if err != nil {
		return d, err
	}
	return withArticle(d, a), nil
}

type Description struct {
	base
	Value string
}

func (Description) Kind() string        { return "description" }
func (Description) Fields() []Field     { return []Field{FieldDescription} }
func (Description) DebounceKey() string { return string(FieldDescription) }

func (m Description) Validate(d types.Draft) error {
	if _, ok := types.Description(d.Content); !ok {
		return domainagg.FieldError(opName(m.Kind()), domainagg.FieldDescription, fmt.Sprintf("%s articles have no description", d.Type))
	}
	return nil
}

func (m Description) Apply(d types.Draft) types.Draft {
	if next, ok := types.WithDescription(d.Content, m.Value); ok {
		d.Content = next
	}
	return d
}

func (m Description) Commit(ctx context.Context, r Remote, d types.Draft) (types.Draft, error) {
	desc, _ := types.Description(d.Content)
	got, err := r.UpdateDescription(ctx, d.ArticleID, desc)
	if err != nil {
		return d, err
	}
	if next, ok := types.WithDescription(d.Content, got); ok {
		d.Content = next
	}
	return d, nil
}

// Body replaces the local document body of a default draft.
type Body struct {
	base
	Value  string
	Format types.ContentFormat
}

func (Body) Kind() string        { return "body" }
func (Body) Fields() []Field     { return []Field{FieldBody} }
func (Body) Scopes() []string    { return []string{ScopeContentSource} }
func (Body) DebounceKey() string { return string(FieldBody) }

func (m Body) format() types.ContentFormat {
	if m.Format == "" {
		return types.FormatDoc
	}
	return m.Format
}

func (m Body) Validate(d types.Draft) error {
	return validateLocalBody(opName(m.Kind()), d, m.Value, m.format())
}

func validateLocalBody(op string, d types.Draft, body string, format types.ContentFormat) error {
	v, ok := d.DefaultContent()
	if !ok {
		return domainagg.FieldError(op, domainagg.FieldBody, fmt.Sprintf("%s articles have no body", d.Type))
	}
	if v.Sync.IsSynced {
		return domainagg.FieldError(op, domainagg.FieldBody, "body is mirrored from an external document; disable sync to edit")
	}
	switch format {
	case types.FormatDoc:
		if _, err := doc.Parse(body); err != nil {
			return domainagg.FieldError(op, domainagg.FieldBody, err.Error())
		}
	case types.FormatHTML:
	default:
		return domainagg.FieldError(op, domainagg.FieldBody, fmt.Sprintf("unknown content format %q", format))
	}
	return nil
}

func (m Body) Apply(d types.Draft) types.Draft {
	return withBody(d, m.Value, m.format())
}

func (m Body) Commit(ctx context.Context, r Remote, d types.Draft) (types.Draft, error) {
	return commitBody(ctx, r, d)
}

func commitBody(ctx context.Context, r Remote, d types.Draft) (types.Draft, error) {
	v, ok := d.DefaultContent()
	if !ok {
		return d, domainagg.FieldError("Drafts.Session.body", domainagg.FieldBody, "draft is no longer a default article")
	}
	s, err := r.UpdateBody(ctx, d.ArticleID, v.Sync.Content, v.Sync.Format)
	if err != nil {
		return d, err
	}
	return withBody(d, s.Content, s.Format), nil
}

// PatchImage points an image node at its stored asset once ingestion lands.
type PatchImage struct {
	base
	CorrelationID string
	NodeID        string
	Src           string
	MediaID       uuid.UUID
}

func (PatchImage) Kind() string     { return "patch_image" }
func (PatchImage) Fields() []Field  { return []Field{FieldBody} }
func (PatchImage) Scopes() []string { return []string{ScopeContentSource} }

// ErrNodeGone is returned by PatchImage when the node was removed while it
// was being ingested.
var ErrNodeGone = errors.New("image node no longer in body")

func (m PatchImage) target() doc.Target {
	return doc.Target{CorrelationID: m.CorrelationID, NodeID: m.NodeID}
}

func (m PatchImage) Validate(d types.Draft) error {
	op := opName(m.Kind())
	v, ok := d.DefaultContent()
	if !ok || v.Sync.IsSynced || v.Sync.Format != types.FormatDoc {
		return domainagg.NewError(domainagg.CodeNotFound, op, "draft has no local document body", ErrNodeGone)
	}
	root, err := doc.Parse(v.Sync.Content)
	if err != nil {
		return domainagg.FieldError(op, domainagg.FieldBody, err.Error())
	}
	if _, found := doc.PatchImage(root, m.target(), m.Src, m.MediaID.String()); !found {
		return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("image node %s not found", m.NodeID), ErrNodeGone)
	}
	return nil
}

func (m PatchImage) Apply(d types.Draft) types.Draft {
	v, ok := d.DefaultContent()
	if !ok {
		return d
	}
	root, err := doc.Parse(v.Sync.Content)
	if err != nil {
		return d
	}
	patched, found := doc.PatchImage(root, m.target(), m.Src, m.MediaID.String())
	if !found {
		return d
	}
	raw, err := patched.Marshal()
	if err != nil {
		return d
	}
	return withBody(d, raw, types.FormatDoc)
}

func (m PatchImage) Commit(ctx context.Context, r Remote, d types.Draft) (types.Draft, error) {
	return commitBody(ctx, r, d)
}

type GraphicMedia struct {
	base
	MediaIDs []uuid.UUID
}

func (GraphicMedia) Kind() string    { return "graphic_media" }
func (GraphicMedia) Fields() []Field { return []Field{FieldGraphicMedia} }

func (m GraphicMedia) Validate(d types.Draft) error {
	if _, ok := d.Content.(types.GraphicVariant); !ok {
		return domainagg.FieldError(opName(m.Kind()), domainagg.FieldGraphicMedia, "only graphic articles carry media attachments")
	}
	return nil
}

func (m GraphicMedia) Apply(d types.Draft) types.Draft {
	if v, ok := d.Content.(types.GraphicVariant); ok {
		v.MediaIDs = append([]uuid.UUID(nil), m.MediaIDs...)
		d.Content = v
	}
	return d
}

func (m GraphicMedia) Commit(ctx context.Context, r Remote, d types.Draft) (types.Draft, error) {
	v, ok := d.Content.(types.GraphicVariant)
	if !ok {
		return d, domainagg.FieldError(opName(m.Kind()), domainagg.FieldGraphicMedia, "draft is no longer a graphic article")
	}
	ids, err := r.UpdateGraphicMedia(ctx, d.ArticleID, v.MediaIDs)
	if err != nil {
		return d, err
	}
	v.MediaIDs = ids
	d.Content = v
	return d, nil
}

// Type switches the content variant. The previous variant is stashed, never
// dropped.
type Type struct {
	base
	Target types.ArticleType
}

func (Type) Kind() string     { return "type" }
func (Type) Fields() []Field  { return []Field{FieldType, FieldVariants} }
func (Type) Scopes() []string { return []string{ScopeContentSource} }

func (m Type) Validate(types.Draft) error {
	if !m.Target.Valid() {
		return domainagg.FieldError(opName(m.Kind()), domainagg.FieldType, fmt.Sprintf("unknown article type %q", m.Target))
	}
	return nil
}

func (m Type) Apply(d types.Draft) types.Draft {
	next, stash, err := types.SwitchVariant(d.Content, d.Inactive, m.Target)
	if err != nil {
		return d
	}
	d.Type = m.Target
	d.Content = next
	d.Inactive = stash
	return d
}

func (m Type) Commit(ctx context.Context, r Remote, d types.Draft) (types.Draft, error) {
	got, err := r.SwitchType(ctx, d.ArticleID, d.Type)
	if err != nil {
		return d, err
	}
	d.Type = got.Type
	d.Content = got.Content
	d.Inactive = got.Inactive
	if got.Version > d.Version {
		d.Version = got.Version
	}
	return d, nil
}

type Authors struct {
	base
	UserIDs []uuid.UUID
}

func (Authors) Kind() string               { return "authors" }
func (Authors) Fields() []Field            { return []Field{FieldAuthors} }
func (Authors) Validate(types.Draft) error { return nil }

func (m Authors) Apply(d types.Draft) types.Draft {
	d.AuthorIDs = append([]uuid.UUID(nil), m.UserIDs...)
	return d
}

func (m Authors) Commit(ctx context.Context, r Remote, d types.Draft) (types.Draft, error) {
	ids, err := r.ReplaceAuthors(ctx, d.ArticleID, d.AuthorIDs)
	if err != nil {
		return d, err
	}
	d.AuthorIDs = ids
	return d, nil
}

type Topics struct {
	base
	TopicIDs []uuid.UUID
}

func (Topics) Kind() string               { return "topics" }
func (Topics) Fields() []Field            { return []Field{FieldTopics} }
func (Topics) Validate(types.Draft) error { return nil }

func (m Topics) Apply(d types.Draft) types.Draft {
	d.TopicIDs = append([]uuid.UUID(nil), m.TopicIDs...)
	return d
}

func (m Topics) Commit(ctx context.Context, r Remote, d types.Draft) (types.Draft, error) {
	ids, err := r.ReplaceTopics(ctx, d.ArticleID, d.TopicIDs)
	if err != nil {
		return d, err
	}
	d.TopicIDs = ids
	return d, nil
}

// Status moves the draft between partitions. The store may hand back a
// re-derived slug when the target partition already holds the current one.
type Status struct {
	base
	To types.ArticleStatus
}

func (Status) Kind() string     { return "status" }
func (Status) Fields() []Field  { return []Field{FieldStatus, FieldSlug} }
func (Status) Scopes() []string { return []string{ScopeSlug} }

func (m Status) Validate(types.Draft) error {
	if !m.To.Valid() {
		return domainagg.FieldError(opName(m.Kind()), domainagg.FieldStatus, fmt.Sprintf("unknown status %q", m.To))
	}
	return nil
}

func (m Status) Apply(d types.Draft) types.Draft {
	d.Status = m.To
	return d
}

func (m Status) Commit(ctx context.Context, r Remote, d types.Draft) (types.Draft, error) {
	a, err := r.TransitionStatus(ctx, d.ArticleID, d.Status)
	if err != nil {
		return d, err
	}
	return withArticle(d, a), nil
}

// EnableSync mirrors an external document. It is destructive of local body
// edits and needs explicit confirmation.
type EnableSync struct {
	base
	URL       *string
	Confirmed bool
}

func (EnableSync) Kind() string     { return "enable_sync" }
func (EnableSync) Fields() []Field  { return []Field{FieldSync, FieldBody} }
func (EnableSync) Scopes() []string { return []string{ScopeContentSource} }

func (m EnableSync) Validate(d types.Draft) error {
	op := opName(m.Kind())
	v, ok := d.DefaultContent()
	if !ok {
		return domainagg.FieldError(op, domainagg.FieldSync, "only default articles can mirror an external document")
	}
	if !m.Confirmed {
		return domainagg.FieldError(op, domainagg.FieldSync, "enabling sync replaces local edits and must be confirmed")
	}
	if (m.URL == nil || strings.TrimSpace(*m.URL) == "") && v.Sync.EditingURL == "" {
		return domainagg.FieldError(op, domainagg.FieldSync, "no linked document; provide a url")
	}
	return nil
}

// Apply flips the flag only; the mirrored body arrives with the commit.
func (m EnableSync) Apply(d types.Draft) types.Draft {
	if v, ok := d.DefaultContent(); ok {
		v.Sync = v.Sync.Clone()
		v.Sync.IsSynced = true
		v.Sync.SyncDisabledAt = nil
		d.Content = v
	}
	return d
}

func (m EnableSync) Commit(ctx context.Context, r Remote, d types.Draft) (types.Draft, error) {
	s, err := r.EnableSync(ctx, d.ArticleID, m.URL, m.Confirmed)
	if err != nil {
		return d, err
	}
	return withSync(d, s), nil
}

type DisableSync struct {
	base
	Now func() time.Time
}

func (DisableSync) Kind() string     { return "disable_sync" }
func (DisableSync) Fields() []Field  { return []Field{FieldSync, FieldBody} }
func (DisableSync) Scopes() []string { return []string{ScopeContentSource} }

func (m DisableSync) Validate(d types.Draft) error {
	v, ok := d.DefaultContent()
	if !ok || !v.Sync.IsSynced {
		return domainagg.FieldError(opName(m.Kind()), domainagg.FieldSync, "draft is not mirroring an external document")
	}
	return nil
}

func (m DisableSync) Apply(d types.Draft) types.Draft {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	if v, ok := d.DefaultContent(); ok {
		t := now().UTC()
		v.Sync = v.Sync.Clone()
		v.Sync.IsSynced = false
		v.Sync.SyncDisabledAt = &t
		d.Content = v
	}
	return d
}

func (m DisableSync) Commit(ctx context.Context, r Remote, d types.Draft) (types.Draft, error) {
	s, err := r.DisableSync(ctx, d.ArticleID)
	if err != nil {
		return d, err
	}
	return withSync(d, s), nil
}

// RefreshMirror replaces the cached mirror with a fresher export of the
// linked document.
type RefreshMirror struct {
	base
	HTML       string
	EditingURL string
}

func (RefreshMirror) Kind() string     { return "refresh_mirror" }
func (RefreshMirror) Fields() []Field  { return []Field{FieldBody} }
func (RefreshMirror) Scopes() []string { return []string{ScopeContentSource} }

// ErrMirrorMoved is returned by RefreshMirror when sync was turned off or
// relinked after the export.
var ErrMirrorMoved = errors.New("mirror no longer linked to exported document")

func (m RefreshMirror) Validate(d types.Draft) error {
	v, ok := d.DefaultContent()
	if !ok || !v.Sync.IsSynced || v.Sync.EditingURL != m.EditingURL {
		return domainagg.NewError(domainagg.CodeConflict, opName(m.Kind()), "draft no longer mirrors this document", ErrMirrorMoved)
	}
	return nil
}

func (m RefreshMirror) Apply(d types.Draft) types.Draft {
	if v, ok := d.DefaultContent(); ok {
		v.Sync = v.Sync.Clone()
		v.Sync.Content = m.HTML
		v.Sync.Format = types.FormatHTML
		d.Content = v
	}
	return d
}

func (m RefreshMirror) Commit(ctx context.Context, r Remote, d types.Draft) (types.Draft, error) {
	s, err := r.RefreshMirror(ctx, d.ArticleID, m.HTML, m.EditingURL)
	if err != nil {
		return d, err
	}
	return withSync(d, s), nil
}
