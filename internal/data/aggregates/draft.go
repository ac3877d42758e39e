package aggregates

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/yungbote/draftsync-backend/internal/data/repos"
	domainagg "github.com/yungbote/draftsync-backend/internal/domain/aggregates"
	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"github.com/yungbote/draftsync-backend/internal/modules/drafts/doc"
	"github.com/yungbote/draftsync-backend/internal/modules/drafts/slug"
	"github.com/yungbote/draftsync-backend/internal/platform/dbctx"
)

const (
	articleTable    = "article"
	maxSlugAttempts = 3
)

// SlugAllocator derives partition-unique slugs inside a transaction.
type SlugAllocator interface {
	Unique(dbc dbctx.Context, status types.ArticleStatus, title string, excludeID uuid.UUID) (string, error)
	Available(dbc dbctx.Context, status types.ArticleStatus, slug string, excludeID uuid.UUID) (bool, error)
}

type DraftAggregateDeps struct {
	Base BaseDeps

	Articles repos.ArticleRepo
	Content  repos.ContentRepo
	Links    repos.LinkRepo
	Media    repos.MediaAssetRepo
	Slugs    SlugAllocator
}

type draftAggregate struct {
	deps DraftAggregateDeps
}

func NewDraftAggregate(deps DraftAggregateDeps) domainagg.DraftAggregate {
	deps.Base = deps.Base.withDefaults()
	return &draftAggregate{deps: deps}
}

func (a *draftAggregate) Create(ctx context.Context, in domainagg.CreateDraftInput) (types.Draft, error) {
	const op = "Drafts.Draft.Create"
	var out types.Draft

	title := strings.TrimSpace(in.Title)
	if utf8.RuneCountInString(title) > domainagg.MaxTitleLen {
		return out, domainagg.FieldError(op, domainagg.FieldTitle, fmt.Sprintf("title exceeds %d characters", domainagg.MaxTitleLen))
	}
	typ := in.Type
	if typ == "" {
		typ = types.TypeDefault
	}
	shell, err := types.Shell(typ)
	if err != nil {
		return out, domainagg.FieldError(op, domainagg.FieldType, err.Error())
	}
	articleID := uuid.New()

	err = executeWriteRetrying(ctx, a.deps.Base, op, maxSlugAttempts, func(dbc dbctx.Context) error {
		s, err := a.deps.Slugs.Unique(dbc, types.StatusDraft, title, uuid.Nil)
		if err != nil {
			return err
		}
		art := &types.Article{
			ID:                  articleID,
			Title:               title,
			Slug:                s,
			DeriveSlugFromTitle: true,
			Status:              types.StatusDraft,
			Type:                typ,
		}
		if _, err := a.deps.Articles.Create(dbc, []*types.Article{art}); err != nil {
			return err
		}
		if err := a.persistVariant(dbc, articleID, shell, true); err != nil {
			return err
		}
		if err := a.deps.Links.ReplaceAuthors(dbc, articleID, in.AuthorIDs); err != nil {
			return err
		}
		if err := a.deps.Links.ReplaceTopics(dbc, articleID, in.TopicIDs); err != nil {
			return err
		}
		d, err := a.loadDraft(dbc, art)
		if err != nil {
			return err
		}
		out = d
		return nil
	})
	return out, err
}

func (a *draftAggregate) Load(ctx context.Context, articleID uuid.UUID) (types.Draft, error) {
	const op = "Drafts.Draft.Load"
	dbc := dbctx.Context{Ctx: ctx}
	art, err := a.requireArticle(dbc, op, articleID)
	if err != nil {
		return types.Draft{}, MapError(op, err)
	}
	d, err := a.loadDraft(dbc, art)
	if err != nil {
		return types.Draft{}, MapError(op, err)
	}
	return d, nil
}

func (a *draftAggregate) UpdateTitle(ctx context.Context, articleID uuid.UUID, title string) (types.Article, error) {
	const op = "Drafts.Draft.UpdateTitle"
	var out types.Article

	title = strings.TrimSpace(title)
	if title == "" {
		return out, domainagg.FieldError(op, domainagg.FieldTitle, "title is required")
	}
	if utf8.RuneCountInString(title) > domainagg.MaxTitleLen {
		return out, domainagg.FieldError(op, domainagg.FieldTitle, fmt.Sprintf("title exceeds %d characters", domainagg.MaxTitleLen))
	}

	err := executeWriteRetrying(ctx, a.deps.Base, op, maxSlugAttempts, func(dbc dbctx.Context) error {
		art, err := a.requireArticle(dbc, op, articleID)
		if err != nil {
			return err
		}
		updates := map[string]any{"title": title, "updated_at": time.Now().UTC()}
		if art.DeriveSlugFromTitle {
			s, err := a.deps.Slugs.Unique(dbc, art.Status, title, art.ID)
			if err != nil {
				return err
			}
			updates["slug"] = s
			art.Slug = s
		}
		if err := a.casUpdate(dbc, art, updates); err != nil {
			return err
		}
		art.Title = title
		out = *art
		return nil
	})
	return out, err
}

func (a *draftAggregate) UpdateSlug(ctx context.Context, articleID uuid.UUID, raw string) (types.Article, error) {
	const op = "Drafts.Draft.UpdateSlug"
	var out types.Article

	s := slug.Normalize(raw)
	if s == "" {
		return out, domainagg.FieldError(op, domainagg.FieldSlug, "slug must contain letters or digits")
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		art, err := a.requireArticle(dbc, op, articleID)
		if err != nil {
			return err
		}
		ok, err := a.deps.Slugs.Available(dbc, art.Status, s, art.ID)
		if err != nil {
			return err
		}
		if !ok {
			return domainagg.FieldError(op, domainagg.FieldSlug, fmt.Sprintf("slug %q is already in use", s))
		}
		if err := a.casUpdate(dbc, art, map[string]any{
			"slug":                   s,
			"derive_slug_from_title": false,
			"updated_at":             time.Now().UTC(),
		}); err != nil {
			return err
		}
		art.Slug = s
		art.DeriveSlugFromTitle = false
		out = *art
		return nil
	})
	if IsUniqueViolation(err) {
		// Lost a race for the same manual slug.
		return out, domainagg.FieldError(op, domainagg.FieldSlug, fmt.Sprintf("slug %q is already in use", s))
	}
	return out, err
}

func (a *draftAggregate) SetDeriveSlug(ctx context.Context, articleID uuid.UUID, derive bool) (types.Article, error) {
	const op = "Drafts.Draft.SetDeriveSlug"
	var out types.Article

	err := executeWriteRetrying(ctx, a.deps.Base, op, maxSlugAttempts, func(dbc dbctx.Context) error {
		art, err := a.requireArticle(dbc, op, articleID)
		if err != nil {
			return err
		}
		updates := map[string]any{"derive_slug_from_title": derive, "updated_at": time.Now().UTC()}
		if derive {
			s, err := a.deps.Slugs.Unique(dbc, art.Status, art.Title, art.ID)
			if err != nil {
				return err
			}
			updates["slug"] = s
			art.Slug = s
		}
		if err := a.casUpdate(dbc, art, updates); err != nil {
			return err
		}
		art.DeriveSlugFromTitle = derive
		out = *art
		return nil
	})
	return out, err
}

func (a *draftAggregate) UpdateDescription(ctx context.Context, articleID uuid.UUID, description string) (string, error) {
	const op = "Drafts.Draft.UpdateDescription"
	description = strings.TrimSpace(description)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		art, err := a.requireArticle(dbc, op, articleID)
		if err != nil {
			return err
		}
		updates := map[string]interface{}{"description": description}
		switch art.Type {
		case types.TypeDefault:
			if err := a.ensureDefault(dbc, art.ID); err != nil {
				return err
			}
			return a.deps.Content.UpdateDefault(dbc, art.ID, updates)
		case types.TypeGraphic:
			if err := a.ensureGraphic(dbc, art.ID); err != nil {
				return err
			}
			return a.deps.Content.UpdateGraphic(dbc, art.ID, updates)
		case types.TypeHeadline:
			return domainagg.FieldError(op, domainagg.FieldDescription, "headline articles have no description")
		default:
			return InvariantError(fmt.Sprintf("unknown article type %q", art.Type))
		}
	})
	return description, err
}

func (a *draftAggregate) UpdateBody(ctx context.Context, articleID uuid.UUID, body string, format types.ContentFormat) (domainagg.BodyChange, error) {
	const op = "Drafts.Draft.UpdateBody"
	var out domainagg.BodyChange

	if format == "" {
		format = types.FormatDoc
	}
	switch format {
	case types.FormatDoc:
		if _, err := doc.Parse(body); err != nil {
			return out, domainagg.FieldError(op, domainagg.FieldBody, err.Error())
		}
	case types.FormatHTML:
	default:
		return out, domainagg.FieldError(op, domainagg.FieldBody, fmt.Sprintf("unknown content format %q", format))
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		art, err := a.requireArticle(dbc, op, articleID)
		if err != nil {
			return err
		}
		if art.Type != types.TypeDefault {
			return domainagg.FieldError(op, domainagg.FieldBody, fmt.Sprintf("%s articles have no body", art.Type))
		}
		row, err := a.deps.Content.GetDefault(dbc, art.ID)
		if err != nil {
			return err
		}
		if row == nil {
			return InvariantError("default article has no content row")
		}
		before := row.Variant().Sync
		if before.IsSynced {
			return domainagg.FieldError(op, domainagg.FieldBody, "body is mirrored from an external document; disable sync to edit")
		}
		if err := a.deps.Content.UpdateDefault(dbc, art.ID, map[string]interface{}{
			"content":        body,
			"content_format": format,
		}); err != nil {
			return err
		}
		after := before.Clone()
		after.Content = body
		after.Format = format
		out = domainagg.BodyChange{Before: before, After: after}
		return nil
	})
	return out, err
}

func (a *draftAggregate) UpdateGraphicMedia(ctx context.Context, articleID uuid.UUID, mediaIDs []uuid.UUID) ([]uuid.UUID, error) {
	const op = "Drafts.Draft.UpdateGraphicMedia"
	var out []uuid.UUID

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		art, err := a.requireArticle(dbc, op, articleID)
		if err != nil {
			return err
		}
		if art.Type != types.TypeGraphic {
			return domainagg.FieldError(op, domainagg.FieldGraphicMedia, "only graphic articles carry media attachments")
		}
		ids := uniqueIDs(mediaIDs)
		rows, err := a.deps.Media.GetByIDs(dbc, ids)
		if err != nil {
			return err
		}
		if len(rows) != len(ids) {
			return domainagg.FieldError(op, domainagg.FieldGraphicMedia, "unknown media id")
		}
		for _, m := range rows {
			if m.ArticleID != art.ID {
				return domainagg.FieldError(op, domainagg.FieldGraphicMedia, "media belongs to another article")
			}
		}
		if err := a.ensureGraphic(dbc, art.ID); err != nil {
			return err
		}
		raw, err := types.MediaIDsJSON(ids)
		if err != nil {
			return err
		}
		if err := a.deps.Content.UpdateGraphic(dbc, art.ID, map[string]interface{}{"media_ids": raw}); err != nil {
			return err
		}
		out = ids
		return nil
	})
	return out, err
}

func (a *draftAggregate) SwitchType(ctx context.Context, articleID uuid.UUID, target types.ArticleType) (types.Draft, error) {
	const op = "Drafts.Draft.SwitchType"
	var out types.Draft

	if !target.Valid() {
		return out, domainagg.FieldError(op, domainagg.FieldType, fmt.Sprintf("unknown article type %q", target))
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		art, err := a.requireArticle(dbc, op, articleID)
		if err != nil {
			return err
		}
		d, err := a.loadDraft(dbc, art)
		if err != nil {
			return err
		}
		if art.Type == target {
			out = d
			return nil
		}
		next, stash, err := types.SwitchVariant(d.Content, d.Inactive, target)
		if err != nil {
			return InvariantError(err.Error())
		}
		_, existed := d.Inactive[target]
		if err := a.persistVariant(dbc, art.ID, next, !existed); err != nil {
			return err
		}
		if err := a.casUpdate(dbc, art, map[string]any{"type": target, "updated_at": time.Now().UTC()}); err != nil {
			return err
		}
		d.Type = target
		d.Version = art.Version
		d.Content = next
		d.Inactive = stash
		out = d
		return nil
	})
	return out, err
}

func (a *draftAggregate) ReplaceAuthors(ctx context.Context, articleID uuid.UUID, userIDs []uuid.UUID) ([]uuid.UUID, error) {
	const op = "Drafts.Draft.ReplaceAuthors"
	var out []uuid.UUID
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if _, err := a.requireArticle(dbc, op, articleID); err != nil {
			return err
		}
		if err := a.deps.Links.ReplaceAuthors(dbc, articleID, userIDs); err != nil {
			return err
		}
		ids, err := a.deps.Links.ListAuthors(dbc, articleID)
		if err != nil {
			return err
		}
		out = ids
		return nil
	})
	return out, err
}

func (a *draftAggregate) ReplaceTopics(ctx context.Context, articleID uuid.UUID, topicIDs []uuid.UUID) ([]uuid.UUID, error) {
	const op = "Drafts.Draft.ReplaceTopics"
	var out []uuid.UUID
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if _, err := a.requireArticle(dbc, op, articleID); err != nil {
			return err
		}
		if err := a.deps.Links.ReplaceTopics(dbc, articleID, topicIDs); err != nil {
			return err
		}
		ids, err := a.deps.Links.ListTopics(dbc, articleID)
		if err != nil {
			return err
		}
		out = ids
		return nil
	})
	return out, err
}

// statusSources lists the states each status may be entered from.
var statusSources = map[types.ArticleStatus][]string{
	types.StatusPublished: {string(types.StatusDraft)},
	types.StatusDraft:     {string(types.StatusPublished)},
	types.StatusArchived:  {string(types.StatusDraft), string(types.StatusPublished)},
}

func (a *draftAggregate) TransitionStatus(ctx context.Context, articleID uuid.UUID, to types.ArticleStatus) (types.Article, error) {
	const op = "Drafts.Draft.TransitionStatus"
	var out types.Article

	sources, ok := statusSources[to]
	if !ok {
		return out, domainagg.FieldError(op, domainagg.FieldStatus, fmt.Sprintf("unknown status %q", to))
	}

	err := executeWriteRetrying(ctx, a.deps.Base, op, maxSlugAttempts, func(dbc dbctx.Context) error {
		art, err := a.requireArticle(dbc, op, articleID)
		if err != nil {
			return err
		}
		if err := RequireStatusAllowed(string(art.Status), sources...); err != nil {
			return domainagg.FieldError(op, domainagg.FieldStatus, fmt.Sprintf("cannot move from %s to %s", art.Status, to))
		}
		updates := map[string]any{"status": to, "updated_at": time.Now().UTC()}
		if to != types.StatusArchived {
			free, err := a.deps.Slugs.Available(dbc, to, art.Slug, art.ID)
			if err != nil {
				return err
			}
			if !free {
				s, err := a.deps.Slugs.Unique(dbc, to, art.Slug, art.ID)
				if err != nil {
					return err
				}
				updates["slug"] = s
				art.Slug = s
			}
		}
		if err := a.casUpdate(dbc, art, updates); err != nil {
			return err
		}
		art.Status = to
		out = *art
		return nil
	})
	return out, err
}

func (a *draftAggregate) CommitSync(ctx context.Context, articleID uuid.UUID, fn domainagg.SyncTransition) (types.SyncState, error) {
	const op = "Drafts.Draft.CommitSync"
	var out types.SyncState
	if fn == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "missing sync transition", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		art, err := a.requireArticle(dbc, op, articleID)
		if err != nil {
			return err
		}
		if art.Type != types.TypeDefault {
			return domainagg.FieldError(op, domainagg.FieldSync, "only default articles can mirror an external document")
		}
		if err := a.ensureDefault(dbc, art.ID); err != nil {
			return err
		}
		row, err := a.deps.Content.GetDefault(dbc, art.ID)
		if err != nil {
			return err
		}
		next, err := fn(row.Variant().Sync)
		if err != nil {
			return err
		}
		if err := a.deps.Content.UpdateDefault(dbc, art.ID, types.SyncColumns(next)); err != nil {
			return err
		}
		out = next
		return nil
	})
	return out, err
}

func (a *draftAggregate) requireArticle(dbc dbctx.Context, op string, id uuid.UUID) (*types.Article, error) {
	if id == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing article id", nil)
	}
	art, err := a.deps.Articles.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if art == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("article not found: %s", id), nil)
	}
	return art, nil
}

func (a *draftAggregate) casUpdate(dbc dbctx.Context, art *types.Article, updates map[string]any) error {
	ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, articleTable, art.ID, art.Version, updates)
	if err != nil {
		return err
	}
	if err := RequireCASSuccess(ok, "article changed concurrently"); err != nil {
		return err
	}
	art.Version++
	return nil
}

// loadDraft assembles the full representation; every persisted variant row
// is loaded so non-active content travels with the draft.
func (a *draftAggregate) loadDraft(dbc dbctx.Context, art *types.Article) (types.Draft, error) {
	d := types.Draft{
		ArticleID:           art.ID,
		Title:               art.Title,
		Slug:                art.Slug,
		DeriveSlugFromTitle: art.DeriveSlugFromTitle,
		Status:              art.Status,
		Type:                art.Type,
		Version:             art.Version,
		UpdatedAt:           art.UpdatedAt,
		Inactive:            map[types.ArticleType]types.ContentVariant{},
	}
	var err error
	if d.AuthorIDs, err = a.deps.Links.ListAuthors(dbc, art.ID); err != nil {
		return d, err
	}
	if d.TopicIDs, err = a.deps.Links.ListTopics(dbc, art.ID); err != nil {
		return d, err
	}

	variants := map[types.ArticleType]types.ContentVariant{}
	def, err := a.deps.Content.GetDefault(dbc, art.ID)
	if err != nil {
		return d, err
	}
	if def != nil {
		variants[types.TypeDefault] = def.Variant()
	}
	gr, err := a.deps.Content.GetGraphic(dbc, art.ID)
	if err != nil {
		return d, err
	}
	if gr != nil {
		gv, err := gr.Variant()
		if err != nil {
			return d, err
		}
		variants[types.TypeGraphic] = gv
	}

	for t, v := range variants {
		if t == art.Type {
			d.Content = v
			continue
		}
		d.Inactive[t] = v
	}
	if d.Content == nil {
		shell, err := types.Shell(art.Type)
		if err != nil {
			return d, InvariantError(err.Error())
		}
		d.Content = shell
	}
	return d, nil
}

// persistVariant writes the active variant. A new row is created; for an
// existing row only the description can have been carried forward.
func (a *draftAggregate) persistVariant(dbc dbctx.Context, articleID uuid.UUID, v types.ContentVariant, create bool) error {
	switch c := v.(type) {
	case types.DefaultVariant:
		if create {
			return a.deps.Content.CreateDefault(dbc, types.DefaultContentFor(articleID, c))
		}
		return a.deps.Content.UpdateDefault(dbc, articleID, map[string]interface{}{"description": c.Description})
	case types.GraphicVariant:
		if create {
			row, err := types.GraphicContentFor(articleID, c)
			if err != nil {
				return err
			}
			return a.deps.Content.CreateGraphic(dbc, row)
		}
		return a.deps.Content.UpdateGraphic(dbc, articleID, map[string]interface{}{"description": c.Description})
	case types.HeadlineVariant:
		return nil
	default:
		return InvariantError(fmt.Sprintf("unhandled content variant %T", v))
	}
}

func (a *draftAggregate) ensureDefault(dbc dbctx.Context, articleID uuid.UUID) error {
	row, err := a.deps.Content.GetDefault(dbc, articleID)
	if err != nil || row != nil {
		return err
	}
	return a.deps.Content.CreateDefault(dbc, types.DefaultContentFor(articleID, types.DefaultVariant{}))
}

func (a *draftAggregate) ensureGraphic(dbc dbctx.Context, articleID uuid.UUID) error {
	row, err := a.deps.Content.GetGraphic(dbc, articleID)
	if err != nil || row != nil {
		return err
	}
	created, err := types.GraphicContentFor(articleID, types.GraphicVariant{})
	if err != nil {
		return err
	}
	return a.deps.Content.CreateGraphic(dbc, created)
}

func uniqueIDs(in []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(in))
	out := make([]uuid.UUID, 0, len(in))
	for _, id := range in {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
