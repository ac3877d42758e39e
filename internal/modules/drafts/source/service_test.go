package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/yungbote/draftsync-backend/internal/data/aggregates"
	"github.com/yungbote/draftsync-backend/internal/data/repos"
	"github.com/yungbote/draftsync-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/draftsync-backend/internal/domain/aggregates"
	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"github.com/yungbote/draftsync-backend/internal/modules/drafts/slug"
	"github.com/yungbote/draftsync-backend/internal/platform/gcp"
)

type fakeDoc struct {
	name     string
	html     string
	modified time.Time
}

type fakeProvider struct {
	docs      map[string]*fakeDoc
	exportErr error
	copies    int
	exports   int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{docs: map[string]*fakeDoc{}}
}

func (p *fakeProvider) Copy(_ context.Context, sourceID, name string) (string, error) {
	src, ok := p.docs[sourceID]
	if !ok {
		return "", gcp.ErrDocNotFound
	}
	p.copies++
	id := fmt.Sprintf("copy%020d", p.copies)
	p.docs[id] = &fakeDoc{name: name, html: src.html, modified: src.modified}
	return id, nil
}

func (p *fakeProvider) Get(_ context.Context, id string) (gcp.DocMeta, error) {
	d, ok := p.docs[id]
	if !ok {
		return gcp.DocMeta{}, fmt.Errorf("get %s: %w", id, gcp.ErrDocNotFound)
	}
	return gcp.DocMeta{ID: id, Name: d.name, ModifiedTime: d.modified}, nil
}

func (p *fakeProvider) Export(_ context.Context, id, _ string) (string, error) {
	p.exports++
	if p.exportErr != nil {
		return "", p.exportErr
	}
	d, ok := p.docs[id]
	if !ok {
		return "", gcp.ErrDocNotFound
	}
	return d.html, nil
}

type cdnMirror struct{}

func (cdnMirror) MirrorHTML(_ context.Context, _ uuid.UUID, html string) (string, error) {
	return strings.ReplaceAll(html, "http://remote/", "https://cdn/"), nil
}

type fixture struct {
	svc      Service
	agg      domainagg.DraftAggregate
	provider *fakeProvider
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	set := repos.NewSet(db, log)
	agg := aggregates.NewDraftAggregate(aggregates.DraftAggregateDeps{
		Base:     aggregates.BaseDeps{DB: db, Log: log},
		Articles: set.Articles,
		Content:  set.Content,
		Links:    set.Links,
		Media:    set.Media,
		Slugs:    slug.NewDeriver(set.Articles, log),
	})
	f := &fixture{agg: agg, provider: newFakeProvider(), now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	f.svc = NewService(Deps{
		Log:      log,
		Provider: f.provider,
		Store:    agg,
		Mirror:   cdnMirror{},
		Now:      func() time.Time { return f.now },
	})
	return f
}

const origID = "1OriginalDocumentIdentifier"

func (f *fixture) draftWithBody(t *testing.T, body string) uuid.UUID {
	t.Helper()
	d, err := f.agg.Create(context.Background(), domainagg.CreateDraftInput{Title: "Synced Story"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.agg.UpdateBody(context.Background(), d.ArticleID, body, types.FormatDoc); err != nil {
		t.Fatalf("body: %v", err)
	}
	return d.ArticleID
}

func TestSyncRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.docs[origID] = &fakeDoc{name: "Story", html: `<p>remote</p><img src="http://remote/a.png">`}
	id := f.draftWithBody(t, `{"type":"doc"}`)

	url := "https://docs.google.com/document/d/" + origID + "/edit"
	on, err := f.svc.EnableSync(ctx, id, &url, true)
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	wantHTML := `<p>remote</p><img src="https://cdn/a.png">`
	if !on.IsSynced || on.Content != wantHTML || on.OriginalURL != url {
		t.Fatalf("enabled state: got %+v", on)
	}
	if f.provider.copies != 1 || !strings.Contains(on.EditingURL, "copy") {
		t.Fatalf("editing copy: copies=%d editing=%s", f.provider.copies, on.EditingURL)
	}

	off, err := f.svc.DisableSync(ctx, id)
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	if off.IsSynced || off.Content != wantHTML {
		t.Fatalf("disabled keeps body: got %+v", off)
	}
	if _, err := f.agg.UpdateBody(ctx, id, `{"type":"doc","content":[]}`, types.FormatDoc); err != nil {
		t.Fatalf("local edit after disable: %v", err)
	}

	again, err := f.svc.EnableSync(ctx, id, nil, true)
	if err != nil {
		t.Fatalf("re-enable: %v", err)
	}
	if f.provider.copies != 1 {
		t.Fatalf("re-enable should reuse the editing copy: copies=%d", f.provider.copies)
	}
	if again.EditingURL != on.EditingURL || again.OriginalURL != url || again.Content != wantHTML {
		t.Fatalf("re-enabled state: got %+v", again)
	}
}

func TestEnableSyncRequiresConfirmation(t *testing.T) {
	f := newFixture(t)
	id := f.draftWithBody(t, `{"type":"doc"}`)
	url := "https://docs.google.com/document/d/" + origID + "/edit"
	_, err := f.svc.EnableSync(context.Background(), id, &url, false)
	if domainagg.FieldOf(err) != domainagg.FieldSync {
		t.Fatalf("unconfirmed: want sync field error got=%v", err)
	}
	if f.provider.exports != 0 {
		t.Fatalf("unconfirmed enable must not reach the provider")
	}
}

func TestEnableSyncWithoutLinkedDocument(t *testing.T) {
	f := newFixture(t)
	id := f.draftWithBody(t, `{"type":"doc"}`)
	_, err := f.svc.EnableSync(context.Background(), id, nil, true)
	if domainagg.FieldOf(err) != domainagg.FieldSync {
		t.Fatalf("no url: want sync field error got=%v", err)
	}
}

func TestEnableSyncProviderFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.docs[origID] = &fakeDoc{name: "Story", html: "<p>remote</p>"}
	f.provider.exportErr = errors.New("connection reset")
	body := `{"type":"doc","content":[{"type":"paragraph"}]}`
	id := f.draftWithBody(t, body)

	url := "https://docs.google.com/document/d/" + origID + "/edit"
	_, err := f.svc.EnableSync(ctx, id, &url, true)
	if !domainagg.IsCode(err, domainagg.CodeRemoteUnavailable) {
		t.Fatalf("export failure: want remote_unavailable got=%v", err)
	}
	d, err := f.agg.Load(ctx, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	dv, _ := d.DefaultContent()
	if dv.Sync.IsSynced || dv.Sync.Content != body {
		t.Fatalf("state after failed enable: got %+v", dv.Sync)
	}
}

func TestEnableSyncMissingDocumentIsValidation(t *testing.T) {
	f := newFixture(t)
	id := f.draftWithBody(t, `{"type":"doc"}`)
	url := "https://docs.google.com/document/d/1DoesNotExistAnywhere000/edit"
	_, err := f.svc.EnableSync(context.Background(), id, &url, true)
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("missing doc: want validation got=%v", err)
	}
}

func TestReadMirroredIsLiveAndLeavesStoreToRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.docs[origID] = &fakeDoc{name: "Story", html: "<p>v1</p>"}
	id := f.draftWithBody(t, `{"type":"doc"}`)
	url := "https://docs.google.com/document/d/" + origID + "/edit"
	on, err := f.svc.EnableSync(ctx, id, &url, true)
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	editID, _ := DocumentID(on.EditingURL)
	f.provider.docs[editID].html = "<p>v2</p>"

	c, err := f.svc.Read(ctx, id)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !c.Live || c.Body != "<p>v2</p>" || c.State != Mirrored || c.EditingURL != on.EditingURL {
		t.Fatalf("read mirrored: got %+v", c)
	}
	d, _ := f.agg.Load(ctx, id)
	dv, _ := d.DefaultContent()
	if dv.Sync.Content != "<p>v1</p>" {
		t.Fatalf("read must not write the mirror: got=%q", dv.Sync.Content)
	}
	if _, err := f.svc.RefreshMirror(ctx, id, c.Body, c.EditingURL); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	d, _ = f.agg.Load(ctx, id)
	dv, _ = d.DefaultContent()
	if dv.Sync.Content != "<p>v2</p>" {
		t.Fatalf("mirror refresh: want=<p>v2</p> got=%q", dv.Sync.Content)
	}

	f.provider.exportErr = errors.New("quota")
	_, err = f.svc.Read(ctx, id)
	if !errors.Is(err, ErrDocumentUnavailable) || !domainagg.IsCode(err, domainagg.CodeRemoteUnavailable) {
		t.Fatalf("read outage: want document unavailable got=%v", err)
	}
	d, _ = f.agg.Load(ctx, id)
	dv, _ = d.DefaultContent()
	if !dv.Sync.IsSynced || dv.Sync.Content != "<p>v2</p>" {
		t.Fatalf("outage must not touch stored state: got %+v", dv.Sync)
	}
}

func TestRefreshMirrorIgnoresRelinkedDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.docs[origID] = &fakeDoc{name: "Story", html: "<p>v1</p>"}
	id := f.draftWithBody(t, `{"type":"doc"}`)
	url := "https://docs.google.com/document/d/" + origID + "/edit"
	if _, err := f.svc.EnableSync(ctx, id, &url, true); err != nil {
		t.Fatalf("enable: %v", err)
	}

	got, err := f.svc.RefreshMirror(ctx, id, "<p>stale</p>", "https://docs.google.com/document/d/other/edit")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got.Content != "<p>v1</p>" {
		t.Fatalf("relinked refresh: want stored mirror kept got=%q", got.Content)
	}
}

func TestReadLocalReturnsStoredBody(t *testing.T) {
	f := newFixture(t)
	body := `{"type":"doc","content":[]}`
	id := f.draftWithBody(t, body)
	c, err := f.svc.Read(context.Background(), id)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if c.Live || c.Body != body || c.Format != types.FormatDoc {
		t.Fatalf("read local: got %+v", c)
	}
	if f.provider.exports != 0 {
		t.Fatalf("local read must not export")
	}
}

func TestStalenessCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.docs[origID] = &fakeDoc{name: "Story", html: "<p>v1</p>"}
	id := f.draftWithBody(t, `{"type":"doc"}`)
	url := "https://docs.google.com/document/d/" + origID + "/edit"
	on, err := f.svc.EnableSync(ctx, id, &url, true)
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if st, err := f.svc.StalenessCheck(ctx, id); err != nil || st.Stale {
		t.Fatalf("mirrored: want not stale got=%+v err=%v", st, err)
	}
	if _, err := f.svc.DisableSync(ctx, id); err != nil {
		t.Fatalf("disable: %v", err)
	}
	editID, _ := DocumentID(on.EditingURL)
	f.provider.docs[editID].modified = f.now.Add(-time.Minute)
	if st, err := f.svc.StalenessCheck(ctx, id); err != nil || st.Stale {
		t.Fatalf("older edit: want not stale got=%+v err=%v", st, err)
	}
	f.provider.docs[editID].modified = f.now.Add(time.Minute)
	st, err := f.svc.StalenessCheck(ctx, id)
	if err != nil || !st.Stale {
		t.Fatalf("newer edit: want stale got=%+v err=%v", st, err)
	}
}

func TestSyncRefusedForNonDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, err := f.agg.Create(ctx, domainagg.CreateDraftInput{Title: "Pics", Type: types.TypeGraphic})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	url := "https://docs.google.com/document/d/" + origID + "/edit"
	if _, err := f.svc.EnableSync(ctx, d.ArticleID, &url, true); domainagg.FieldOf(err) != domainagg.FieldSync {
		t.Fatalf("graphic enable: want sync field error got=%v", err)
	}
}
