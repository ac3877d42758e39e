package media

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/draftsync-backend/internal/domain/aggregates"
	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"github.com/yungbote/draftsync-backend/internal/platform/dbctx"
)

func TestIngestIsIdempotent(t *testing.T) {
	f := newMediaFixture(t)
	ctx := context.Background()
	src := f.server.URL + "/photos/Campus%20Walk.png"

	first, err := f.resolver.Ingest(ctx, IngestInput{ArticleID: f.article.ID, Ref: src, Caption: " walk "})
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	second, err := f.resolver.Ingest(ctx, IngestInput{ArticleID: f.article.ID, Ref: src})
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("asset id: want=%s got=%s", first.ID, second.ID)
	}
	byURL, err := f.resolver.Ingest(ctx, IngestInput{ArticleID: f.article.ID, Ref: first.URL})
	if err != nil || byURL.ID != first.ID {
		t.Fatalf("ingest by stored url: want=%s got=%v err=%v", first.ID, byURL, err)
	}
	if got := f.server.Hits("/photos/Campus Walk.png"); got != 1 {
		t.Fatalf("source fetches: want=1 got=%d", got)
	}
	if f.blobs.uploads != 1 {
		t.Fatalf("uploads: want=1 got=%d", f.blobs.uploads)
	}

	wantKey := "articles/" + f.article.ID.String() + "/media/" + first.ID.String() + "/Campus_Walk.png"
	if first.StorageKey != wantKey {
		t.Fatalf("storage key: want=%s got=%s", wantKey, first.StorageKey)
	}
	if first.Width != 2 || first.Height != 3 || first.MimeType != "image/png" {
		t.Fatalf("metadata: got %dx%d %s", first.Width, first.Height, first.MimeType)
	}
	if first.Caption != "walk" || first.Intent != types.IntentContent || first.SourceRef != src {
		t.Fatalf("row: got caption=%q intent=%s ref=%s", first.Caption, first.Intent, first.SourceRef)
	}
}

func TestIngestUndoOnReinsert(t *testing.T) {
	f := newMediaFixture(t)
	ctx := context.Background()
	src := f.server.URL + "/a.png"
	user := uuid.New()

	asset, err := f.resolver.Ingest(ctx, IngestInput{ArticleID: f.article.ID, Ref: src})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if _, err := f.deleter.Mark(ctx, f.article.ID, []uuid.UUID{asset.ID}, user); err != nil {
		t.Fatalf("mark: %v", err)
	}
	again, err := f.resolver.Ingest(ctx, IngestInput{ArticleID: f.article.ID, Ref: src})
	if err != nil {
		t.Fatalf("reinsert: %v", err)
	}
	if again.ID != asset.ID || again.Marked() {
		t.Fatalf("reinsert: want id=%s unmarked got id=%s marked=%v", asset.ID, again.ID, again.Marked())
	}
	stored, _ := f.repos.Media.GetByID(dbctx.Context{Ctx: ctx}, asset.ID)
	if stored.Marked() {
		t.Fatalf("stored mark should be cleared")
	}
	res, err := f.deleter.CommitDeletion(ctx, user)
	if err != nil || len(res.DeletedIDs) != 0 {
		t.Fatalf("commit after undo: want nothing deleted got=%v err=%v", res.DeletedIDs, err)
	}
	if f.server.Hits("/a.png") != 1 {
		t.Fatalf("reinsert must not refetch")
	}
}

func TestIngestDataURI(t *testing.T) {
	f := newMediaFixture(t)
	ctx := context.Background()
	raw := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, 4, 4))

	asset, err := f.resolver.Ingest(ctx, IngestInput{ArticleID: f.article.ID, Ref: raw})
	if err != nil {
		t.Fatalf("ingest data uri: %v", err)
	}
	if !strings.HasPrefix(asset.SourceRef, "sha256:") || len(asset.SourceRef) != len("sha256:")+64 {
		t.Fatalf("source ref: got=%s", asset.SourceRef)
	}
	if asset.FileName != asset.ID.String()+".png" {
		t.Fatalf("file name: want=%s.png got=%s", asset.ID, asset.FileName)
	}
	again, err := f.resolver.Ingest(ctx, IngestInput{ArticleID: f.article.ID, Ref: raw})
	if err != nil || again.ID != asset.ID {
		t.Fatalf("data uri dedupe: want=%s got=%v err=%v", asset.ID, again, err)
	}
}

func TestIngestSniffsUntypedSources(t *testing.T) {
	f := newMediaFixture(t)
	asset, err := f.resolver.Ingest(context.Background(), IngestInput{ArticleID: f.article.ID, Ref: f.server.URL + "/untyped"})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if asset.MimeType != "image/png" || asset.FileName != "untyped.png" {
		t.Fatalf("sniffed: got mime=%s name=%s", asset.MimeType, asset.FileName)
	}
}

func TestIngestErrors(t *testing.T) {
	f := newMediaFixture(t, func(_ *gorm.DB, d *ResolverDeps) {
		d.Fetcher = NewFetcher(0, 64)
	})
	ctx := context.Background()
	cases := []struct {
		name string
		ref  string
		code domainagg.ErrorCode
		msg  string
	}{
		{name: "ftp", ref: "ftp://example.com/a.png", code: domainagg.CodeValidation, msg: "malformed URL"},
		{name: "garbage", ref: "not a url", code: domainagg.CodeValidation, msg: "malformed URL"},
		{name: "bad data uri", ref: "data:image/png,plain", code: domainagg.CodeValidation, msg: "malformed URL"},
		{name: "too large", ref: f.server.URL + "/big.png", code: domainagg.CodeValidation, msg: "size exceeded"},
		{name: "not image", ref: f.server.URL + "/notes.txt", code: domainagg.CodeValidation, msg: "not an image"},
		{name: "not found", ref: f.server.URL + "/missing.png", code: domainagg.CodeRemoteUnavailable},
		{name: "server error", ref: f.server.URL + "/broken.png", code: domainagg.CodeRemoteUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.resolver.Ingest(ctx, IngestInput{ArticleID: f.article.ID, Ref: tc.ref})
			if !domainagg.IsCode(err, tc.code) {
				t.Fatalf("code: want=%s got=%v", tc.code, err)
			}
			if tc.msg != "" && !strings.Contains(err.Error(), tc.msg) {
				t.Fatalf("message: want %q in %v", tc.msg, err)
			}
		})
	}
	if f.blobs.uploads != 0 {
		t.Fatalf("uploads: want=0 got=%d", f.blobs.uploads)
	}
}

func TestIngestInsertFailureRemovesBlob(t *testing.T) {
	f := newMediaFixture(t, func(_ *gorm.DB, d *ResolverDeps) {
		d.Media = failingCreateRepo{MediaAssetRepo: d.Media}
	})
	_, err := f.resolver.Ingest(context.Background(), IngestInput{ArticleID: f.article.ID, Ref: f.server.URL + "/a.png"})
	if !domainagg.IsCode(err, domainagg.CodeRemoteUnavailable) {
		t.Fatalf("code: want=remote_unavailable got=%v", err)
	}
	if f.blobs.uploads != 1 || f.blobs.Count() != 0 {
		t.Fatalf("blob cleanup: uploads=%d remaining=%d", f.blobs.uploads, f.blobs.Count())
	}
	rows, _ := f.repos.Media.ListByArticle(dbctx.Context{Ctx: context.Background()}, f.article.ID)
	if len(rows) != 0 {
		t.Fatalf("rows: want=0 got=%d", len(rows))
	}
}

func TestIngestRaceReturnsWinner(t *testing.T) {
	var race *racingRepo
	f := newMediaFixture(t, func(db *gorm.DB, d *ResolverDeps) {
		race = &racingRepo{MediaAssetRepo: d.Media, db: db}
		d.Media = race
	})
	got, err := f.resolver.Ingest(context.Background(), IngestInput{ArticleID: f.article.ID, Ref: f.server.URL + "/a.png"})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if race.winner == nil || got.ID != race.winner.ID {
		t.Fatalf("winner: want=%v got=%s", race.winner, got.ID)
	}
	if f.blobs.Count() != 0 {
		t.Fatalf("losing upload should be deleted, remaining=%d", f.blobs.Count())
	}
}

func TestSetCoverMarksPreviousCover(t *testing.T) {
	f := newMediaFixture(t)
	ctx := context.Background()
	user := uuid.New()

	first, err := f.resolver.SetCover(ctx, f.article.ID, f.server.URL+"/one.png", user)
	if err != nil {
		t.Fatalf("first cover: %v", err)
	}
	second, err := f.resolver.SetCover(ctx, f.article.ID, f.server.URL+"/two.png", user)
	if err != nil {
		t.Fatalf("second cover: %v", err)
	}
	if second.Intent != types.IntentCover {
		t.Fatalf("intent: want=cover_img got=%s", second.Intent)
	}
	prev, _ := f.repos.Media.GetByID(dbctx.Context{Ctx: ctx}, first.ID)
	if prev.MarkedForDeletion == nil || *prev.MarkedForDeletion != user {
		t.Fatalf("previous cover mark: got=%v", prev.MarkedForDeletion)
	}
}

func TestIngestBatchFailuresAreIndependent(t *testing.T) {
	f := newMediaFixture(t)
	items := map[string]Pending{
		"c1": {ArticleID: f.article.ID, NodeID: "n1", Ref: f.server.URL + "/one.png"},
		"c2": {ArticleID: f.article.ID, NodeID: "n2", Ref: f.server.URL + "/missing.png"},
		"c3": {ArticleID: f.article.ID, NodeID: "n3", Ref: f.server.URL + "/three.png"},
	}
	var mu sync.Mutex
	seen := map[string]bool{}
	results := f.resolver.IngestBatch(context.Background(), items, func(res BatchResult) {
		mu.Lock()
		defer mu.Unlock()
		seen[res.CorrelationID] = true
	})
	if len(results) != 3 || len(seen) != 3 {
		t.Fatalf("results: want=3 got=%d callbacks=%d", len(results), len(seen))
	}
	for _, res := range results {
		switch res.CorrelationID {
		case "c2":
			if !domainagg.IsCode(res.Err, domainagg.CodeRemoteUnavailable) {
				t.Fatalf("c2: want remote_unavailable got=%v", res.Err)
			}
		default:
			if res.Err != nil || res.Asset == nil {
				t.Fatalf("%s: want asset got err=%v", res.CorrelationID, res.Err)
			}
			if res.Pending.NodeID != items[res.CorrelationID].NodeID {
				t.Fatalf("%s: pending not carried through", res.CorrelationID)
			}
		}
	}
}
