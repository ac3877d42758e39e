package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/draftsync-backend/internal/data/aggregates"
	"github.com/yungbote/draftsync-backend/internal/data/repos"
	"github.com/yungbote/draftsync-backend/internal/data/repos/testutil"
	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"github.com/yungbote/draftsync-backend/internal/platform/dbctx"
	"github.com/yungbote/draftsync-backend/internal/platform/gcp"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// imageServer serves a 2x3 png under /img/ and counts requests per path.
type imageServer struct {
	*httptest.Server
	mu   sync.Mutex
	hits map[string]int
}

func newImageServer(t *testing.T) *imageServer {
	t.Helper()
	body := pngBytes(t, 2, 3)
	s := &imageServer{hits: map[string]int{}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.mu.Unlock()
		switch r.URL.Path {
		case "/missing.png":
			http.NotFound(w, r)
		case "/broken.png":
			w.WriteHeader(http.StatusInternalServerError)
		case "/notes.txt":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("plain text, not an image"))
		case "/big.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(bytes.Repeat([]byte{0x89}, 4096))
		case "/untyped":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(body)
		default:
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(body)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *imageServer) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

type memBlobs struct {
	mu       sync.Mutex
	objects  map[string][]byte
	uploads  int
	deletes  [][]string
	failKeys map[string]bool
	deleteFn func(keys []string) error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}, failKeys: map[string]bool{}}
}

func (b *memBlobs) Upload(_ context.Context, key, mimeType string, r io.Reader) (gcp.StoredObject, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return gcp.StoredObject{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads++
	b.objects[key] = data
	return gcp.StoredObject{URL: "https://cdn.test/" + key, Key: key, Size: int64(len(data)), MimeType: mimeType}, nil
}

func (b *memBlobs) Delete(_ context.Context, keys []string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, append([]string(nil), keys...))
	var failed []string
	var errs []error
	for _, k := range keys {
		if b.failKeys[k] {
			failed = append(failed, k)
			errs = append(errs, errors.New("delete "+k+": backend down"))
			continue
		}
		delete(b.objects, k)
	}
	return failed, errors.Join(errs...)
}

func (b *memBlobs) Has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

func (b *memBlobs) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

type mediaFixture struct {
	db       *gorm.DB
	repos    repos.Set
	blobs    *memBlobs
	server   *imageServer
	resolver Resolver
	deleter  Deleter
	article  *types.Article
}

func newMediaFixture(t *testing.T, opts ...func(db *gorm.DB, deps *ResolverDeps)) *mediaFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	set := repos.NewSet(db, log)
	blobs := newMemBlobs()
	agg := aggregates.NewMediaAggregate(aggregates.MediaAggregateDeps{
		Base:  aggregates.BaseDeps{DB: db, Log: log},
		Media: set.Media,
	})
	deps := ResolverDeps{
		Log:     log,
		Media:   set.Media,
		Covers:  agg,
		Blobs:   blobs,
		Fetcher: NewFetcher(0, 1<<20),
	}
	for _, o := range opts {
		o(db, &deps)
	}
	return &mediaFixture{
		db:       db,
		repos:    set,
		blobs:    blobs,
		server:   newImageServer(t),
		resolver: NewResolver(deps),
		deleter:  NewDeleter(DeleterDeps{Log: log, Media: set.Media, Purger: agg, Blobs: blobs}),
		article:  testutil.SeedArticle(t, context.Background(), db, "Media", "media", types.StatusDraft),
	}
}

// racingRepo inserts a competing row for the same ref right before Create,
// standing in for a concurrent ingestion that won the unique index.
type racingRepo struct {
	repos.MediaAssetRepo
	db     *gorm.DB
	winner *types.MediaAsset
	calls  atomic.Int32
}

func (r *racingRepo) Create(dbc dbctx.Context, rows []*types.MediaAsset) ([]*types.MediaAsset, error) {
	if r.calls.Add(1) == 1 && len(rows) == 1 {
		w := *rows[0]
		w.ID = uuid.New()
		w.StorageKey = "winner/key.png"
		w.URL = "https://cdn.test/winner/key.png"
		if err := r.db.WithContext(dbc.Ctx).Create(&w).Error; err != nil {
			return nil, err
		}
		r.winner = &w
	}
	return r.MediaAssetRepo.Create(dbc, rows)
}

type failingCreateRepo struct {
	repos.MediaAssetRepo
}

func (failingCreateRepo) Create(dbctx.Context, []*types.MediaAsset) ([]*types.MediaAsset, error) {
	return nil, errors.New("connection reset")
}
