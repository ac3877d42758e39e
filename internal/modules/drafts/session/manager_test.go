package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/draftsync-backend/internal/domain/aggregates"
	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
)

type fakeLoader struct {
	mu     sync.Mutex
	drafts map[uuid.UUID]types.Draft
	loads  int
}

func (l *fakeLoader) Load(_ context.Context, id uuid.UUID) (types.Draft, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads++
	d, ok := l.drafts[id]
	if !ok {
		return types.Draft{}, domainagg.NewError(domainagg.CodeNotFound, "Drafts.Load", "article not found", nil)
	}
	return d.Clone(), nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(t *testing.T) (*Manager, *fakeLoader, *fakeClock, types.Draft) {
	t.Helper()
	d := sampleDraft()
	loader := &fakeLoader{drafts: map[uuid.UUID]types.Draft{d.ArticleID: d}}
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	m := NewManager(ManagerDeps{
		Log:     testLog(),
		Loader:  loader,
		Remote:  newFakeRemote(d),
		IdleTTL: time.Minute,
		Now:     clock.Now,
	})
	return m, loader, clock, d
}

func TestManagerLoadsOnce(t *testing.T) {
	m, loader, _, d := newTestManager(t)
	ctx := context.Background()
	a, err := m.Session(ctx, d.ArticleID)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	b, _ := m.Session(ctx, d.ArticleID)
	if a != b {
		t.Fatalf("expected the cached coordinator")
	}
	if loader.loads != 1 || m.Len() != 1 {
		t.Fatalf("loads: want=1 got=%d sessions=%d", loader.loads, m.Len())
	}
}

func TestManagerMissingDraft(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	_, err := m.Current(context.Background(), uuid.New())
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("want not_found got=%v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("failed load must not open a session")
	}
}

func TestManagerAdoptKeepsExistingSession(t *testing.T) {
	m, _, _, d := newTestManager(t)
	first := m.Adopt(d)
	stale := d.Clone()
	stale.Title = "stale"
	if got := m.Adopt(stale); got != first || got.Current().Title != "Orig" {
		t.Fatalf("adopt replaced a live session")
	}
}

func TestManagerEvictsOnlyQuietIdleSessions(t *testing.T) {
	m, _, clock, d := newTestManager(t)
	ctx := context.Background()
	busy := sampleDraft()
	m.Adopt(d)
	c := m.Adopt(busy)

	release := make(chan struct{})
	remote := newFakeRemote(busy)
	remote.onAuthors = func(context.Context, []uuid.UUID) ([]uuid.UUID, error) {
		<-release
		return nil, nil
	}
	c.remote = remote
	tk, err := c.Submit(ctx, Authors{UserIDs: []uuid.UUID{uuid.New()}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	clock.Advance(30 * time.Second)
	if n := m.EvictIdle(); n != 0 {
		t.Fatalf("evicted before ttl: %d", n)
	}
	clock.Advance(time.Minute)
	if n := m.EvictIdle(); n != 1 {
		t.Fatalf("evicted: want=1 got=%d", n)
	}
	if _, err := m.Session(ctx, busy.ArticleID); err != nil {
		t.Fatalf("busy session should survive: %v", err)
	}

	close(release)
	await(t, tk)
	clock.Advance(2 * time.Minute)
	if n := m.EvictIdle(); n != 1 || m.Len() != 0 {
		t.Fatalf("settled session: want evicted got n=%d len=%d", n, m.Len())
	}
}

func TestManagerDrainFlushesDebounced(t *testing.T) {
	d := sampleDraft()
	remote := newFakeRemote(d)
	m := NewManager(ManagerDeps{
		Log:    testLog(),
		Loader: &fakeLoader{drafts: map[uuid.UUID]types.Draft{d.ArticleID: d}},
		Remote: remote,
		Config: Config{Debounce: time.Hour},
	})
	ctx := context.Background()
	if _, err := m.Submit(ctx, d.ArticleID, Description{Value: "draining"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	dctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := m.Drain(dctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if remote.Calls("description") != 1 || remote.Last("description") != "draining" {
		t.Fatalf("drain did not commit the burst: calls=%d", remote.Calls("description"))
	}
}

func TestManagerForget(t *testing.T) {
	m, loader, _, d := newTestManager(t)
	ctx := context.Background()
	m.Session(ctx, d.ArticleID)
	m.Forget(d.ArticleID)
	m.Session(ctx, d.ArticleID)
	if loader.loads != 2 {
		t.Fatalf("loads after forget: want=2 got=%d", loader.loads)
	}
}
