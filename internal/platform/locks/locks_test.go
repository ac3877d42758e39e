package locks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/draftsync-backend/internal/platform/logger"
)

func TestLocalSerializesSameKey(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()
	u, err := l.Lock(ctx, "a")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		u2, err := l.Lock(ctx, "a")
		if err != nil {
			t.Errorf("second lock: %v", err)
			return
		}
		close(acquired)
		u2()
	}()

	select {
	case <-acquired:
		t.Fatalf("second holder acquired while first still held")
	case <-time.After(30 * time.Millisecond):
	}
	u()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("second holder never acquired")
	}
}

func TestLocalHonorsContext(t *testing.T) {
	l := NewLocal()
	u, _ := l.Lock(context.Background(), "a")
	defer u()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got=%v", err)
	}
}

func TestLocalReleasesSlots(t *testing.T) {
	l := NewLocal()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := l.Lock(context.Background(), "k")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			u()
			u()
		}()
	}
	wg.Wait()
	if l.Size() != 0 {
		t.Fatalf("slots: want=0 got=%d", l.Size())
	}
}

type recordingLocker struct {
	mu       sync.Mutex
	order    []string
	released []string
	failOn   string
}

func (r *recordingLocker) Lock(_ context.Context, key string) (Unlock, error) {
	if key == r.failOn {
		return nil, errors.New("busy")
	}
	r.mu.Lock()
	r.order = append(r.order, key)
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		r.released = append(r.released, key)
		r.mu.Unlock()
	}, nil
}

func TestLockAllSortsAndDedupes(t *testing.T) {
	r := &recordingLocker{}
	u, err := LockAll(context.Background(), r, "c", "a", "b", "a", "")
	if err != nil {
		t.Fatalf("lock all: %v", err)
	}
	if got := len(r.order); got != 3 || r.order[0] != "a" || r.order[2] != "c" {
		t.Fatalf("order: got=%v", r.order)
	}
	u()
	u()
	if len(r.released) != 3 || r.released[0] != "c" {
		t.Fatalf("released: got=%v", r.released)
	}
}

func TestLockAllReleasesOnFailure(t *testing.T) {
	r := &recordingLocker{failOn: "b"}
	if _, err := LockAll(context.Background(), r, "a", "b", "c"); err == nil {
		t.Fatalf("expected failure")
	}
	if len(r.released) != 1 || r.released[0] != "a" {
		t.Fatalf("released: want=[a] got=%v", r.released)
	}
}

func TestKeys(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	if got := ScopeKey(id, "slug"); got != "draft:11111111-2222-3333-4444-555555555555:scope:slug" {
		t.Fatalf("scope key: got=%s", got)
	}
	if got := FieldKey(id, "title"); got != "draft:11111111-2222-3333-4444-555555555555:field:title" {
		t.Fatalf("field key: got=%s", got)
	}
	r := NewRedis(logger.Nop(), nil, RedisConfig{})
	if got := r.Key(ScopeKey(id, "slug")); got != "draftsync:lock:draft:11111111-2222-3333-4444-555555555555:scope:slug" {
		t.Fatalf("redis key: got=%s", got)
	}
	if r.ttl != DefaultTTL || r.retryEvery != DefaultRetryEvery {
		t.Fatalf("defaults: ttl=%s retry=%s", r.ttl, r.retryEvery)
	}
}
