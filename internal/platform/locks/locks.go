package locks

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var ErrNotHeld = errors.New("lock not held")

// Unlock releases a held lock. It is safe to call more than once.
type Unlock func()

// Locker hands out exclusive locks by key.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// LockAll takes every distinct key in sorted order. On failure the keys
// already taken are released.
func LockAll(ctx context.Context, l Locker, keys ...string) (Unlock, error) {
	sorted := dedupe(keys)
	held := make([]Unlock, 0, len(sorted))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
	for _, k := range sorted {
		u, err := l.Lock(ctx, k)
		if err != nil {
			release()
			return nil, err
		}
		held = append(held, u)
	}
	return once(release), nil
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func once(fn func()) Unlock {
	var o sync.Once
	return func() { o.Do(fn) }
}
