package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"github.com/yungbote/draftsync-backend/internal/observability"
	"github.com/yungbote/draftsync-backend/internal/platform/locks"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
)

const DefaultIdleTTL = 10 * time.Minute

// Loader reads the authoritative draft when a session opens.
type Loader interface {
	Load(ctx context.Context, articleID uuid.UUID) (types.Draft, error)
}

type ManagerDeps struct {
	Log       *logger.Logger
	Loader    Loader
	Remote    Remote
	Locker    locks.Locker
	Publisher Publisher
	Metrics   *observability.Metrics
	Config    Config
	IdleTTL   time.Duration
	Now       func() time.Time
}

// Manager owns one Coordinator per open draft.
type Manager struct {
	log  *logger.Logger
	deps ManagerDeps

	mu       sync.Mutex
	sessions map[uuid.UUID]*Coordinator
}

func NewManager(deps ManagerDeps) *Manager {
	if deps.IdleTTL <= 0 {
		deps.IdleTTL = DefaultIdleTTL
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Locker == nil {
		deps.Locker = locks.NewLocal()
	}
	return &Manager{
		log:      deps.Log.With("service", "DraftSessionManager"),
		deps:     deps,
		sessions: map[uuid.UUID]*Coordinator{},
	}
}

// Session returns the coordinator for articleID, loading the draft on first
// use.
func (m *Manager) Session(ctx context.Context, articleID uuid.UUID) (*Coordinator, error) {
	m.mu.Lock()
	c, ok := m.sessions[articleID]
	m.mu.Unlock()
	if ok {
		return c, nil
	}

	d, err := m.deps.Loader.Load(ctx, articleID)
	if err != nil {
		return nil, err
	}
	return m.Adopt(d), nil
}

// Adopt opens a session around an already loaded draft. An existing session
// wins.
func (m *Manager) Adopt(d types.Draft) *Coordinator {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.sessions[d.ArticleID]; ok {
		return c
	}
	c := NewCoordinator(d, CoordinatorDeps{
		Log:       m.deps.Log,
		Remote:    m.deps.Remote,
		Locker:    m.deps.Locker,
		Publisher: m.deps.Publisher,
		Metrics:   m.deps.Metrics,
		Config:    m.deps.Config,
		Now:       m.deps.Now,
	})
	m.sessions[d.ArticleID] = c
	m.deps.Metrics.SessionOpened()
	return c
}

func (m *Manager) Submit(ctx context.Context, articleID uuid.UUID, mut Mutation) (Ticket, error) {
	c, err := m.Session(ctx, articleID)
	if err != nil {
		return Ticket{}, err
	}
	return c.Submit(ctx, mut)
}

func (m *Manager) Current(ctx context.Context, articleID uuid.UUID) (types.Draft, error) {
	c, err := m.Session(ctx, articleID)
	if err != nil {
		return types.Draft{}, err
	}
	return c.Current(), nil
}

// Forget drops the cached session so the next access reloads from the
// store. Pending work keeps running on the dropped coordinator.
func (m *Manager) Forget(articleID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[articleID]; ok {
		delete(m.sessions, articleID)
		m.deps.Metrics.SessionClosed()
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// EvictIdle closes sessions with no pending work that have been quiet for
// the idle TTL. It returns how many were closed.
func (m *Manager) EvictIdle() int {
	now := m.deps.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, c := range m.sessions {
		last, idle := c.idleSince()
		if !idle || now.Sub(last) < m.deps.IdleTTL {
			continue
		}
		delete(m.sessions, id)
		m.deps.Metrics.SessionClosed()
		n++
	}
	return n
}

// Run evicts idle sessions until ctx ends.
func (m *Manager) Run(ctx context.Context) {
	every := m.deps.IdleTTL / 2
	if every < time.Second {
		every = time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.EvictIdle(); n > 0 {
				m.log.Debug("Evicted idle draft sessions", "count", n)
			}
		}
	}
}

// Drain flushes debounced edits and waits for every session to settle.
func (m *Manager) Drain(ctx context.Context) error {
	m.mu.Lock()
	all := make([]*Coordinator, 0, len(m.sessions))
	for _, c := range m.sessions {
		all = append(all, c)
	}
	m.mu.Unlock()
	for _, c := range all {
		c.Flush()
	}
	for _, c := range all {
		if err := c.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
