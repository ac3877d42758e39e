package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	domainagg "github.com/yungbote/draftsync-backend/internal/domain/aggregates"
	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"github.com/yungbote/draftsync-backend/internal/observability"
	"github.com/yungbote/draftsync-backend/internal/platform/locks"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
)

const (
	DefaultDebounce      = 600 * time.Millisecond
	DefaultCommitTimeout = 15 * time.Second
)

// Publisher receives every applied and settled change.
type Publisher interface {
	Publish(ev Event)
}

type Config struct {
	Debounce      time.Duration
	CommitTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.CommitTimeout <= 0 {
		c.CommitTimeout = DefaultCommitTimeout
	}
	return c
}

// Ticket is returned by Submit. Draft is the optimistic value; Done yields
// exactly one Outcome once the mutation settles.
type Ticket struct {
	ID    MutationID
	Draft types.Draft
	Done  <-chan Outcome
}

// Outcome is a settled mutation. On failure Draft is the restored draft.
type Outcome struct {
	ID    MutationID
	Draft types.Draft
	Err   error
}

type CoordinatorDeps struct {
	Log       *logger.Logger
	Remote    Remote
	Locker    locks.Locker
	Publisher Publisher
	Metrics   *observability.Metrics
	Config    Config
	Now       func() time.Time
}

// Coordinator serializes access to one cached draft. Every change goes
// through Submit.
type Coordinator struct {
	articleID uuid.UUID
	log       *logger.Logger
	remote    Remote
	locker    locks.Locker
	publisher Publisher
	metrics   *observability.Metrics
	cfg       Config
	now       func() time.Time

	mu         sync.Mutex
	state      State
	nextID     MutationID
	bursts     map[string]*burst
	waiters    map[MutationID][]chan Outcome
	started    map[MutationID]time.Time
	lastActive time.Time

	inflight sync.WaitGroup
}

type burst struct {
	id      MutationID
	mut     Mutation
	ctx     context.Context
	timer   *time.Timer
	flushed bool
}

func NewCoordinator(d types.Draft, deps CoordinatorDeps) *Coordinator {
	if deps.Locker == nil {
		deps.Locker = locks.NewLocal()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Coordinator{
		articleID:  d.ArticleID,
		log:        deps.Log.With("service", "DraftCoordinator", "article_id", d.ArticleID),
		remote:     deps.Remote,
		locker:     deps.Locker,
		publisher:  deps.Publisher,
		metrics:    deps.Metrics,
		cfg:        deps.Config.withDefaults(),
		now:        deps.Now,
		state:      NewState(d),
		bursts:     map[string]*burst{},
		waiters:    map[MutationID][]chan Outcome{},
		started:    map[MutationID]time.Time{},
		lastActive: deps.Now(),
	}
}

func (c *Coordinator) ArticleID() uuid.UUID { return c.articleID }

// Current returns a copy of the cached draft.
func (c *Coordinator) Current() types.Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Draft.Clone()
}

// Idle reports whether nothing is pending or debouncing.
func (c *Coordinator) Idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Idle() && len(c.bursts) == 0
}

func (c *Coordinator) idleSince() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive, c.state.Idle() && len(c.bursts) == 0
}

// Submit applies m to the cache and schedules its commit. A validation
// failure returns before anything changes.
func (c *Coordinator) Submit(ctx context.Context, m Mutation) (Ticket, error) {
	c.mu.Lock()
	key := m.DebounceKey()
	b := c.bursts[key]
	var id MutationID
	if key != "" && b != nil {
		id = b.id
	} else {
		c.nextID++
		id = c.nextID
	}

	st, intents, err := Begin(c.state, id, m)
	if err != nil {
		c.mu.Unlock()
		c.metrics.ObserveMutation(m.Kind(), "invalid", 0)
		return Ticket{}, err
	}
	c.state = st
	done := make(chan Outcome, 1)
	c.waiters[id] = append(c.waiters[id], done)
	if _, ok := c.started[id]; !ok {
		c.started[id] = c.now()
	}
	if key != "" {
		if b == nil {
			b = &burst{id: id}
			c.bursts[key] = b
			c.inflight.Add(1)
			b.timer = time.AfterFunc(c.cfg.Debounce, func() { c.flush(key, b) })
		} else {
			b.timer.Reset(c.cfg.Debounce)
			c.metrics.IncCoalesced(m.Kind())
		}
		b.mut = m
		b.ctx = context.WithoutCancel(ctx)
	}
	c.lastActive = c.now()
	optimistic := c.state.Draft.Clone()
	c.mu.Unlock()

	c.run(ctx, intents)
	return Ticket{ID: id, Draft: optimistic, Done: done}, nil
}

// Flush commits every debouncing burst now.
func (c *Coordinator) Flush() {
	c.mu.Lock()
	pending := make(map[string]*burst, len(c.bursts))
	for k, b := range c.bursts {
		pending[k] = b
	}
	c.mu.Unlock()
	for k, b := range pending {
		b.timer.Stop()
		c.flush(k, b)
	}
}

// Wait blocks until every submitted mutation has settled or ctx ends.
func (c *Coordinator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) flush(key string, b *burst) {
	c.mu.Lock()
	if c.bursts[key] != b || b.flushed {
		c.mu.Unlock()
		return
	}
	b.flushed = true
	delete(c.bursts, key)
	m, ctx, id := b.mut, b.ctx, b.id
	c.mu.Unlock()
	go c.commit(ctx, id, m)
}

func (c *Coordinator) run(ctx context.Context, intents []Intent) {
	for _, in := range intents {
		switch it := in.(type) {
		case PublishIntent:
			if c.publisher != nil {
				c.publisher.Publish(it.Event)
			}
		case CommitIntent:
			c.inflight.Add(1)
			go c.commit(context.WithoutCancel(ctx), it.ID, it.Mutation)
		}
	}
}

func (c *Coordinator) commit(ctx context.Context, id MutationID, m Mutation) {
	defer c.inflight.Done()
	op := opName(m.Kind())

	ctx, span := observability.StartSpan(ctx, "drafts.mutation.commit",
		attribute.String("mutation.kind", m.Kind()),
		attribute.String("article.id", c.articleID.String()),
	)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CommitTimeout)
	defer cancel()

	auth, err := c.commitScoped(ctx, m)
	if err != nil && ctx.Err() != nil && !domainagg.IsCode(err, domainagg.CodeRemoteUnavailable) {
		err = domainagg.Unavailable(op, "commit timed out", err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domainagg.CodeOf(err)))
	}
	c.settle(ctx, id, m, auth, err)
}

// commitScoped holds the scope and field locks for the whole remote write
// and reads the live cached values once they are held.
func (c *Coordinator) commitScoped(ctx context.Context, m Mutation) (types.Draft, error) {
	keys := make([]string, 0, len(m.Scopes())+len(m.Fields()))
	for _, s := range m.Scopes() {
		keys = append(keys, locks.ScopeKey(c.articleID, s))
	}
	for _, f := range m.Fields() {
		keys = append(keys, locks.FieldKey(c.articleID, string(f)))
	}
	unlock, err := locks.LockAll(ctx, c.locker, keys...)
	if err != nil {
		return types.Draft{}, domainagg.Unavailable(opName(m.Kind()), "acquire draft locks", err)
	}
	defer unlock()
	return m.Commit(ctx, c.remote, c.Current())
}

func (c *Coordinator) settle(ctx context.Context, id MutationID, m Mutation, auth types.Draft, err error) {
	c.mu.Lock()
	st, intents := Settle(c.state, id, auth, err)
	c.state = st
	waiters := c.waiters[id]
	delete(c.waiters, id)
	started := c.started[id]
	delete(c.started, id)
	c.lastActive = c.now()
	out := Outcome{ID: id, Draft: st.Draft.Clone(), Err: err}
	c.mu.Unlock()

	for _, w := range waiters {
		w <- out
	}
	elapsed := c.now().Sub(started)
	if err != nil {
		code := string(domainagg.CodeOf(err))
		c.metrics.ObserveMutation(m.Kind(), "rolled_back", elapsed)
		c.metrics.IncRollback(m.Kind(), code)
		c.log.Warn("Mutation rolled back", "mutation", m.Kind(), "mutation_id", id, "code", code, "error", err)
	} else {
		c.metrics.ObserveMutation(m.Kind(), "committed", elapsed)
	}
	c.run(ctx, intents)
}
