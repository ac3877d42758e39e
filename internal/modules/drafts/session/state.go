package session

import (
	domainagg "github.com/yungbote/draftsync-backend/internal/domain/aggregates"
	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
)

// MutationID identifies one optimistic change. A debounced burst shares one
// id across all of its keystrokes.
type MutationID uint64

// Pending is a mutation that has been applied but not settled.
type Pending struct {
	ID       MutationID
	Kind     string
	Fields   []Field
	Snapshot types.Draft
}

// State is the editing session of one draft. Reducers never modify their
// input; they return the next state.
type State struct {
	Draft   types.Draft
	Writers map[Field]MutationID
	Pending map[MutationID]Pending
}

func NewState(d types.Draft) State {
	return State{
		Draft:   d.Clone(),
		Writers: map[Field]MutationID{},
		Pending: map[MutationID]Pending{},
	}
}

func (s State) clone() State {
	out := State{
		Draft:   s.Draft.Clone(),
		Writers: make(map[Field]MutationID, len(s.Writers)),
		Pending: make(map[MutationID]Pending, len(s.Pending)),
	}
	for k, v := range s.Writers {
		out.Writers[k] = v
	}
	for k, v := range s.Pending {
		out.Pending[k] = v
	}
	return out
}

// Idle reports whether nothing is waiting to settle.
func (s State) Idle() bool { return len(s.Pending) == 0 }

// Intent is a side effect requested by a reducer.
type Intent interface{ isIntent() }

// CommitIntent asks for the mutation to be written to the store.
type CommitIntent struct {
	ID       MutationID
	Mutation Mutation
}

// PublishIntent asks for an event to reach subscribers of the draft.
type PublishIntent struct {
	Event Event
}

func (CommitIntent) isIntent()  {}
func (PublishIntent) isIntent() {}

type EventKind string

const (
	EventApplied    EventKind = "applied"
	EventCommitted  EventKind = "committed"
	EventRolledBack EventKind = "rolled_back"
)

// Event describes a change to the cached draft.
type Event struct {
	ArticleID string      `json:"article_id"`
	Kind      EventKind   `json:"kind"`
	Mutation  string      `json:"mutation"`
	ID        MutationID  `json:"mutation_id"`
	Fields    []Field     `json:"fields"`
	Draft     types.Draft `json:"-"`
	Error     string      `json:"error,omitempty"`
	Code      string      `json:"code,omitempty"`
}

// Begin validates m against the current draft and applies it optimistically.
// Reusing the id of a pending mutation continues a burst: the original
// snapshot is kept as the rollback target. A commit is requested unless the
// mutation is debounced, in which case the caller schedules it.
func Begin(s State, id MutationID, m Mutation) (State, []Intent, error) {
	if err := m.Validate(s.Draft); err != nil {
		return s, nil, err
	}
	next := s.clone()
	p, continuing := next.Pending[id]
	if !continuing {
		p = Pending{ID: id, Kind: m.Kind(), Fields: m.Fields(), Snapshot: s.Draft.Clone()}
	}
	next.Pending[id] = p
	next.Draft = m.Apply(next.Draft)
	for _, f := range m.Fields() {
		next.Writers[f] = id
	}

	intents := []Intent{PublishIntent{Event: newEvent(next.Draft, EventApplied, p, nil)}}
	if m.DebounceKey() == "" {
		intents = append(intents, CommitIntent{ID: id, Mutation: m})
	}
	return next, intents, nil
}

// Settle finishes mutation id. On success the owned fields it still writes
// take the authoritative values from auth. On failure those fields return to
// the snapshot. Fields a newer mutation has since written are left alone.
func Settle(s State, id MutationID, auth types.Draft, err error) (State, []Intent) {
	p, ok := s.Pending[id]
	if !ok {
		return s, nil
	}
	next := s.clone()
	delete(next.Pending, id)

	source := auth
	kind := EventCommitted
	if err != nil {
		source = p.Snapshot
		kind = EventRolledBack
	}

	before := next.Draft
	out := before.Clone()
	var touched []Field
	for _, f := range p.Fields {
		if next.Writers[f] != id {
			continue
		}
		out = copyField(out, source, f)
		delete(next.Writers, f)
		touched = append(touched, f)
	}
	// Replacing the variants must not undo inner fields another pending
	// mutation is writing.
	if owns(touched, FieldVariants) {
		for _, f := range variantInner {
			if w, ok := next.Writers[f]; ok && w != id {
				out = copyField(out, before, f)
			}
		}
	}
	if err == nil && auth.Version > out.Version {
		out.Version = auth.Version
	}
	next.Draft = out

	ev := newEvent(next.Draft, kind, p, err)
	ev.Fields = touched
	return next, []Intent{PublishIntent{Event: ev}}
}

func newEvent(d types.Draft, kind EventKind, p Pending, err error) Event {
	ev := Event{
		ArticleID: d.ArticleID.String(),
		Kind:      kind,
		Mutation:  p.Kind,
		ID:        p.ID,
		Fields:    p.Fields,
		Draft:     d.Clone(),
	}
	if err != nil {
		ev.Error = err.Error()
		ev.Code = string(domainagg.CodeOf(err))
	}
	return ev
}
