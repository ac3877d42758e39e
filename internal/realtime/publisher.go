package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"github.com/yungbote/draftsync-backend/internal/modules/drafts/session"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
)

const publishTimeout = 2 * time.Second

// Relay carries messages to every replica. bus.Bus satisfies it.
type Relay interface {
	Publish(ctx context.Context, msg SSEMessage) error
}

// DraftEvent is the payload of every draft message.
type DraftEvent struct {
	ArticleID string           `json:"article_id"`
	Mutation  string           `json:"mutation"`
	ID        uint64           `json:"mutation_id"`
	Fields    []session.Field  `json:"fields,omitempty"`
	Draft     types.DraftView  `json:"draft"`
	Error     *DraftEventError `json:"error,omitempty"`
}

type DraftEventError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Publisher turns coordinator events into SSE messages. With a relay set,
// messages go through it and come back via the forwarder; otherwise they
// reach the local hub directly.
type Publisher struct {
	log   *logger.Logger
	hub   *SSEHub
	relay Relay
}

func NewPublisher(log *logger.Logger, hub *SSEHub, relay Relay) *Publisher {
	return &Publisher{log: log.With("component", "DraftEventPublisher"), hub: hub, relay: relay}
}

func (p *Publisher) Publish(ev session.Event) {
	id, err := uuid.Parse(ev.ArticleID)
	if err != nil {
		p.log.Warn("Dropping draft event with bad article id", "article_id", ev.ArticleID)
		return
	}
	msg := SSEMessage{Channel: DraftChannel(id), Event: eventName(ev.Kind), Data: draftEvent(ev)}

	if p.relay != nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		err := p.relay.Publish(ctx, msg)
		if err == nil {
			return
		}
		p.log.Warn("SSE relay publish failed; delivering locally", "channel", msg.Channel, "error", err)
	}
	if p.hub != nil {
		p.hub.Broadcast(msg)
	}
}

func eventName(k session.EventKind) SSEEvent {
	switch k {
	case session.EventCommitted:
		return SSEEventDraftMutationCommitted
	case session.EventRolledBack:
		return SSEEventDraftMutationRolledBack
	default:
		return SSEEventDraftMutationApplied
	}
}

func draftEvent(ev session.Event) DraftEvent {
	out := DraftEvent{
		ArticleID: ev.ArticleID,
		Mutation:  ev.Mutation,
		ID:        uint64(ev.ID),
		Fields:    ev.Fields,
		Draft:     ev.Draft.View(),
	}
	if ev.Error != "" {
		out.Error = &DraftEventError{Message: ev.Error, Code: ev.Code}
	}
	return out
}
