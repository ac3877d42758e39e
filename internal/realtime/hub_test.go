package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"github.com/yungbote/draftsync-backend/internal/modules/drafts/session"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func TestSSEHubResilienceReconnectAndOrdering(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := DraftChannel(uuid.New())

	clientA := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientA, channel)

	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventDraftMutationApplied, Data: map[string]any{"seq": 1}})
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventDraftMutationCommitted, Data: map[string]any{"seq": 2}})

	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != SSEEventDraftMutationApplied {
		t.Fatalf("first event: want=%s got=%s", SSEEventDraftMutationApplied, got.Event)
	}
	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != SSEEventDraftMutationCommitted {
		t.Fatalf("second event: want=%s got=%s", SSEEventDraftMutationCommitted, got.Event)
	}

	hub.CloseClient(clientA)
	hub.CloseClient(clientA)
	select {
	case _, ok := <-clientA.Outbound:
		if ok {
			t.Fatalf("clientA outbound should be closed after disconnect")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for clientA channel close")
	}
	if n := hub.Subscribers(channel); n != 0 {
		t.Fatalf("subscribers after close: want=0 got=%d", n)
	}

	clientB := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientB, channel)
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventDraftMutationRolledBack})
	if got := recvMessage(t, clientB.Outbound, time.Second); got.Event != SSEEventDraftMutationRolledBack {
		t.Fatalf("reconnect event: want=%s got=%s", SSEEventDraftMutationRolledBack, got.Event)
	}
}

func TestSSEHubDropsWhenBufferFull(t *testing.T) {
	hub := NewSSEHub(logger.Nop())
	channel := DraftChannel(uuid.New())
	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, channel)

	for i := 0; i < outboundBuffer+5; i++ {
		hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventDraftMutationApplied})
	}
	if got := len(client.Outbound); got != outboundBuffer {
		t.Fatalf("buffered: want=%d got=%d", outboundBuffer, got)
	}
}

func TestSSEHubCloseAllEndsStreams(t *testing.T) {
	hub := NewSSEHub(logger.Nop())
	a := hub.NewSSEClient(uuid.New())
	b := hub.NewSSEClient(uuid.New())
	hub.AddChannel(a, DraftChannel(uuid.New()))
	hub.AddChannel(b, DraftChannel(uuid.New()))
	hub.AddChannel(b, DraftChannel(uuid.New()))

	hub.CloseAll()
	for _, c := range []*SSEClient{a, b} {
		if _, ok := <-c.Outbound; ok {
			t.Fatalf("client %s: outbound still open", c.ID)
		}
	}
	hub.CloseAll()
}

type fakeRelay struct {
	err  error
	msgs []SSEMessage
}

func (r *fakeRelay) Publish(_ context.Context, msg SSEMessage) error {
	r.msgs = append(r.msgs, msg)
	return r.err
}

func TestPublisherMapsSessionEvents(t *testing.T) {
	hub := NewSSEHub(logger.Nop())
	articleID := uuid.New()
	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, DraftChannel(articleID))

	pub := NewPublisher(logger.Nop(), hub, nil)
	pub.Publish(session.Event{
		ArticleID: articleID.String(),
		Kind:      session.EventRolledBack,
		Mutation:  "description",
		ID:        7,
		Fields:    []session.Field{session.FieldDescription},
		Draft:     types.Draft{ArticleID: articleID, Type: types.TypeHeadline, Content: types.HeadlineVariant{}},
		Error:     "store down",
		Code:      "remote_unavailable",
	})

	msg := recvMessage(t, client.Outbound, time.Second)
	if msg.Event != SSEEventDraftMutationRolledBack {
		t.Fatalf("event: want=%s got=%s", SSEEventDraftMutationRolledBack, msg.Event)
	}
	ev, ok := msg.Data.(DraftEvent)
	if !ok {
		t.Fatalf("data: want DraftEvent got=%T", msg.Data)
	}
	if ev.ID != 7 || ev.Error == nil || ev.Error.Code != "remote_unavailable" || ev.Draft.ArticleID != articleID {
		t.Fatalf("payload: %+v", ev)
	}
}

func TestPublisherFallsBackToHubWhenRelayFails(t *testing.T) {
	hub := NewSSEHub(logger.Nop())
	articleID := uuid.New()
	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, DraftChannel(articleID))

	relay := &fakeRelay{err: errors.New("redis down")}
	NewPublisher(logger.Nop(), hub, relay).Publish(session.Event{ArticleID: articleID.String(), Kind: session.EventCommitted})
	if len(relay.msgs) != 1 {
		t.Fatalf("relay attempts: want=1 got=%d", len(relay.msgs))
	}
	if got := recvMessage(t, client.Outbound, time.Second); got.Event != SSEEventDraftMutationCommitted {
		t.Fatalf("fallback event: got=%s", got.Event)
	}

	ok := &fakeRelay{}
	NewPublisher(logger.Nop(), hub, ok).Publish(session.Event{ArticleID: articleID.String(), Kind: session.EventApplied})
	if len(client.Outbound) != 0 {
		t.Fatalf("relayed message must not also be delivered locally")
	}
}
