package realtime

import (
	"github.com/google/uuid"
)

type SSEEvent string

const (
	SSEEventDraftMutationApplied    SSEEvent = "DraftMutationApplied"
	SSEEventDraftMutationCommitted  SSEEvent = "DraftMutationCommitted"
	SSEEventDraftMutationRolledBack SSEEvent = "DraftMutationRolledBack"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

// DraftChannel is the channel every editor of a draft subscribes to.
func DraftChannel(articleID uuid.UUID) string { return "draft:" + articleID.String() }
