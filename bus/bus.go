// Package bus provides fire-and-forget notification delivery between agents.
//
// Delivery is best-effort by design: the coordination core treats a recorded
// state mutation as durable regardless of whether its notification arrives.
// When a persistence.MessageStore is configured, notifications are persisted
// before delivery and acknowledged once a receiver's channel accepts them, so
// a full channel loses nothing.
package bus

import (
	"context"
	"time"

	"github.com/daneel-ai/daneel/types"
)

// Envelope is one notification in flight.
type Envelope struct {
	ID         string            `json:"id"`
	ReceiverID string            `json:"receiver_id"` // empty means broadcast
	Type       types.MessageType `json:"type"`
	Content    string            `json:"content"` // JSON-encoded payload
	Priority   types.Priority    `json:"priority"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Bus is the send surface the coordination core depends on.
// Send returns once the notification is handed to the delivery layer; it makes
// no delivery guarantee.
type Bus interface {
	Send(ctx context.Context, receiverID string, msgType types.MessageType, content string, priority types.Priority, metadata map[string]any) error
}
