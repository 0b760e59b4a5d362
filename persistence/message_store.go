package persistence

import (
	"context"
	"time"

	"github.com/daneel-ai/daneel/types"
)

// Message is a persisted notification awaiting (or past) delivery.
type Message struct {
	// ID is the unique identifier for the notification
	ID string `json:"id"`

	// ReceiverID is the destination agent (used as the delivery index)
	ReceiverID string `json:"receiver_id"`

	// SenderID is the originating agent, if any
	SenderID string `json:"sender_id,omitempty"`

	// Type classifies the notification
	Type types.MessageType `json:"type"`

	// Content is the JSON-encoded payload the receiver parses
	Content string `json:"content"`

	// Priority is the delivery priority
	Priority types.Priority `json:"priority"`

	// Metadata carries routing hints (consensus_id, task_id, action, ...)
	Metadata map[string]any `json:"metadata,omitempty"`

	// CreatedAt is when the notification was produced
	CreatedAt time.Time `json:"created_at"`

	// AckedAt is when delivery was confirmed (nil while pending)
	AckedAt *time.Time `json:"acked_at,omitempty"`

	// Attempts is the number of delivery attempts so far
	Attempts int `json:"attempts"`

	// LastAttemptAt is when delivery was last attempted
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`

	// ExpiresAt bounds the notification's useful lifetime (optional)
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Acked reports whether delivery has been confirmed.
func (m *Message) Acked() bool {
	return m.AckedAt != nil
}

// Expired reports whether the notification is past its lifetime.
func (m *Message) Expired() bool {
	return m.ExpiresAt != nil && time.Now().After(*m.ExpiresAt)
}

// Retryable reports whether the notification is still worth redelivering.
func (m *Message) Retryable(config RetryConfig) bool {
	if m.Acked() || m.Expired() {
		return false
	}
	return m.Attempts < config.MaxAttempts
}

// Stats summarizes the contents of a message store.
type Stats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Acked    int64 `json:"acked"`
	Expired  int64 `json:"expired"`
}

// MessageStore persists notifications for reliable delivery.
type MessageStore interface {
	Store

	// Save persists a notification. A missing ID is generated.
	Save(ctx context.Context, msg *Message) error

	// Get retrieves a notification by ID.
	Get(ctx context.Context, msgID string) (*Message, error)

	// Ack marks a notification as delivered.
	Ack(ctx context.Context, msgID string) error

	// Pending returns undelivered notifications for a receiver, oldest first.
	Pending(ctx context.Context, receiverID string, limit int) ([]*Message, error)

	// Unacked returns undelivered notifications for a receiver older than
	// the given duration. These are candidates for redelivery.
	Unacked(ctx context.Context, receiverID string, olderThan time.Duration) ([]*Message, error)

	// RecordAttempt increments a notification's delivery attempt counter.
	RecordAttempt(ctx context.Context, msgID string) error

	// Delete removes a notification.
	Delete(ctx context.Context, msgID string) error

	// Cleanup removes acknowledged notifications older than the given
	// duration and returns how many were removed.
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)

	// Stats returns store statistics.
	Stats(ctx context.Context) (*Stats, error)
}
