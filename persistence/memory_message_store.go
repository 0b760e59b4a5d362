package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryMessageStore is the in-memory MessageStore implementation.
// Suitable for development and testing; data is lost on restart.
type MemoryMessageStore struct {
	mu        sync.RWMutex
	messages  map[string]*Message  // msgID -> message
	receivers map[string][]string  // receiverID -> msgIDs in arrival order
	closed    bool
	config    StoreConfig
	done      chan struct{}
}

// NewMemoryMessageStore creates a new in-memory message store.
func NewMemoryMessageStore(config StoreConfig) *MemoryMessageStore {
	s := &MemoryMessageStore{
		messages:  make(map[string]*Message),
		receivers: make(map[string][]string),
		config:    config,
		done:      make(chan struct{}),
	}
	if config.Cleanup.Enabled {
		go s.cleanupLoop(config.Cleanup.Interval)
	}
	return s
}

// Close closes the store.
func (s *MemoryMessageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

// Ping checks if the store is healthy.
func (s *MemoryMessageStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Save persists a notification.
func (s *MemoryMessageStore) Save(ctx context.Context, msg *Message) error {
	if msg == nil || msg.ReceiverID == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	s.messages[msg.ID] = msg
	s.receivers[msg.ReceiverID] = append(s.receivers[msg.ReceiverID], msg.ID)
	return nil
}

// Get retrieves a notification by ID.
func (s *MemoryMessageStore) Get(ctx context.Context, msgID string) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	msg, ok := s.messages[msgID]
	if !ok {
		return nil, ErrNotFound
	}
	return msg, nil
}

// Ack marks a notification as delivered.
func (s *MemoryMessageStore) Ack(ctx context.Context, msgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	msg, ok := s.messages[msgID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	msg.AckedAt = &now
	return nil
}

// Pending returns undelivered notifications for a receiver, oldest first.
func (s *MemoryMessageStore) Pending(ctx context.Context, receiverID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	out := make([]*Message, 0, limit)
	for _, id := range s.receivers[receiverID] {
		msg, ok := s.messages[id]
		if !ok || msg.Acked() || msg.Expired() {
			continue
		}
		out = append(out, msg)
		if len(out) >= limit {
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Unacked returns undelivered notifications older than the given duration.
func (s *MemoryMessageStore) Unacked(ctx context.Context, receiverID string, olderThan time.Duration) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	cutoff := time.Now().Add(-olderThan)
	var out []*Message
	for _, id := range s.receivers[receiverID] {
		msg, ok := s.messages[id]
		if !ok || msg.Acked() || msg.Expired() {
			continue
		}
		if msg.CreatedAt.Before(cutoff) {
			out = append(out, msg)
		}
	}
	return out, nil
}

// RecordAttempt increments a notification's delivery attempt counter.
func (s *MemoryMessageStore) RecordAttempt(ctx context.Context, msgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	msg, ok := s.messages[msgID]
	if !ok {
		return ErrNotFound
	}
	msg.Attempts++
	now := time.Now()
	msg.LastAttemptAt = &now
	return nil
}

// Delete removes a notification.
func (s *MemoryMessageStore) Delete(ctx context.Context, msgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	msg, ok := s.messages[msgID]
	if !ok {
		return ErrNotFound
	}
	delete(s.messages, msgID)
	s.removeFromIndex(msg.ReceiverID, msgID)
	return nil
}

// Cleanup removes acknowledged notifications older than the given duration.
func (s *MemoryMessageStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for id, msg := range s.messages {
		if msg.Acked() && msg.AckedAt.Before(cutoff) {
			delete(s.messages, id)
			s.removeFromIndex(msg.ReceiverID, id)
			removed++
		}
	}
	return removed, nil
}

// Stats returns store statistics.
func (s *MemoryMessageStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	stats := &Stats{}
	for _, msg := range s.messages {
		stats.Total++
		switch {
		case msg.Acked():
			stats.Acked++
		case msg.Expired():
			stats.Expired++
		default:
			stats.Pending++
		}
	}
	return stats, nil
}

// removeFromIndex removes a message ID from a receiver's index.
// Caller must hold the write lock.
func (s *MemoryMessageStore) removeFromIndex(receiverID, msgID string) {
	ids := s.receivers[receiverID]
	for i, id := range ids {
		if id == msgID {
			s.receivers[receiverID] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

func (s *MemoryMessageStore) cleanupLoop(interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			_, _ = s.Cleanup(context.Background(), s.config.Cleanup.Retention)
		}
	}
}
