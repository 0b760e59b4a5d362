package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/daneel-ai/daneel/persistence"
	"github.com/daneel-ai/daneel/types"
)

const defaultChannelSize = 100

// Hub is the in-process Bus implementation: one buffered channel per
// registered agent, guarded by a read/write mutex.
type Hub struct {
	mu        sync.RWMutex
	channels  map[string]chan *Envelope
	store     persistence.MessageStore // optional
	retry     persistence.RetryConfig
	chanSize  int
	closed    bool
	closeOnce sync.Once
	logger    *zap.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithStore makes the hub persist notifications before delivery.
func WithStore(store persistence.MessageStore) Option {
	return func(h *Hub) { h.store = store }
}

// WithChannelBuffer sets the per-agent delivery channel capacity.
func WithChannelBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.chanSize = size
		}
	}
}

// WithRetryConfig sets the redelivery policy used by the retry loop.
func WithRetryConfig(retry persistence.RetryConfig) Option {
	return func(h *Hub) { h.retry = retry }
}

// NewHub creates a hub. Without WithStore it keeps no persistent copy of
// notifications.
func NewHub(logger *zap.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		channels: make(map[string]chan *Envelope),
		retry:    persistence.DefaultRetryConfig(),
		chanSize: defaultChannelSize,
		logger:   logger.With(zap.String("component", "bus")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewHubWithStore creates a hub whose notifications are persisted before
// delivery.
func NewHubWithStore(logger *zap.Logger, store persistence.MessageStore) *Hub {
	return NewHub(logger, WithStore(store))
}

// Register creates the delivery channel for an agent.
func (h *Hub) Register(agentID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.channels[agentID]; !ok {
		h.channels[agentID] = make(chan *Envelope, h.chanSize)
	}
}

// Unregister removes an agent's delivery channel. Pending persisted
// notifications for the agent are kept.
func (h *Hub) Unregister(agentID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.channels[agentID]; ok {
		delete(h.channels, agentID)
		close(ch)
	}
}

// Send implements Bus. An empty receiverID broadcasts to every registered
// agent.
func (h *Hub) Send(ctx context.Context, receiverID string, msgType types.MessageType, content string, priority types.Priority, metadata map[string]any) error {
	env := &Envelope{
		ID:         uuid.New().String(),
		ReceiverID: receiverID,
		Type:       msgType,
		Content:    content,
		Priority:   priority,
		Metadata:   metadata,
		Timestamp:  time.Now(),
	}

	if receiverID == "" {
		return h.broadcast(ctx, env)
	}
	return h.deliver(ctx, receiverID, env)
}

// broadcast fans the envelope out to every registered agent. Each recipient
// gets its own persisted copy; persist failures for one recipient do not stop
// the others.
func (h *Hub) broadcast(ctx context.Context, env *Envelope) error {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return types.NewError(types.ErrBusClosed, "bus is closed")
	}
	receivers := make([]string, 0, len(h.channels))
	for id := range h.channels {
		receivers = append(receivers, id)
	}
	h.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, id := range receivers {
		copyEnv := *env
		copyEnv.ID = uuid.New().String()
		copyEnv.ReceiverID = id
		g.Go(func() error {
			return h.deliver(ctx, copyEnv.ReceiverID, &copyEnv)
		})
	}
	return g.Wait()
}

// deliver persists (when a store is configured) and then hands the envelope
// to the receiver's channel without blocking. A full channel is not an error:
// the persisted copy stays pending for the retry loop.
func (h *Hub) deliver(ctx context.Context, receiverID string, env *Envelope) error {
	if h.store != nil {
		if err := h.store.Save(ctx, h.toRecord(env)); err != nil {
			h.logger.Error("failed to persist notification",
				zap.String("msg_id", env.ID),
				zap.Error(err))
			// persistence failure does not block delivery
		}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return types.NewError(types.ErrBusClosed, "bus is closed")
	}

	ch, ok := h.channels[receiverID]
	if !ok {
		return types.NewError(types.ErrChannelNotFound, fmt.Sprintf("no channel for agent %s", receiverID))
	}

	select {
	case ch <- env:
		if h.store != nil {
			go h.ack(env.ID)
		}
	default:
		h.logger.Debug("channel full, notification left pending",
			zap.String("receiver", receiverID),
			zap.String("msg_id", env.ID))
	}
	return nil
}

// Receive blocks until a notification arrives for the agent or the timeout
// elapses.
func (h *Hub) Receive(agentID string, timeout time.Duration) (*Envelope, error) {
	h.mu.RLock()
	ch, ok := h.channels[agentID]
	h.mu.RUnlock()

	if !ok {
		return nil, types.NewError(types.ErrChannelNotFound, fmt.Sprintf("no channel for agent %s", agentID))
	}

	select {
	case env, open := <-ch:
		if !open {
			return nil, types.NewError(types.ErrChannelNotFound, fmt.Sprintf("channel closed for agent %s", agentID))
		}
		return env, nil
	case <-time.After(timeout):
		return nil, types.NewError(types.ErrInternalError, "receive timeout")
	}
}

// RecoverPending redelivers persisted, unacknowledged notifications.
// Intended to run after a restart and periodically from the retry loop.
func (h *Hub) RecoverPending(ctx context.Context) error {
	if h.store == nil {
		return nil
	}

	h.mu.RLock()
	receivers := make([]string, 0, len(h.channels))
	for id := range h.channels {
		receivers = append(receivers, id)
	}
	h.mu.RUnlock()

	recovered := 0
	for _, agentID := range receivers {
		msgs, err := h.store.Unacked(ctx, agentID, h.retry.InitialBackoff)
		if err != nil {
			h.logger.Warn("failed to load unacked notifications",
				zap.String("agent_id", agentID),
				zap.Error(err))
			continue
		}

		for _, rec := range msgs {
			if !rec.Retryable(h.retry) {
				continue
			}
			if err := h.store.RecordAttempt(ctx, rec.ID); err != nil {
				h.logger.Warn("failed to record delivery attempt",
					zap.String("msg_id", rec.ID),
					zap.Error(err))
			}

			env := h.fromRecord(rec)
			h.mu.RLock()
			ch, ok := h.channels[agentID]
			h.mu.RUnlock()
			if !ok {
				continue
			}

			select {
			case ch <- env:
				recovered++
				go h.ack(env.ID)
			default:
			}
		}
	}

	if recovered > 0 {
		h.logger.Info("notifications recovered", zap.Int("count", recovered))
	}
	return nil
}

// StartRetryLoop periodically redelivers pending notifications until the
// context is cancelled. No-op without a store.
func (h *Hub) StartRetryLoop(ctx context.Context, interval time.Duration) {
	if h.store == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := h.RecoverPending(ctx); err != nil {
					h.logger.Warn("retry loop error", zap.Error(err))
				}
			}
		}
	}()
}

// Stats reports persisted notification counts. Errors without a store.
func (h *Hub) Stats(ctx context.Context) (*persistence.Stats, error) {
	if h.store == nil {
		return nil, types.NewError(types.ErrStoreUnavailable, "no message store configured")
	}
	return h.store.Stats(ctx)
}

// Close shuts the hub down. Repeated calls are safe. The store, if any, is
// owned by the caller and stays open.
func (h *Hub) Close() error {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		h.closed = true
		for _, ch := range h.channels {
			close(ch)
		}
		h.channels = make(map[string]chan *Envelope)
	})
	return nil
}

func (h *Hub) ack(msgID string) {
	if err := h.store.Ack(context.Background(), msgID); err != nil {
		h.logger.Debug("failed to ack notification",
			zap.String("msg_id", msgID),
			zap.Error(err))
	}
}

func (h *Hub) toRecord(env *Envelope) *persistence.Message {
	return &persistence.Message{
		ID:         env.ID,
		ReceiverID: env.ReceiverID,
		Type:       env.Type,
		Content:    env.Content,
		Priority:   env.Priority,
		Metadata:   env.Metadata,
		CreatedAt:  env.Timestamp,
	}
}

func (h *Hub) fromRecord(rec *persistence.Message) *Envelope {
	return &Envelope{
		ID:         rec.ID,
		ReceiverID: rec.ReceiverID,
		Type:       rec.Type,
		Content:    rec.Content,
		Priority:   rec.Priority,
		Metadata:   rec.Metadata,
		Timestamp:  rec.CreatedAt,
	}
}
