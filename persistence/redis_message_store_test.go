package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daneel-ai/daneel/types"
)

func newRedisTestStore(t *testing.T) *RedisMessageStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisMessageStoreWithClient(client, DefaultStoreConfig())
}

func TestRedisMessageStore_SaveAndGet(t *testing.T) {
	t.Parallel()
	s := newRedisTestStore(t)

	msg := &Message{
		ReceiverID: "a1",
		SenderID:   "a2",
		Type:       types.MessageTypeConsensus,
		Content:    `{"consensus_id":"c1","action":"created"}`,
		Priority:   types.PriorityHigh,
		Metadata:   map[string]any{"consensus_id": "c1"},
	}
	require.NoError(t, s.Save(context.Background(), msg))

	got, err := s.Get(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ReceiverID)
	assert.Equal(t, types.PriorityHigh, got.Priority)
	assert.Equal(t, "c1", got.Metadata["consensus_id"])
}

func TestRedisMessageStore_GetUnknown(t *testing.T) {
	t.Parallel()
	s := newRedisTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisMessageStore_AckMovesOutOfPending(t *testing.T) {
	t.Parallel()
	s := newRedisTestStore(t)

	m1 := &Message{ReceiverID: "a1", Content: "one"}
	m2 := &Message{ReceiverID: "a1", Content: "two"}
	require.NoError(t, s.Save(context.Background(), m1))
	require.NoError(t, s.Save(context.Background(), m2))

	require.NoError(t, s.Ack(context.Background(), m1.ID))

	pending, err := s.Pending(context.Background(), "a1", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, m2.ID, pending[0].ID)

	got, err := s.Get(context.Background(), m1.ID)
	require.NoError(t, err)
	assert.True(t, got.Acked())
}

func TestRedisMessageStore_Unacked(t *testing.T) {
	t.Parallel()
	s := newRedisTestStore(t)

	old := &Message{ReceiverID: "a1", CreatedAt: time.Now().Add(-10 * time.Minute)}
	fresh := &Message{ReceiverID: "a1"}
	require.NoError(t, s.Save(context.Background(), old))
	require.NoError(t, s.Save(context.Background(), fresh))

	msgs, err := s.Unacked(context.Background(), "a1", 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, old.ID, msgs[0].ID)
}

func TestRedisMessageStore_RecordAttempt(t *testing.T) {
	t.Parallel()
	s := newRedisTestStore(t)

	msg := &Message{ReceiverID: "a1"}
	require.NoError(t, s.Save(context.Background(), msg))
	require.NoError(t, s.RecordAttempt(context.Background(), msg.ID))

	got, err := s.Get(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)
}

func TestRedisMessageStore_Delete(t *testing.T) {
	t.Parallel()
	s := newRedisTestStore(t)

	msg := &Message{ReceiverID: "a1"}
	require.NoError(t, s.Save(context.Background(), msg))
	require.NoError(t, s.Delete(context.Background(), msg.ID))

	_, err := s.Get(context.Background(), msg.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	pending, err := s.Pending(context.Background(), "a1", 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRedisMessageStore_CleanupAndStats(t *testing.T) {
	t.Parallel()
	s := newRedisTestStore(t)

	m1 := &Message{ReceiverID: "a1"}
	m2 := &Message{ReceiverID: "a2"}
	require.NoError(t, s.Save(context.Background(), m1))
	require.NoError(t, s.Save(context.Background(), m2))
	require.NoError(t, s.Ack(context.Background(), m1.ID))

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Pending)
	assert.Equal(t, int64(1), stats.Acked)

	removed, err := s.Cleanup(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = s.Get(context.Background(), m1.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
