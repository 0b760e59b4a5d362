package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisMessageStore is the Redis-backed MessageStore implementation.
//
// Layout: each notification is a JSON blob under a data key; per-receiver
// pending sets are sorted sets scored by creation time, so Pending and
// Unacked are range queries. Acknowledging moves the ID from the pending set
// to an acked set scored by ack time, which Cleanup trims.
type RedisMessageStore struct {
	client *redis.Client
	prefix string
	config StoreConfig
}

// NewRedisMessageStore creates a Redis-backed message store and verifies
// connectivity.
func NewRedisMessageStore(config StoreConfig) (*RedisMessageStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
		PoolSize: config.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := config.Redis.KeyPrefix
	if prefix == "" {
		prefix = "daneel:"
	}

	return &RedisMessageStore{
		client: client,
		prefix: prefix + "notify:",
		config: config,
	}, nil
}

// NewRedisMessageStoreWithClient wraps an existing client. Used by tests.
func NewRedisMessageStoreWithClient(client *redis.Client, config StoreConfig) *RedisMessageStore {
	prefix := config.Redis.KeyPrefix
	if prefix == "" {
		prefix = "daneel:"
	}
	return &RedisMessageStore{
		client: client,
		prefix: prefix + "notify:",
		config: config,
	}
}

// Close closes the store.
func (s *RedisMessageStore) Close() error {
	return s.client.Close()
}

// Ping checks if the store is healthy.
func (s *RedisMessageStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisMessageStore) dataKey(msgID string) string {
	return s.prefix + "data:" + msgID
}

func (s *RedisMessageStore) pendingKey(receiverID string) string {
	return s.prefix + "pending:" + receiverID
}

func (s *RedisMessageStore) ackedKey() string {
	return s.prefix + "acked"
}

func (s *RedisMessageStore) receiversKey() string {
	return s.prefix + "receivers"
}

// Save persists a notification.
func (s *RedisMessageStore) Save(ctx context.Context, msg *Message) error {
	if msg == nil || msg.ReceiverID == "" {
		return ErrInvalidInput
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.dataKey(msg.ID), data, 0)
	pipe.ZAdd(ctx, s.pendingKey(msg.ReceiverID), redis.Z{
		Score:  float64(msg.CreatedAt.UnixNano()),
		Member: msg.ID,
	})
	pipe.SAdd(ctx, s.receiversKey(), msg.ReceiverID)
	_, err = pipe.Exec(ctx)
	return err
}

// Get retrieves a notification by ID.
func (s *RedisMessageStore) Get(ctx context.Context, msgID string) (*Message, error) {
	data, err := s.client.Get(ctx, s.dataKey(msgID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Ack marks a notification as delivered.
func (s *RedisMessageStore) Ack(ctx context.Context, msgID string) error {
	msg, err := s.Get(ctx, msgID)
	if err != nil {
		return err
	}

	now := time.Now()
	msg.AckedAt = &now
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.dataKey(msgID), data, 0)
	pipe.ZRem(ctx, s.pendingKey(msg.ReceiverID), msgID)
	pipe.ZAdd(ctx, s.ackedKey(), redis.Z{
		Score:  float64(now.UnixNano()),
		Member: msgID,
	})
	_, err = pipe.Exec(ctx)
	return err
}

// Pending returns undelivered notifications for a receiver, oldest first.
func (s *RedisMessageStore) Pending(ctx context.Context, receiverID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 100
	}

	ids, err := s.client.ZRange(ctx, s.pendingKey(receiverID), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}
	return s.fetch(ctx, ids, false)
}

// Unacked returns undelivered notifications older than the given duration.
func (s *RedisMessageStore) Unacked(ctx context.Context, receiverID string, olderThan time.Duration) ([]*Message, error) {
	cutoff := time.Now().Add(-olderThan).UnixNano()
	ids, err := s.client.ZRangeByScore(ctx, s.pendingKey(receiverID), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", cutoff),
	}).Result()
	if err != nil {
		return nil, err
	}
	return s.fetch(ctx, ids, true)
}

// fetch loads notifications by ID, skipping missing and expired entries.
// When prune is set, stale pending index entries are removed as a side effect.
func (s *RedisMessageStore) fetch(ctx context.Context, ids []string, prune bool) ([]*Message, error) {
	out := make([]*Message, 0, len(ids))
	for _, id := range ids {
		msg, err := s.Get(ctx, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		if msg.Expired() {
			if prune {
				s.client.ZRem(ctx, s.pendingKey(msg.ReceiverID), id)
			}
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// RecordAttempt increments a notification's delivery attempt counter.
func (s *RedisMessageStore) RecordAttempt(ctx context.Context, msgID string) error {
	msg, err := s.Get(ctx, msgID)
	if err != nil {
		return err
	}

	msg.Attempts++
	now := time.Now()
	msg.LastAttemptAt = &now

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.dataKey(msgID), data, 0).Err()
}

// Delete removes a notification.
func (s *RedisMessageStore) Delete(ctx context.Context, msgID string) error {
	msg, err := s.Get(ctx, msgID)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.dataKey(msgID))
	pipe.ZRem(ctx, s.pendingKey(msg.ReceiverID), msgID)
	pipe.ZRem(ctx, s.ackedKey(), msgID)
	_, err = pipe.Exec(ctx)
	return err
}

// Cleanup removes acknowledged notifications older than the given duration.
func (s *RedisMessageStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan).UnixNano()
	ids, err := s.client.ZRangeByScore(ctx, s.ackedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", cutoff),
	}).Result()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		pipe := s.client.Pipeline()
		pipe.Del(ctx, s.dataKey(id))
		pipe.ZRem(ctx, s.ackedKey(), id)
		if _, err := pipe.Exec(ctx); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Stats returns store statistics.
func (s *RedisMessageStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	acked, err := s.client.ZCard(ctx, s.ackedKey()).Result()
	if err != nil {
		return nil, err
	}
	stats.Acked = acked

	receivers, err := s.client.SMembers(ctx, s.receiversKey()).Result()
	if err != nil {
		return nil, err
	}
	for _, r := range receivers {
		n, err := s.client.ZCard(ctx, s.pendingKey(r)).Result()
		if err != nil {
			return nil, err
		}
		stats.Pending += n
	}

	stats.Total = stats.Pending + stats.Acked
	return stats, nil
}
