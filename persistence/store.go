// Package persistence provides durable storage for agent notifications.
//
// The message bus is fire-and-forget: a full delivery channel would otherwise
// drop the notification. When a store is configured, the bus persists every
// notification before attempting delivery and acknowledges it once the
// receiver's channel accepts it, so undelivered notifications survive and can
// be redelivered by the retry loop.
//
// Supported backends:
//   - Memory: for development and testing (default)
//   - Redis: for deployments where notifications must survive a restart
package persistence

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// StoreType represents the type of storage backend.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// RetryConfig defines redelivery behavior for undelivered notifications.
type RetryConfig struct {
	// MaxAttempts is the maximum number of delivery attempts (default: 3)
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" env:"MAX_ATTEMPTS"`

	// InitialBackoff is the initial backoff duration (default: 1s)
	InitialBackoff time.Duration `json:"initial_backoff" yaml:"initial_backoff" env:"INITIAL_BACKOFF"`

	// MaxBackoff is the maximum backoff duration (default: 30s)
	MaxBackoff time.Duration `json:"max_backoff" yaml:"max_backoff" env:"MAX_BACKOFF"`

	// BackoffMultiplier is the multiplier for exponential backoff (default: 2.0)
	BackoffMultiplier float64 `json:"backoff_multiplier" yaml:"backoff_multiplier" env:"BACKOFF_MULTIPLIER"`
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Backoff calculates the backoff duration after the given attempt count.
func (c RetryConfig) Backoff(attempts int) time.Duration {
	backoff := c.InitialBackoff
	for i := 0; i < attempts; i++ {
		backoff = time.Duration(float64(backoff) * c.BackoffMultiplier)
		if backoff > c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	return backoff
}

// CleanupConfig defines retention for acknowledged notifications.
type CleanupConfig struct {
	// Enabled determines if automatic cleanup runs
	Enabled bool `json:"enabled" yaml:"enabled" env:"ENABLED"`

	// Interval is how often cleanup runs (default: 1h)
	Interval time.Duration `json:"interval" yaml:"interval" env:"INTERVAL"`

	// Retention is how long to keep acknowledged notifications (default: 1h)
	Retention time.Duration `json:"retention" yaml:"retention" env:"RETENTION"`
}

// DefaultCleanupConfig returns the default cleanup configuration.
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		Enabled:   true,
		Interval:  1 * time.Hour,
		Retention: 1 * time.Hour,
	}
}

// RedisConfig contains Redis-specific configuration.
type RedisConfig struct {
	// Addr is the Redis server address, host:port
	Addr string `json:"addr" yaml:"addr" env:"ADDR"`

	// Password is the Redis password (optional)
	Password string `json:"password" yaml:"password" env:"PASSWORD"`

	// DB is the Redis database number
	DB int `json:"db" yaml:"db" env:"DB"`

	// PoolSize is the connection pool size
	PoolSize int `json:"pool_size" yaml:"pool_size" env:"POOL_SIZE"`

	// KeyPrefix is the prefix for all Redis keys
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix" env:"KEY_PREFIX"`
}

// StoreConfig is the configuration shared by all store implementations.
type StoreConfig struct {
	// Type is the storage backend type
	Type StoreType `json:"type" yaml:"type" env:"TYPE"`

	// Redis configuration (only used when Type is "redis")
	Redis RedisConfig `json:"redis" yaml:"redis" env:"REDIS"`

	// Retry configuration
	Retry RetryConfig `json:"retry" yaml:"retry" env:"RETRY"`

	// Cleanup configuration
	Cleanup CleanupConfig `json:"cleanup" yaml:"cleanup" env:"CLEANUP"`
}

// DefaultStoreConfig returns the default store configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type: StoreTypeMemory,
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "daneel:",
		},
		Retry:   DefaultRetryConfig(),
		Cleanup: DefaultCleanupConfig(),
	}
}

// Store is the base interface for all persistent stores.
type Store interface {
	// Close closes the store and releases resources
	Close() error

	// Ping checks if the store is healthy
	Ping(ctx context.Context) error
}

// NewMessageStore creates a MessageStore for the configured backend.
func NewMessageStore(config StoreConfig) (MessageStore, error) {
	switch config.Type {
	case StoreTypeMemory, "":
		return NewMemoryMessageStore(config), nil
	case StoreTypeRedis:
		return NewRedisMessageStore(config)
	default:
		return nil, ErrInvalidInput
	}
}
