// Package daneel wires the coordination stack together: an agent registry,
// team management, a notification bus with pluggable persistence, and the
// consensus and task managers.
//
// Usage:
//
//	import "github.com/daneel-ai/daneel"
//
//	sys, err := daneel.New()
//	sys, err := daneel.New(daneel.WithConfig(cfg), daneel.WithLogger(logger))
//	defer sys.Close()
//
//	c := sys.Consensus.CreateConsensus(ctx, coordination.ConsensusRequest{...})
package daneel

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/daneel-ai/daneel/agent"
	"github.com/daneel-ai/daneel/bus"
	"github.com/daneel-ai/daneel/config"
	"github.com/daneel-ai/daneel/coordination"
	"github.com/daneel-ai/daneel/internal/metrics"
	"github.com/daneel-ai/daneel/persistence"
	"github.com/daneel-ai/daneel/team"
)

// System is a fully wired coordination stack.
type System struct {
	Agents    *agent.Registry
	Teams     *team.InMemoryManager
	Hub       *bus.Hub
	Consensus *coordination.ConsensusManager
	Tasks     *coordination.TaskManager

	store  persistence.MessageStore
	logger *zap.Logger
}

type options struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry prometheus.Registerer
	store    persistence.MessageStore
}

// Option configures the system created by [New].
type Option func(*options)

// WithConfig supplies a loaded configuration. Defaults apply otherwise.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets a custom zap logger, overriding the configured one.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRegisterer sets the Prometheus registerer for metric collection.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// WithMessageStore supplies a pre-built notification store, overriding the
// configured backend. The caller keeps ownership; Close will not close it.
func WithMessageStore(store persistence.MessageStore) Option {
	return func(o *options) { o.store = store }
}

// New assembles a coordination system.
func New(opts ...Option) (*System, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	cfg := o.cfg
	if cfg == nil {
		cfg = config.Default()
	}

	logger := o.logger
	if logger == nil {
		built, err := buildLogger(cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
		logger = built
	}

	store := o.store
	ownStore := false
	if store == nil {
		built, err := persistence.NewMessageStore(cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("build message store: %w", err)
		}
		store = built
		ownStore = true
	}

	hub := bus.NewHub(logger,
		bus.WithStore(store),
		bus.WithChannelBuffer(cfg.Bus.ChannelBuffer),
		bus.WithRetryConfig(cfg.Store.Retry))

	agents := agent.NewRegistry(logger)
	teams := team.NewInMemoryManager(logger)

	consensus := coordination.NewConsensusManager(agents, teams, hub, logger)
	tasks := coordination.NewTaskManager(agents, hub, logger)
	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector(cfg.Metrics.Namespace, o.registry, logger)
		consensus.WithMetrics(collector)
		tasks.WithMetrics(collector)
	}

	sys := &System{
		Agents:    agents,
		Teams:     teams,
		Hub:       hub,
		Consensus: consensus,
		Tasks:     tasks,
		logger:    logger,
	}
	if ownStore {
		sys.store = store
	}
	return sys, nil
}

// Close shuts the system down: waits for in-flight notifications, closes the
// hub, and closes the store if this system built it.
func (s *System) Close() error {
	var firstErr error
	if err := s.Consensus.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.Tasks.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.Hub.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
	}
	return zc.Build()
}
