package agent

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry is the in-memory Store implementation.
// All state lives in a single map guarded by a read/write mutex; suitable for
// single-process deployments, which is the only mode the coordination core
// supports.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
	logger *zap.Logger
}

// NewRegistry creates an empty agent registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		agents: make(map[string]*Agent),
		logger: logger.With(zap.String("component", "agent_registry")),
	}
}

// Register adds an agent to the registry. A missing ID is generated.
func (r *Registry) Register(ctx context.Context, a *Agent) error {
	if a == nil {
		return ErrNotFound
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.RegisteredAt.IsZero() {
		a.RegisteredAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[a.ID]; exists {
		return ErrAlreadyRegistered
	}
	r.agents[a.ID] = a

	r.logger.Info("agent registered",
		zap.String("agent_id", a.ID),
		zap.String("name", a.Name))
	return nil
}

// Deregister removes an agent from the registry.
func (r *Registry) Deregister(ctx context.Context, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[agentID]; !exists {
		return ErrNotFound
	}
	delete(r.agents, agentID)

	r.logger.Info("agent deregistered", zap.String("agent_id", agentID))
	return nil
}

// GetAgent retrieves an agent by ID. Implements Store.
func (r *Registry) GetAgent(ctx context.Context, agentID string) (*Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[agentID]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

// ListAgents returns all registered agents.
func (r *Registry) ListAgents(ctx context.Context) []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	return out
}
