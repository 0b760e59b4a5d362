// Package agent provides the agent identity model and the Store used by the
// coordination core to check agent existence.
package agent

import (
	"context"
	"time"

	"github.com/daneel-ai/daneel/types"
)

// Agent describes a registered agent.
type Agent struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Capabilities []string       `json:"capabilities,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	RegisteredAt time.Time      `json:"registered_at"`
}

// ErrNotFound is returned by Store implementations when an agent does not exist.
var ErrNotFound = types.NewError(types.ErrNotFound, "agent not found")

// ErrAlreadyRegistered is returned when registering a duplicate agent ID.
var ErrAlreadyRegistered = types.NewError(types.ErrAlreadyExists, "agent already registered")

// Store is the lookup surface the coordination core depends on.
// Implementations return ErrNotFound for unknown IDs.
type Store interface {
	// GetAgent retrieves an agent by ID.
	GetAgent(ctx context.Context, agentID string) (*Agent, error)
}
