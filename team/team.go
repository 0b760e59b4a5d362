// Package team provides team membership and role management for agent groups.
//
// The coordination core consumes only the read surface (Manager.GetTeam) to
// scope votes and tasks to a team and to resolve member roles for vote
// weighting and close/cancel authorization.
package team

import (
	"context"
	"time"

	"github.com/daneel-ai/daneel/types"
)

// Member is one agent's membership record within a team.
type Member struct {
	AgentID  string           `json:"agent_id"`
	Roles    []types.TeamRole `json:"roles"`
	JoinedAt time.Time        `json:"joined_at"`
}

// HasRole reports whether the member holds the given role.
func (m *Member) HasRole(role types.TeamRole) bool {
	for _, r := range m.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Team groups agents under a shared identity.
type Team struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Members     map[string]*Member `json:"members"`
	CreatedAt   time.Time          `json:"created_at"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
}

// ErrNotFound is returned by Manager implementations when a team or member
// does not exist.
var ErrNotFound = types.NewError(types.ErrNotFound, "team not found")

// ErrMemberExists is returned when adding an agent already on the team.
var ErrMemberExists = types.NewError(types.ErrAlreadyExists, "agent already a team member")

// Manager is the team lookup surface the coordination core depends on.
// Implementations return ErrNotFound for unknown IDs.
type Manager interface {
	// GetTeam retrieves a team by ID.
	GetTeam(ctx context.Context, teamID string) (*Team, error)
}
