package team

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/daneel-ai/daneel/types"
)

// InMemoryManager is the in-memory Manager implementation.
// A single map guarded by one read/write mutex holds all teams; membership
// mutations run as a full read-check-mutate sequence under the write lock.
type InMemoryManager struct {
	mu     sync.RWMutex
	teams  map[string]*Team
	logger *zap.Logger
}

// NewInMemoryManager creates an empty team manager.
func NewInMemoryManager(logger *zap.Logger) *InMemoryManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryManager{
		teams:  make(map[string]*Team),
		logger: logger.With(zap.String("component", "team_manager")),
	}
}

// CreateTeam creates a new team and returns it.
func (m *InMemoryManager) CreateTeam(ctx context.Context, name, description string) *Team {
	t := &Team{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		Members:     make(map[string]*Member),
		CreatedAt:   time.Now().UTC(),
	}

	m.mu.Lock()
	m.teams[t.ID] = t
	m.mu.Unlock()

	m.logger.Info("team created",
		zap.String("team_id", t.ID),
		zap.String("name", name))
	return t
}

// GetTeam retrieves a team by ID. Implements Manager.
func (m *InMemoryManager) GetTeam(ctx context.Context, teamID string) (*Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.teams[teamID]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

// ListTeams returns all teams.
func (m *InMemoryManager) ListTeams(ctx context.Context) []*Team {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Team, 0, len(m.teams))
	for _, t := range m.teams {
		out = append(out, t)
	}
	return out
}

// AddMember adds an agent to a team with the given roles.
func (m *InMemoryManager) AddMember(ctx context.Context, teamID, agentID string, roles ...types.TeamRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.teams[teamID]
	if !ok {
		return ErrNotFound
	}
	if _, exists := t.Members[agentID]; exists {
		return ErrMemberExists
	}

	if len(roles) == 0 {
		roles = []types.TeamRole{types.TeamRoleMember}
	}
	t.Members[agentID] = &Member{
		AgentID:  agentID,
		Roles:    roles,
		JoinedAt: time.Now().UTC(),
	}

	m.logger.Info("member added",
		zap.String("team_id", teamID),
		zap.String("agent_id", agentID))
	return nil
}

// RemoveMember removes an agent from a team.
func (m *InMemoryManager) RemoveMember(ctx context.Context, teamID, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.teams[teamID]
	if !ok {
		return ErrNotFound
	}
	if _, exists := t.Members[agentID]; !exists {
		return ErrNotFound
	}
	delete(t.Members, agentID)

	m.logger.Info("member removed",
		zap.String("team_id", teamID),
		zap.String("agent_id", agentID))
	return nil
}

// SetRoles replaces a member's roles.
func (m *InMemoryManager) SetRoles(ctx context.Context, teamID, agentID string, roles ...types.TeamRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.teams[teamID]
	if !ok {
		return ErrNotFound
	}
	member, exists := t.Members[agentID]
	if !exists {
		return ErrNotFound
	}
	member.Roles = roles
	return nil
}
