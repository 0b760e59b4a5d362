package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/daneel-ai/daneel/agent"
	"github.com/daneel-ai/daneel/team"
	"github.com/daneel-ai/daneel/types"
)

// TestContext returns a context cancelled when the test ends.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// SeedAgents registers agents with the given IDs and returns the registry.
func SeedAgents(t *testing.T, ids ...string) *agent.Registry {
	t.Helper()
	reg := agent.NewRegistry(nil)
	ctx := context.Background()
	for _, id := range ids {
		require.NoError(t, reg.Register(ctx, &agent.Agent{ID: id, Name: id}))
	}
	return reg
}

// SeedTeam creates a team with the given members, all in the member role,
// and returns it.
func SeedTeam(t *testing.T, mgr *team.InMemoryManager, name string, memberIDs ...string) *team.Team {
	t.Helper()
	ctx := context.Background()
	tm := mgr.CreateTeam(ctx, name, "")
	for _, id := range memberIDs {
		require.NoError(t, mgr.AddMember(ctx, tm.ID, id))
	}
	return tm
}

// GrantRole gives a team member an additional role on top of member.
func GrantRole(t *testing.T, mgr *team.InMemoryManager, teamID, agentID string, role types.TeamRole) {
	t.Helper()
	require.NoError(t, mgr.SetRoles(context.Background(), teamID, agentID, types.TeamRoleMember, role))
}
