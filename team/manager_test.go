package team

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/daneel-ai/daneel/types"
)

func TestInMemoryManager_CreateAndGet(t *testing.T) {
	t.Parallel()
	m := NewInMemoryManager(zap.NewNop())

	tm := m.CreateTeam(context.Background(), "research", "research squad")
	assert.NotEmpty(t, tm.ID)

	got, err := m.GetTeam(context.Background(), tm.ID)
	require.NoError(t, err)
	assert.Equal(t, "research", got.Name)
	assert.Empty(t, got.Members)
}

func TestInMemoryManager_GetUnknown(t *testing.T) {
	t.Parallel()
	m := NewInMemoryManager(zap.NewNop())

	_, err := m.GetTeam(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryManager_AddMember(t *testing.T) {
	t.Parallel()
	m := NewInMemoryManager(zap.NewNop())
	tm := m.CreateTeam(context.Background(), "t", "")

	require.NoError(t, m.AddMember(context.Background(), tm.ID, "a1", types.TeamRoleLeader))

	got, err := m.GetTeam(context.Background(), tm.ID)
	require.NoError(t, err)
	require.Contains(t, got.Members, "a1")
	assert.True(t, got.Members["a1"].HasRole(types.TeamRoleLeader))
	assert.False(t, got.Members["a1"].HasRole(types.TeamRoleCoordinator))
}

func TestInMemoryManager_AddMember_DefaultRole(t *testing.T) {
	t.Parallel()
	m := NewInMemoryManager(zap.NewNop())
	tm := m.CreateTeam(context.Background(), "t", "")

	require.NoError(t, m.AddMember(context.Background(), tm.ID, "a1"))

	got, _ := m.GetTeam(context.Background(), tm.ID)
	assert.True(t, got.Members["a1"].HasRole(types.TeamRoleMember))
}

func TestInMemoryManager_AddMember_Duplicate(t *testing.T) {
	t.Parallel()
	m := NewInMemoryManager(zap.NewNop())
	tm := m.CreateTeam(context.Background(), "t", "")

	require.NoError(t, m.AddMember(context.Background(), tm.ID, "a1"))
	assert.ErrorIs(t, m.AddMember(context.Background(), tm.ID, "a1"), ErrMemberExists)
}

func TestInMemoryManager_RemoveMember(t *testing.T) {
	t.Parallel()
	m := NewInMemoryManager(zap.NewNop())
	tm := m.CreateTeam(context.Background(), "t", "")

	require.NoError(t, m.AddMember(context.Background(), tm.ID, "a1"))
	require.NoError(t, m.RemoveMember(context.Background(), tm.ID, "a1"))

	got, _ := m.GetTeam(context.Background(), tm.ID)
	assert.NotContains(t, got.Members, "a1")

	assert.ErrorIs(t, m.RemoveMember(context.Background(), tm.ID, "a1"), ErrNotFound)
}

func TestInMemoryManager_SetRoles(t *testing.T) {
	t.Parallel()
	m := NewInMemoryManager(zap.NewNop())
	tm := m.CreateTeam(context.Background(), "t", "")

	require.NoError(t, m.AddMember(context.Background(), tm.ID, "a1", types.TeamRoleMember))
	require.NoError(t, m.SetRoles(context.Background(), tm.ID, "a1", types.TeamRoleLeader, types.TeamRoleCoordinator))

	got, _ := m.GetTeam(context.Background(), tm.ID)
	assert.True(t, got.Members["a1"].HasRole(types.TeamRoleLeader))
	assert.True(t, got.Members["a1"].HasRole(types.TeamRoleCoordinator))
}

func TestInMemoryManager_ListTeams(t *testing.T) {
	t.Parallel()
	m := NewInMemoryManager(zap.NewNop())
	m.CreateTeam(context.Background(), "a", "")
	m.CreateTeam(context.Background(), "b", "")
	assert.Len(t, m.ListTeams(context.Background()), 2)
}
