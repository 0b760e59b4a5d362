package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	t.Parallel()
	r := NewRegistry(zap.NewNop())

	a := &Agent{Name: "researcher"}
	require.NoError(t, r.Register(context.Background(), a))
	assert.NotEmpty(t, a.ID, "ID should be auto-generated")
	assert.False(t, a.RegisteredAt.IsZero())

	got, err := r.GetAgent(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "researcher", got.Name)
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	t.Parallel()
	r := NewRegistry(zap.NewNop())

	a := &Agent{ID: "a1", Name: "one"}
	require.NoError(t, r.Register(context.Background(), a))

	err := r.Register(context.Background(), &Agent{ID: "a1", Name: "two"})
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestRegistry_GetUnknown(t *testing.T) {
	t.Parallel()
	r := NewRegistry(zap.NewNop())

	_, err := r.GetAgent(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_Deregister(t *testing.T) {
	t.Parallel()
	r := NewRegistry(zap.NewNop())

	require.NoError(t, r.Register(context.Background(), &Agent{ID: "a1"}))
	require.NoError(t, r.Deregister(context.Background(), "a1"))

	_, err := r.GetAgent(context.Background(), "a1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, r.Deregister(context.Background(), "a1"), ErrNotFound)
}

func TestRegistry_ListAgents(t *testing.T) {
	t.Parallel()
	r := NewRegistry(zap.NewNop())

	require.NoError(t, r.Register(context.Background(), &Agent{ID: "a1"}))
	require.NoError(t, r.Register(context.Background(), &Agent{ID: "a2"}))

	assert.Len(t, r.ListAgents(context.Background()), 2)
}
