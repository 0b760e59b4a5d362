package coordination

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daneel-ai/daneel/testutil"
	"github.com/daneel-ai/daneel/types"
)

func newTaskHarness(t *testing.T, agentIDs ...string) (*TaskManager, *testutil.RecordingBus) {
	t.Helper()
	agents := testutil.SeedAgents(t, agentIDs...)
	rec := &testutil.RecordingBus{}
	return NewTaskManager(agents, rec, nil), rec
}

func progressOf(p float64) *float64 { return &p }

func TestCreateTask_Defaults(t *testing.T) {
	t.Parallel()
	m, _ := newTaskHarness(t, "creator")

	task := m.CreateTask(context.Background(), TaskRequest{Title: "index corpus", CreatorID: "creator"})

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, TaskPending, task.Status)
	assert.Equal(t, types.PriorityNormal, task.Priority)
	assert.Empty(t, task.Assignments)
	assert.Same(t, task, m.GetTask(context.Background(), task.ID))
}

func TestCreateTask_LinksSubtaskToParent(t *testing.T) {
	t.Parallel()
	m, _ := newTaskHarness(t, "creator")

	parent := m.CreateTask(context.Background(), TaskRequest{Title: "parent", CreatorID: "creator"})
	child := m.CreateTask(context.Background(), TaskRequest{Title: "child", CreatorID: "creator", ParentTaskID: parent.ID})

	assert.Equal(t, parent.ID, child.ParentTaskID)
	assert.Equal(t, []string{child.ID}, m.GetTask(context.Background(), parent.ID).SubtaskIDs)
}

func TestCreateTask_UnknownParentLeavesLinkOneSided(t *testing.T) {
	t.Parallel()
	m, _ := newTaskHarness(t, "creator")

	child := m.CreateTask(context.Background(), TaskRequest{Title: "orphan", CreatorID: "creator", ParentTaskID: "missing"})
	assert.Equal(t, "missing", child.ParentTaskID)
}

func TestAssignTask_NotifiesAssignee(t *testing.T) {
	t.Parallel()
	m, rec := newTaskHarness(t, "creator", "worker")
	task := m.CreateTask(context.Background(), TaskRequest{Title: "index corpus", CreatorID: "creator", Priority: types.PriorityUrgent})

	ok, err := m.AssignTask(context.Background(), task.ID, "worker")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, m.Close())

	assert.Equal(t, TaskAssigned, task.Status)
	require.Contains(t, task.Assignments, "worker")
	assert.Equal(t, TaskAssigned, task.Assignments["worker"].Status)
	assert.False(t, task.Assignments["worker"].AssignedAt.IsZero())

	sent := rec.SentTo("worker")
	require.Len(t, sent, 1)
	assert.Equal(t, types.MessageTypeTaskAssignment, sent[0].Type)
	assert.Equal(t, types.PriorityHigh, sent[0].Priority)
	assert.Equal(t, task.ID, sent[0].Metadata["task_id"])
}

func TestAssignTask_BusinessFailures(t *testing.T) {
	t.Parallel()
	m, _ := newTaskHarness(t, "creator", "worker")
	task := m.CreateTask(context.Background(), TaskRequest{Title: "t", CreatorID: "creator"})

	ok, err := m.AssignTask(context.Background(), task.ID, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.AssignTask(context.Background(), "no-such-task", "worker")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = m.CancelTask(context.Background(), task.ID, "creator")
	require.NoError(t, err)
	ok, err = m.AssignTask(context.Background(), task.ID, "worker")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAssignTask_ReassignmentResetsAssignment(t *testing.T) {
	t.Parallel()
	m, _ := newTaskHarness(t, "creator", "worker")
	task := m.CreateTask(context.Background(), TaskRequest{Title: "t", CreatorID: "creator"})

	ok, err := m.AssignTask(context.Background(), task.ID, "worker")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = m.UpdateTaskStatus(context.Background(), task.ID, "worker", TaskUpdate{Status: TaskInProgress, Progress: progressOf(0.8)})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, TaskInProgress, task.Status)

	ok, err = m.AssignTask(context.Background(), task.ID, "worker")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, TaskAssigned, task.Status)
	assert.Equal(t, TaskAssigned, task.Assignments["worker"].Status)
	assert.Equal(t, 0.0, task.Assignments["worker"].Progress)
}

func TestUpdateTaskStatus_ProgressReport(t *testing.T) {
	t.Parallel()
	m, rec := newTaskHarness(t, "creator", "worker")
	task := m.CreateTask(context.Background(), TaskRequest{Title: "t", CreatorID: "creator"})

	ok, err := m.AssignTask(context.Background(), task.ID, "worker")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = m.UpdateTaskStatus(context.Background(), task.ID, "worker", TaskUpdate{Status: TaskInProgress, Progress: progressOf(0.5)})
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, TaskInProgress, task.Status)
	assert.Equal(t, 0.5, task.Assignments["worker"].Progress)

	require.NoError(t, m.Close())
	sent := rec.SentTo("creator")
	require.NotEmpty(t, sent)
	last := sent[len(sent)-1]
	assert.Equal(t, types.MessageTypeTaskStatus, last.Type)
	assert.Equal(t, types.PriorityNormal, last.Priority)
	assert.Contains(t, last.Content, `"status":"in_progress"`)
}

func TestUpdateTaskStatus_ClampsProgress(t *testing.T) {
	t.Parallel()
	m, _ := newTaskHarness(t, "creator", "worker")
	task := m.CreateTask(context.Background(), TaskRequest{Title: "t", CreatorID: "creator"})

	ok, err := m.AssignTask(context.Background(), task.ID, "worker")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = m.UpdateTaskStatus(context.Background(), task.ID, "worker", TaskUpdate{Status: TaskInProgress, Progress: progressOf(1.7)})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.0, task.Assignments["worker"].Progress)

	ok, err = m.UpdateTaskStatus(context.Background(), task.ID, "worker", TaskUpdate{Status: TaskInProgress, Progress: progressOf(-0.3)})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.0, task.Assignments["worker"].Progress)
}

func TestUpdateTaskStatus_WithoutAssignmentFails(t *testing.T) {
	t.Parallel()
	m, _ := newTaskHarness(t, "creator", "worker")
	task := m.CreateTask(context.Background(), TaskRequest{Title: "t", CreatorID: "creator"})

	ok, err := m.UpdateTaskStatus(context.Background(), task.ID, "worker", TaskUpdate{Status: TaskInProgress})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.UpdateTaskStatus(context.Background(), "no-such-task", "worker", TaskUpdate{Status: TaskInProgress})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateTaskStatus_FailureShortCircuits(t *testing.T) {
	t.Parallel()
	m, _ := newTaskHarness(t, "creator", "w1", "w2")
	task := m.CreateTask(context.Background(), TaskRequest{Title: "t", CreatorID: "creator"})

	for _, w := range []string{"w1", "w2"} {
		ok, err := m.AssignTask(context.Background(), task.ID, w)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := m.UpdateTaskStatus(context.Background(), task.ID, "w1", TaskUpdate{Status: TaskCompleted, Progress: progressOf(1)})
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, TaskCompleted, task.Status)

	ok, err = m.UpdateTaskStatus(context.Background(), task.ID, "w2", TaskUpdate{Status: TaskFailed, Error: "disk full"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, TaskFailed, task.Status)
	assert.Equal(t, "disk full", task.Assignments["w2"].Error)
}

func TestUpdateTaskStatus_CompletionRequiresEveryAssignment(t *testing.T) {
	t.Parallel()
	m, _ := newTaskHarness(t, "creator", "w1", "w2")
	task := m.CreateTask(context.Background(), TaskRequest{Title: "t", CreatorID: "creator"})

	for _, w := range []string{"w1", "w2"} {
		ok, err := m.AssignTask(context.Background(), task.ID, w)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := m.UpdateTaskStatus(context.Background(), task.ID, "w1", TaskUpdate{Status: TaskCompleted, Result: "done"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, TaskAssigned, task.Status)

	ok, err = m.UpdateTaskStatus(context.Background(), task.ID, "w2", TaskUpdate{Status: TaskCompleted})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, TaskCompleted, task.Status)
}

func TestCancelTask_AffectsEveryAssignment(t *testing.T) {
	t.Parallel()
	m, rec := newTaskHarness(t, "creator", "w1", "w2")
	task := m.CreateTask(context.Background(), TaskRequest{Title: "t", CreatorID: "creator"})

	for _, w := range []string{"w1", "w2"} {
		ok, err := m.AssignTask(context.Background(), task.ID, w)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := m.CancelTask(context.Background(), task.ID, "creator")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, TaskCancelled, task.Status)
	for _, a := range task.Assignments {
		assert.Equal(t, TaskCancelled, a.Status)
	}

	require.NoError(t, m.Close())
	for _, w := range []string{"w1", "w2"} {
		found := false
		for _, msg := range rec.SentTo(w) {
			if msg.Metadata["action"] == "cancelled" {
				found = true
			}
		}
		assert.True(t, found, w)
	}
}

func TestCancelTask_CompletedTaskUnchanged(t *testing.T) {
	t.Parallel()
	m, _ := newTaskHarness(t, "creator", "worker")
	task := m.CreateTask(context.Background(), TaskRequest{Title: "t", CreatorID: "creator"})

	ok, err := m.AssignTask(context.Background(), task.ID, "worker")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = m.UpdateTaskStatus(context.Background(), task.ID, "worker", TaskUpdate{Status: TaskCompleted})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, TaskCompleted, task.Status)

	ok, err = m.CancelTask(context.Background(), task.ID, "creator")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, TaskCompleted, task.Status)
	assert.Equal(t, TaskCompleted, task.Assignments["worker"].Status)
}

func TestGetAgentTasks_ReassignmentIndexedOnce(t *testing.T) {
	t.Parallel()
	m, _ := newTaskHarness(t, "creator", "worker")
	task := m.CreateTask(context.Background(), TaskRequest{Title: "t", CreatorID: "creator"})

	for i := 0; i < 2; i++ {
		ok, err := m.AssignTask(context.Background(), task.ID, "worker")
		require.NoError(t, err)
		require.True(t, ok)
	}

	assert.Len(t, m.GetAgentTasks(context.Background(), "worker", ""), 1)
}

func TestAssignTask_BusFailureDoesNotUndoAssignment(t *testing.T) {
	t.Parallel()
	m, rec := newTaskHarness(t, "creator", "worker")
	ctx := testutil.TestContext(t)
	task := m.CreateTask(ctx, TaskRequest{Title: "t", CreatorID: "creator"})

	rec.FailWith(types.NewError(types.ErrBusClosed, "bus is closed"))

	ok, err := m.AssignTask(ctx, task.ID, "worker")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, m.Close())

	// Delivery failure is invisible to the caller; the assignment stands.
	assert.Equal(t, TaskAssigned, task.Status)
	assert.Contains(t, task.Assignments, "worker")
}

func TestGetAgentTasks_KeepsHistory(t *testing.T) {
	t.Parallel()
	m, _ := newTaskHarness(t, "creator", "worker")

	first := m.CreateTask(context.Background(), TaskRequest{Title: "first", CreatorID: "creator"})
	second := m.CreateTask(context.Background(), TaskRequest{Title: "second", CreatorID: "creator"})
	for _, task := range []*Task{first, second} {
		ok, err := m.AssignTask(context.Background(), task.ID, "worker")
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := m.UpdateTaskStatus(context.Background(), first.ID, "worker", TaskUpdate{Status: TaskCompleted})
	require.NoError(t, err)
	require.True(t, ok)

	all := m.GetAgentTasks(context.Background(), "worker", "")
	assert.Len(t, all, 2)

	completed := m.GetAgentTasks(context.Background(), "worker", TaskCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, first.ID, completed[0].ID)

	assert.Empty(t, m.GetAgentTasks(context.Background(), "idle", ""))
}

func TestListTasks_Filters(t *testing.T) {
	t.Parallel()
	m, _ := newTaskHarness(t, "creator", "worker")

	urgent := m.CreateTask(context.Background(), TaskRequest{Title: "urgent", CreatorID: "creator", Priority: types.PriorityUrgent, TeamID: "ops"})
	m.CreateTask(context.Background(), TaskRequest{Title: "normal", CreatorID: "creator"})

	ok, err := m.AssignTask(context.Background(), urgent.ID, "worker")
	require.NoError(t, err)
	require.True(t, ok)

	byPriority := m.ListTasks(context.Background(), TaskFilter{Priority: types.PriorityUrgent})
	require.Len(t, byPriority, 1)
	assert.Equal(t, urgent.ID, byPriority[0].ID)

	byTeam := m.ListTasks(context.Background(), TaskFilter{TeamID: "ops"})
	assert.Len(t, byTeam, 1)

	byAgent := m.ListTasks(context.Background(), TaskFilter{AgentID: "worker"})
	require.Len(t, byAgent, 1)
	assert.Equal(t, urgent.ID, byAgent[0].ID)

	pending := m.ListTasks(context.Background(), TaskFilter{Status: TaskPending})
	assert.Len(t, pending, 1)

	all := m.ListTasks(context.Background(), TaskFilter{})
	assert.Len(t, all, 2)
}

func TestAssignTask_StoreFailurePropagates(t *testing.T) {
	t.Parallel()
	failing := &testutil.FailingAgentStore{Err: types.NewError(types.ErrStoreUnavailable, "store down")}
	m := NewTaskManager(failing, &testutil.RecordingBus{}, nil)
	task := m.CreateTask(context.Background(), TaskRequest{Title: "t", CreatorID: "creator"})

	ok, err := m.AssignTask(context.Background(), task.ID, "worker")
	assert.False(t, ok)
	require.Error(t, err)
}
