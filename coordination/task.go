package coordination

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/daneel-ai/daneel/agent"
	"github.com/daneel-ai/daneel/bus"
	"github.com/daneel-ai/daneel/types"
)

// TaskStatus is the lifecycle state of a task or of a single assignment.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskAssigned   TaskStatus = "assigned"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskCancelled  TaskStatus = "cancelled"
)

// TaskAssignment tracks one agent's work on a task.
type TaskAssignment struct {
	Status     TaskStatus `json:"status"`
	Progress   float64    `json:"progress"` // 0.0 to 1.0
	Result     any        `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	AssignedAt time.Time  `json:"assigned_at"`
}

// Task is a unit of work distributed across one or more agents. Status is the
// aggregate view; per-agent state lives in Assignments.
type Task struct {
	ID           string                     `json:"id"`
	Title        string                     `json:"title"`
	Description  string                     `json:"description"`
	Status       TaskStatus                 `json:"status"`
	Priority     types.Priority             `json:"priority"`
	CreatorID    string                     `json:"creator_id"`
	TeamID       string                     `json:"team_id,omitempty"`
	ParentTaskID string                     `json:"parent_task_id,omitempty"`
	SubtaskIDs   []string                   `json:"subtask_ids,omitempty"`
	Dependencies []string                   `json:"dependencies,omitempty"` // advisory, not enforced
	Assignments  map[string]*TaskAssignment `json:"assignments"`
	Deadline     *time.Time                 `json:"deadline,omitempty"` // advisory only
	Metadata     map[string]any             `json:"metadata,omitempty"`
	CreatedAt    time.Time                  `json:"created_at"`
	UpdatedAt    time.Time                  `json:"updated_at"`
}

// TaskRequest carries the parameters for CreateTask.
type TaskRequest struct {
	Title        string
	Description  string
	CreatorID    string
	Priority     types.Priority // defaults to PriorityNormal
	TeamID       string
	ParentTaskID string
	Dependencies []string
	Deadline     *time.Time
	Metadata     map[string]any
}

// TaskUpdate carries a status report from an assigned agent. Progress is
// optional; when set it is clamped to [0, 1].
type TaskUpdate struct {
	Status   TaskStatus
	Progress *float64
	Result   any
	Error    string
}

// TaskFilter narrows ListTasks results. Zero fields match anything; set
// fields combine with AND. AgentID matches tasks the agent is assigned to.
type TaskFilter struct {
	Status   TaskStatus
	Priority types.Priority
	TeamID   string
	AgentID  string
}

// TaskManager creates, assigns, and tracks tasks.
type TaskManager struct {
	mu    sync.RWMutex
	tasks map[string]*Task

	// agentTasks maps agent ID to every task ever assigned to it, each task
	// at most once. Entries are never removed; historical lookups stay
	// valid after reassignment.
	agentTasks map[string][]string

	agents  agent.Store
	bus     bus.Bus
	metrics Metrics

	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewTaskManager creates a task manager.
func NewTaskManager(agents agent.Store, b bus.Bus, logger *zap.Logger) *TaskManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskManager{
		tasks:      make(map[string]*Task),
		agentTasks: make(map[string][]string),
		agents:     agents,
		bus:        b,
		logger:     logger.With(zap.String("component", "task_manager")),
	}
}

// WithMetrics attaches a metrics sink and returns the manager.
func (m *TaskManager) WithMetrics(metrics Metrics) *TaskManager {
	m.metrics = metrics
	return m
}

// Close waits for in-flight notifications to finish.
func (m *TaskManager) Close() error {
	m.wg.Wait()
	return nil
}

// CreateTask registers a new task in PENDING state. When ParentTaskID names a
// known task, the new task is linked as its subtask; an unknown parent leaves
// the link one-sided.
func (m *TaskManager) CreateTask(ctx context.Context, req TaskRequest) *Task {
	if req.Priority == "" {
		req.Priority = types.PriorityNormal
	}

	now := time.Now().UTC()
	t := &Task{
		ID:           uuid.New().String(),
		Title:        req.Title,
		Description:  req.Description,
		Status:       TaskPending,
		Priority:     req.Priority,
		CreatorID:    req.CreatorID,
		TeamID:       req.TeamID,
		ParentTaskID: req.ParentTaskID,
		Dependencies: req.Dependencies,
		Assignments:  make(map[string]*TaskAssignment),
		Deadline:     req.Deadline,
		Metadata:     req.Metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	m.mu.Lock()
	m.tasks[t.ID] = t
	if parent, ok := m.tasks[req.ParentTaskID]; ok {
		parent.SubtaskIDs = append(parent.SubtaskIDs, t.ID)
	}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.TaskCreated(string(t.Priority))
	}
	m.logger.Info("task created",
		zap.String("task_id", t.ID),
		zap.String("priority", string(t.Priority)),
		zap.String("creator_id", t.CreatorID))

	return t
}

// GetTask returns the task, or nil if unknown.
func (m *TaskManager) GetTask(ctx context.Context, taskID string) *Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tasks[taskID]
}

// ListTasks returns all tasks matching the filter.
func (m *TaskManager) ListTasks(ctx context.Context, filter TaskFilter) []*Task {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Task, 0)
	for _, t := range m.tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		if filter.TeamID != "" && t.TeamID != filter.TeamID {
			continue
		}
		if filter.AgentID != "" {
			if _, assigned := t.Assignments[filter.AgentID]; !assigned {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// AssignTask assigns the task to an agent and notifies them. It returns false
// when the agent or task is unknown, or the task is already completed or
// cancelled. Re-assigning an agent resets their assignment and puts the task
// back in ASSIGNED state.
func (m *TaskManager) AssignTask(ctx context.Context, taskID, agentID string) (bool, error) {
	if _, err := m.agents.GetAgent(ctx, agentID); err != nil {
		if errors.Is(err, agent.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	m.mu.Lock()

	t, ok := m.tasks[taskID]
	if !ok {
		m.mu.Unlock()
		return false, nil
	}
	if t.Status == TaskCompleted || t.Status == TaskCancelled {
		m.mu.Unlock()
		return false, nil
	}

	t.Assignments[agentID] = &TaskAssignment{
		Status:     TaskAssigned,
		AssignedAt: time.Now().UTC(),
	}
	t.Status = TaskAssigned
	t.UpdatedAt = time.Now().UTC()
	m.indexAssignment(agentID, taskID)

	title := t.Title
	description := t.Description
	priority := t.Priority
	deadline := t.Deadline
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.TaskAssigned()
		m.metrics.TaskTransition(string(TaskAssigned))
	}
	m.logger.Info("task assigned",
		zap.String("task_id", taskID),
		zap.String("agent_id", agentID))

	content := encodePayload(map[string]any{
		"task_id":     taskID,
		"title":       title,
		"description": description,
		"priority":    string(priority),
		"deadline":    deadline,
	})
	metadata := map[string]any{"task_id": taskID, "action": "assigned"}
	m.notifyAsync(func(ctx context.Context) {
		m.send(ctx, []string{agentID}, types.MessageTypeTaskAssignment, content, types.PriorityHigh, metadata)
	})

	return true, nil
}

// UpdateTaskStatus applies an assigned agent's status report and recomputes
// the aggregate task status. It returns false when the task is unknown or the
// agent has no assignment on it. The creator is notified of every accepted
// update.
func (m *TaskManager) UpdateTaskStatus(ctx context.Context, taskID, agentID string, update TaskUpdate) (bool, error) {
	m.mu.Lock()

	t, ok := m.tasks[taskID]
	if !ok {
		m.mu.Unlock()
		return false, nil
	}
	assignment, ok := t.Assignments[agentID]
	if !ok {
		m.mu.Unlock()
		return false, nil
	}

	assignment.Status = update.Status
	if update.Progress != nil {
		assignment.Progress = clampProgress(*update.Progress)
	}
	if update.Result != nil {
		assignment.Result = update.Result
	}
	if update.Error != "" {
		assignment.Error = update.Error
	}

	previous := t.Status
	t.Status = aggregateStatus(t.Status, t.Assignments, update.Status)
	t.UpdatedAt = time.Now().UTC()

	creatorID := t.CreatorID
	progress := assignment.Progress
	result := assignment.Result
	errMsg := assignment.Error
	aggregate := t.Status
	m.mu.Unlock()

	if m.metrics != nil && aggregate != previous {
		m.metrics.TaskTransition(string(aggregate))
	}
	m.logger.Debug("task status updated",
		zap.String("task_id", taskID),
		zap.String("agent_id", agentID),
		zap.String("assignment_status", string(update.Status)),
		zap.String("task_status", string(aggregate)))

	content := encodePayload(map[string]any{
		"task_id":  taskID,
		"agent_id": agentID,
		"status":   string(update.Status),
		"progress": progress,
		"result":   result,
		"error":    errMsg,
	})
	metadata := map[string]any{"task_id": taskID, "action": "status_updated"}
	m.notifyAsync(func(ctx context.Context) {
		m.send(ctx, []string{creatorID}, types.MessageTypeTaskStatus, content, types.PriorityNormal, metadata)
	})

	return true, nil
}

// CancelTask forces the task and every assignment to CANCELLED and notifies
// each assignee. It returns false when the task is unknown or already
// completed or cancelled.
func (m *TaskManager) CancelTask(ctx context.Context, taskID, cancellerID string) (bool, error) {
	m.mu.Lock()

	t, ok := m.tasks[taskID]
	if !ok {
		m.mu.Unlock()
		return false, nil
	}
	if t.Status == TaskCompleted || t.Status == TaskCancelled {
		m.mu.Unlock()
		return false, nil
	}

	t.Status = TaskCancelled
	t.UpdatedAt = time.Now().UTC()
	assignees := make([]string, 0, len(t.Assignments))
	for id, a := range t.Assignments {
		a.Status = TaskCancelled
		assignees = append(assignees, id)
	}
	title := t.Title
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.TaskTransition(string(TaskCancelled))
	}
	m.logger.Info("task cancelled",
		zap.String("task_id", taskID),
		zap.String("cancelled_by", cancellerID))

	content := encodePayload(map[string]any{
		"task_id":      taskID,
		"title":        title,
		"status":       string(TaskCancelled),
		"cancelled_by": cancellerID,
	})
	metadata := map[string]any{
		"task_id": taskID,
		"action":  "cancelled",
		"status":  string(TaskCancelled),
	}
	m.notifyAsync(func(ctx context.Context) {
		m.send(ctx, assignees, types.MessageTypeTaskStatus, content, types.PriorityHigh, metadata)
	})

	return true, nil
}

// GetAgentTasks returns every task ever assigned to the agent, optionally
// filtered by current aggregate status.
func (m *TaskManager) GetAgentTasks(ctx context.Context, agentID string, status TaskStatus) []*Task {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Task, 0)
	for _, taskID := range m.agentTasks[agentID] {
		t, ok := m.tasks[taskID]
		if !ok {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, t)
	}
	return out
}

// indexAssignment records the agent-task pair once. Caller holds the write
// lock.
func (m *TaskManager) indexAssignment(agentID, taskID string) {
	for _, id := range m.agentTasks[agentID] {
		if id == taskID {
			return
		}
	}
	m.agentTasks[agentID] = append(m.agentTasks[agentID], taskID)
}

// aggregateStatus derives the task-level status after one assignment changed.
// A single failure or start of work propagates immediately; completion
// requires every assignment to have completed.
func aggregateStatus(current TaskStatus, assignments map[string]*TaskAssignment, reported TaskStatus) TaskStatus {
	switch reported {
	case TaskFailed:
		return TaskFailed
	case TaskInProgress:
		return TaskInProgress
	case TaskCompleted:
		for _, a := range assignments {
			if a.Status != TaskCompleted {
				return current
			}
		}
		return TaskCompleted
	default:
		return current
	}
}

func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func (m *TaskManager) send(ctx context.Context, recipients []string, msgType types.MessageType, content string, priority types.Priority, metadata map[string]any) {
	for _, id := range recipients {
		if err := m.bus.Send(ctx, id, msgType, content, priority, metadata); err != nil {
			m.logger.Warn("notification failed",
				zap.String("receiver", id),
				zap.String("type", string(msgType)),
				zap.Error(err))
		}
	}
}

func (m *TaskManager) notifyAsync(fn func(ctx context.Context)) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn(context.Background())
	}()
}
