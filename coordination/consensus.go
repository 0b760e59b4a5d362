package coordination

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/daneel-ai/daneel/agent"
	"github.com/daneel-ai/daneel/bus"
	"github.com/daneel-ai/daneel/team"
	"github.com/daneel-ai/daneel/types"
)

// ConsensusStatus is the lifecycle state of a consensus process.
type ConsensusStatus string

const (
	ConsensusOpen      ConsensusStatus = "open"
	ConsensusClosed    ConsensusStatus = "closed"
	ConsensusApproved  ConsensusStatus = "approved"
	ConsensusRejected  ConsensusStatus = "rejected"
	ConsensusCancelled ConsensusStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s ConsensusStatus) Terminal() bool {
	return s == ConsensusApproved || s == ConsensusRejected || s == ConsensusCancelled
}

// ConsensusType selects the tally rule. Fixed at creation.
type ConsensusType string

const (
	ConsensusMajority      ConsensusType = "majority"
	ConsensusSuperMajority ConsensusType = "super_majority"
	ConsensusUnanimous     ConsensusType = "unanimous"
	ConsensusWeighted      ConsensusType = "weighted"
)

// VoteOption is one agent's position.
type VoteOption string

const (
	VoteYes     VoteOption = "yes"
	VoteNo      VoteOption = "no"
	VoteAbstain VoteOption = "abstain"
)

// Vote is one agent's current vote. A later vote by the same agent replaces
// the earlier one; no history is kept.
type Vote struct {
	Option    VoteOption `json:"option"`
	Weight    float64    `json:"weight"`
	Reason    string     `json:"reason,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Consensus is a single multi-agent voting process.
type Consensus struct {
	ID                   string           `json:"id"`
	Title                string           `json:"title"`
	Description          string           `json:"description"`
	Type                 ConsensusType    `json:"type"`
	Status               ConsensusStatus  `json:"status"`
	CreatorID            string           `json:"creator_id"`
	TeamID               string           `json:"team_id,omitempty"`
	Votes                map[string]*Vote `json:"votes"`
	RequiredParticipants []string         `json:"required_participants,omitempty"`
	Deadline             *time.Time       `json:"deadline,omitempty"` // advisory only
	Metadata             map[string]any   `json:"metadata,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
}

// ConsensusRequest carries the parameters for CreateConsensus.
type ConsensusRequest struct {
	Title                string
	Description          string
	CreatorID            string
	Type                 ConsensusType // defaults to ConsensusMajority
	TeamID               string
	RequiredParticipants []string
	Deadline             *time.Time
	Metadata             map[string]any
}

// ConsensusFilter narrows ListConsensus results. Zero fields match anything;
// set fields combine with AND. AgentID matches processes the agent voted in,
// created, or is a required participant of.
type ConsensusFilter struct {
	Status  ConsensusStatus
	TeamID  string
	AgentID string
}

// Metrics is the observation surface the managers publish to. All methods
// must be safe for concurrent use. Satisfied by internal/metrics.Collector.
type Metrics interface {
	ConsensusCreated(consensusType string)
	VoteRecorded(option string)
	ConsensusSettled(status string)
	TallyObserved(d time.Duration)
	TaskCreated(priority string)
	TaskTransition(status string)
	TaskAssigned()
}

// Ordered role-weight table for weighted voting. First match wins, so an
// agent holding both roles weighs in as leader.
var roleWeights = []struct {
	role   types.TeamRole
	weight float64
}{
	{types.TeamRoleLeader, 3.0},
	{types.TeamRoleCoordinator, 2.0},
}

const defaultVoteWeight = 1.0

// ConsensusManager creates, tallies, and settles voting processes.
type ConsensusManager struct {
	mu        sync.RWMutex
	processes map[string]*Consensus

	agents  agent.Store
	teams   team.Manager
	bus     bus.Bus
	metrics Metrics

	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewConsensusManager creates a consensus manager.
func NewConsensusManager(agents agent.Store, teams team.Manager, b bus.Bus, logger *zap.Logger) *ConsensusManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsensusManager{
		processes: make(map[string]*Consensus),
		agents:    agents,
		teams:     teams,
		bus:       b,
		logger:    logger.With(zap.String("component", "consensus_manager")),
	}
}

// WithMetrics attaches a metrics sink and returns the manager.
func (m *ConsensusManager) WithMetrics(metrics Metrics) *ConsensusManager {
	m.metrics = metrics
	return m
}

// Close waits for in-flight notifications to finish.
func (m *ConsensusManager) Close() error {
	m.wg.Wait()
	return nil
}

// CreateConsensus opens a new voting process and notifies the involved agents.
func (m *ConsensusManager) CreateConsensus(ctx context.Context, req ConsensusRequest) *Consensus {
	if req.Type == "" {
		req.Type = ConsensusMajority
	}

	c := &Consensus{
		ID:                   uuid.New().String(),
		Title:                req.Title,
		Description:          req.Description,
		Type:                 req.Type,
		Status:               ConsensusOpen,
		CreatorID:            req.CreatorID,
		TeamID:               req.TeamID,
		Votes:                make(map[string]*Vote),
		RequiredParticipants: req.RequiredParticipants,
		Deadline:             req.Deadline,
		Metadata:             req.Metadata,
		CreatedAt:            time.Now().UTC(),
	}

	m.mu.Lock()
	m.processes[c.ID] = c
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ConsensusCreated(string(c.Type))
	}
	m.logger.Info("consensus created",
		zap.String("consensus_id", c.ID),
		zap.String("type", string(c.Type)),
		zap.String("creator_id", c.CreatorID))

	content := encodePayload(map[string]any{
		"consensus_id": c.ID,
		"title":        c.Title,
		"description":  c.Description,
		"type":         string(c.Type),
		"deadline":     c.Deadline,
	})
	metadata := map[string]any{"consensus_id": c.ID, "action": "created"}
	m.notifyAsync(func(ctx context.Context) {
		recipients := m.participantSet(ctx, c.TeamID, c.RequiredParticipants, nil, c.CreatorID)
		m.send(ctx, recipients, types.MessageTypeConsensus, content, types.PriorityHigh, metadata)
	})

	return c
}

// GetConsensus returns the process, or nil if unknown.
func (m *ConsensusManager) GetConsensus(ctx context.Context, consensusID string) *Consensus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.processes[consensusID]
}

// ListConsensus returns all processes matching the filter.
func (m *ConsensusManager) ListConsensus(ctx context.Context, filter ConsensusFilter) []*Consensus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Consensus, 0)
	for _, c := range m.processes {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.TeamID != "" && c.TeamID != filter.TeamID {
			continue
		}
		if filter.AgentID != "" && !involvesAgent(c, filter.AgentID) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func involvesAgent(c *Consensus, agentID string) bool {
	if c.CreatorID == agentID {
		return true
	}
	if _, voted := c.Votes[agentID]; voted {
		return true
	}
	for _, p := range c.RequiredParticipants {
		if p == agentID {
			return true
		}
	}
	return false
}

// Vote records or replaces an agent's vote. It returns false when the agent
// is unknown, the process is unknown or no longer open, or the agent is not a
// member of the process's team. A successful vote may settle the process when
// every required participant or every team member has now voted.
func (m *ConsensusManager) Vote(ctx context.Context, consensusID, agentID string, option VoteOption, reason string) (bool, error) {
	if _, err := m.agents.GetAgent(ctx, agentID); err != nil {
		if errors.Is(err, agent.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	m.mu.Lock()

	c, ok := m.processes[consensusID]
	if !ok {
		m.mu.Unlock()
		return false, nil
	}
	if c.Status != ConsensusOpen {
		m.mu.Unlock()
		return false, nil
	}

	var scope *team.Team
	if c.TeamID != "" {
		t, err := m.teams.GetTeam(ctx, c.TeamID)
		if err != nil && !errors.Is(err, team.ErrNotFound) {
			m.mu.Unlock()
			return false, err
		}
		if t == nil {
			m.mu.Unlock()
			return false, nil
		}
		if _, member := t.Members[agentID]; !member {
			m.mu.Unlock()
			return false, nil
		}
		scope = t
	}

	c.Votes[agentID] = &Vote{
		Option:    option,
		Weight:    m.voteWeight(c, scope, agentID),
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}

	if m.allRequiredVoted(c) || m.allTeamVoted(c, scope) {
		m.settle(c)
	}
	settled := c.Status
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.VoteRecorded(string(option))
		if settled.Terminal() {
			m.metrics.ConsensusSettled(string(settled))
		}
	}
	m.logger.Debug("vote recorded",
		zap.String("consensus_id", consensusID),
		zap.String("agent_id", agentID),
		zap.String("option", string(option)),
		zap.String("status", string(settled)))

	content := encodePayload(map[string]any{
		"consensus_id": consensusID,
		"voter_id":     agentID,
		"option":       string(option),
		"reason":       reason,
	})
	metadata := map[string]any{"consensus_id": consensusID}
	creatorID := c.CreatorID
	m.notifyAsync(func(ctx context.Context) {
		m.send(ctx, []string{creatorID}, types.MessageTypeVote, content, types.PriorityNormal, metadata)
	})

	return true, nil
}

// CloseConsensus forces a tally. Only the creator or a team leader may close.
func (m *ConsensusManager) CloseConsensus(ctx context.Context, consensusID, closerID string) (bool, error) {
	return m.terminate(ctx, consensusID, closerID, true)
}

// CancelConsensus aborts the process without tallying. Same authorization as
// CloseConsensus.
func (m *ConsensusManager) CancelConsensus(ctx context.Context, consensusID, cancellerID string) (bool, error) {
	return m.terminate(ctx, consensusID, cancellerID, false)
}

func (m *ConsensusManager) terminate(ctx context.Context, consensusID, actorID string, tally bool) (bool, error) {
	m.mu.Lock()

	c, ok := m.processes[consensusID]
	if !ok {
		m.mu.Unlock()
		return false, nil
	}
	if c.Status != ConsensusOpen {
		m.mu.Unlock()
		return false, nil
	}

	authorized, err := m.canTerminate(ctx, c, actorID)
	if err != nil {
		m.mu.Unlock()
		return false, err
	}
	if !authorized {
		m.mu.Unlock()
		return false, nil
	}

	action := "cancelled"
	if tally {
		action = "closed"
		c.Status = ConsensusClosed
		m.settle(c)
	} else {
		c.Status = ConsensusCancelled
	}
	finalStatus := c.Status

	voters := make([]string, 0, len(c.Votes))
	for id := range c.Votes {
		voters = append(voters, id)
	}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ConsensusSettled(string(finalStatus))
	}
	m.logger.Info("consensus terminated",
		zap.String("consensus_id", consensusID),
		zap.String("action", action),
		zap.String("status", string(finalStatus)))

	content := encodePayload(map[string]any{
		"consensus_id": consensusID,
		"title":        c.Title,
		"status":       string(finalStatus),
	})
	metadata := map[string]any{
		"consensus_id": consensusID,
		"action":       action,
		"status":       string(finalStatus),
	}
	m.notifyAsync(func(ctx context.Context) {
		recipients := m.participantSet(ctx, c.TeamID, c.RequiredParticipants, voters, c.CreatorID)
		m.send(ctx, recipients, types.MessageTypeConsensus, content, types.PriorityHigh, metadata)
	})

	return true, nil
}

// canTerminate checks close/cancel authorization: the creator, or a leader of
// the process's team. Caller holds the write lock; the team lookup is a
// read-only call into a different lock domain.
func (m *ConsensusManager) canTerminate(ctx context.Context, c *Consensus, actorID string) (bool, error) {
	if actorID == c.CreatorID {
		return true, nil
	}
	if c.TeamID == "" {
		return false, nil
	}
	t, err := m.teams.GetTeam(ctx, c.TeamID)
	if err != nil {
		if errors.Is(err, team.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	member, ok := t.Members[actorID]
	return ok && member.HasRole(types.TeamRoleLeader), nil
}

// voteWeight resolves an agent's vote weight. Weighting applies only to
// team-scoped weighted processes; everyone else counts as 1.0.
func (m *ConsensusManager) voteWeight(c *Consensus, scope *team.Team, agentID string) float64 {
	if c.Type != ConsensusWeighted || scope == nil {
		return defaultVoteWeight
	}
	member, ok := scope.Members[agentID]
	if !ok {
		return defaultVoteWeight
	}
	for _, rw := range roleWeights {
		if member.HasRole(rw.role) {
			return rw.weight
		}
	}
	return defaultVoteWeight
}

func (m *ConsensusManager) allRequiredVoted(c *Consensus) bool {
	if len(c.RequiredParticipants) == 0 {
		return false
	}
	for _, p := range c.RequiredParticipants {
		if _, voted := c.Votes[p]; !voted {
			return false
		}
	}
	return true
}

func (m *ConsensusManager) allTeamVoted(c *Consensus, scope *team.Team) bool {
	if scope == nil || len(scope.Members) == 0 {
		return false
	}
	for id := range scope.Members {
		if _, voted := c.Votes[id]; !voted {
			return false
		}
	}
	return true
}

// settle tallies the current votes and applies the resulting terminal status,
// if any threshold was crossed. A vote set of zero is a no-op. Caller holds
// the write lock.
func (m *ConsensusManager) settle(c *Consensus) {
	if len(c.Votes) == 0 {
		return
	}

	start := time.Now()
	status, decided := decide(c.Type, sumVotes(c.Votes))
	if m.metrics != nil {
		m.metrics.TallyObserved(time.Since(start))
	}
	if decided {
		c.Status = status
	}
}

// participantSet builds a deduplicated recipient list from the team roster,
// the required participants, and the voters, excluding one agent.
func (m *ConsensusManager) participantSet(ctx context.Context, teamID string, required, voters []string, exclude string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)

	add := func(id string) {
		if id == "" || id == exclude {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	if teamID != "" {
		if t, err := m.teams.GetTeam(ctx, teamID); err == nil {
			for id := range t.Members {
				add(id)
			}
		}
	}
	for _, id := range required {
		add(id)
	}
	for _, id := range voters {
		add(id)
	}
	return out
}

// send delivers one notification per recipient. Failures are logged and
// dropped: delivery never affects recorded state.
func (m *ConsensusManager) send(ctx context.Context, recipients []string, msgType types.MessageType, content string, priority types.Priority, metadata map[string]any) {
	for _, id := range recipients {
		if err := m.bus.Send(ctx, id, msgType, content, priority, metadata); err != nil {
			m.logger.Warn("notification failed",
				zap.String("receiver", id),
				zap.String("type", string(msgType)),
				zap.Error(err))
		}
	}
}

// notifyAsync runs fn detached from the caller: notification latency or
// failure never blocks the operation that triggered it.
func (m *ConsensusManager) notifyAsync(fn func(ctx context.Context)) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn(context.Background())
	}()
}

func encodePayload(payload map[string]any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		return "{}"
	}
	return string(data)
}
