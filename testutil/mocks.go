package testutil

import (
	"context"
	"sync"

	"github.com/daneel-ai/daneel/agent"
	"github.com/daneel-ai/daneel/team"
	"github.com/daneel-ai/daneel/types"
)

// SentMessage is one call captured by RecordingBus.
type SentMessage struct {
	ReceiverID string
	Type       types.MessageType
	Content    string
	Priority   types.Priority
	Metadata   map[string]any
}

// RecordingBus captures every Send for later assertion. Safe for concurrent
// use. The zero value is ready.
type RecordingBus struct {
	mu   sync.Mutex
	sent []SentMessage
	err  error
}

// FailWith makes every subsequent Send return err. Sends are still recorded.
func (b *RecordingBus) FailWith(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

func (b *RecordingBus) Send(ctx context.Context, receiverID string, msgType types.MessageType, content string, priority types.Priority, metadata map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, SentMessage{
		ReceiverID: receiverID,
		Type:       msgType,
		Content:    content,
		Priority:   priority,
		Metadata:   metadata,
	})
	return b.err
}

// Sent returns a snapshot of all captured messages.
func (b *RecordingBus) Sent() []SentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]SentMessage, len(b.sent))
	copy(out, b.sent)
	return out
}

// SentTo returns the captured messages addressed to receiverID.
func (b *RecordingBus) SentTo(receiverID string) []SentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]SentMessage, 0)
	for _, m := range b.sent {
		if m.ReceiverID == receiverID {
			out = append(out, m)
		}
	}
	return out
}

// Receivers returns the distinct receiver IDs seen so far.
func (b *RecordingBus) Receivers() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, m := range b.sent {
		if _, dup := seen[m.ReceiverID]; dup {
			continue
		}
		seen[m.ReceiverID] = struct{}{}
		out = append(out, m.ReceiverID)
	}
	return out
}

// FailingAgentStore returns err from every lookup.
type FailingAgentStore struct {
	Err error
}

func (s *FailingAgentStore) GetAgent(ctx context.Context, agentID string) (*agent.Agent, error) {
	return nil, s.Err
}

// FailingTeamManager returns err from every lookup.
type FailingTeamManager struct {
	Err error
}

func (s *FailingTeamManager) GetTeam(ctx context.Context, teamID string) (*team.Team, error) {
	return nil, s.Err
}
