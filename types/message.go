package types

// MessageType classifies messages exchanged between agents.
type MessageType string

const (
	MessageTypeText           MessageType = "text"
	MessageTypeConsensus      MessageType = "consensus"
	MessageTypeVote           MessageType = "vote"
	MessageTypeTaskAssignment MessageType = "task_assignment"
	MessageTypeTaskStatus     MessageType = "task_status"
	MessageTypeKnowledge      MessageType = "knowledge"
	MessageTypeSystem         MessageType = "system"
)

// Priority orders message delivery and task scheduling.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)
