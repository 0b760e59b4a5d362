// Package coordination implements multi-agent decision making: consensus
// voting and shared task tracking.
//
// ConsensusManager runs voting processes (majority, super-majority,
// unanimous, weighted) among agents, optionally scoped to a team.
// TaskManager tracks hierarchical tasks with independent per-agent
// assignments.
//
// Both managers keep their entire state in one in-process map guarded by a
// read/write mutex; every mutation validates and applies as a single critical
// section, so concurrent callers cannot lose updates. Notifications go out
// through the bus after the lock is released and never affect the recorded
// state: a true return from Vote is a guarantee about the vote, not about
// delivery.
//
// Expected business failures (unknown ID, wrong state, unauthorized caller)
// surface as a false return without an error; only unexpected collaborator
// failures propagate as errors.
package coordination
