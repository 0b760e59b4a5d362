package types

// TeamRole identifies an agent's role within a team.
//
// Only LEADER and COORDINATOR carry special semantics in the coordination
// core (vote weighting, close/cancel authorization); other roles are
// descriptive.
type TeamRole string

const (
	TeamRoleLeader      TeamRole = "leader"
	TeamRoleCoordinator TeamRole = "coordinator"
	TeamRoleMember      TeamRole = "member"
	TeamRoleObserver    TeamRole = "observer"
)
