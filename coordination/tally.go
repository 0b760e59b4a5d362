package coordination

// voteTotals holds summed vote weights for one tally pass.
type voteTotals struct {
	yes     float64
	no      float64
	abstain float64
}

func (t voteTotals) nonAbstain() float64 { return t.yes + t.no }
func (t voteTotals) total() float64      { return t.yes + t.no + t.abstain }

// sumVotes computes weighted totals over the current vote set.
func sumVotes(votes map[string]*Vote) voteTotals {
	var t voteTotals
	for _, v := range votes {
		switch v.Option {
		case VoteYes:
			t.yes += v.Weight
		case VoteNo:
			t.no += v.Weight
		case VoteAbstain:
			t.abstain += v.Weight
		}
	}
	return t
}

// decide applies the tally rule for the given consensus type and returns the
// resulting terminal status. The second return is false when no threshold was
// crossed and the status must stay as it is.
//
// Each rule's arithmetic is deliberately spelled out per type: the operators
// and denominators differ (strict > for approval vs >= for rejection, and
// WEIGHTED counts abstain weight in its denominator while MAJORITY does not).
// A dead-even split rejects rather than approves.
func decide(consensusType ConsensusType, t voteTotals) (ConsensusStatus, bool) {
	switch consensusType {
	case ConsensusMajority:
		nonAbstain := t.nonAbstain()
		if nonAbstain > 0 && t.yes > nonAbstain/2 {
			return ConsensusApproved, true
		}
		if nonAbstain > 0 && t.no >= nonAbstain/2 {
			return ConsensusRejected, true
		}
		return "", false

	case ConsensusSuperMajority:
		nonAbstain := t.nonAbstain()
		if t.yes > nonAbstain*2/3 {
			return ConsensusApproved, true
		}
		if t.no >= nonAbstain/3 {
			return ConsensusRejected, true
		}
		return "", false

	case ConsensusUnanimous:
		if t.no == 0 && t.yes > 0 {
			return ConsensusApproved, true
		}
		if t.no > 0 {
			return ConsensusRejected, true
		}
		return "", false

	case ConsensusWeighted:
		total := t.total()
		if t.yes > total/2 {
			return ConsensusApproved, true
		}
		if t.no >= total/2 {
			return ConsensusRejected, true
		}
		return "", false

	default:
		return "", false
	}
}
