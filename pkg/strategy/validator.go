package strategy

import (
	"fmt"

	"github.com/holiman/uint256"
)

// ProposalValidator decides proposal outcomes from aggregated supply and
// vote tallies. Thresholds are fixed at construction. Timing of the voting
// window is enforced upstream by the registry; the validator composes the
// quorum and differential checks only.
type ProposalValidator struct {
	strategy  *Strategy
	proposals ProposalReader
	rules     *ValidationRules
}

// NewProposalValidator creates a validator over the given strategy,
// proposal registry and rule constants.
func NewProposalValidator(strategy *Strategy, proposals ProposalReader, rules *ValidationRules) *ProposalValidator {
	return &ProposalValidator{
		strategy:  strategy,
		proposals: proposals,
		rules:     rules,
	}
}

// Rules returns the validation rule constants.
func (v *ProposalValidator) Rules() *ValidationRules {
	return v.rules
}

// IsProposalPassed reports whether the proposal met both the quorum and the
// vote differential requirements.
func (v *ProposalValidator) IsProposalPassed(id string) (bool, error) {
	tally, supply, err := v.fetch(id)
	if err != nil {
		return false, err
	}

	quorum, err := v.quorumValid(tally, supply)
	if err != nil {
		return false, err
	}
	if !quorum {
		return false, nil
	}
	return v.differentialValid(tally, supply)
}

// IsQuorumValid reports whether the "for" votes reach the minimum voting
// power required at the proposal's snapshot block.
func (v *ProposalValidator) IsQuorumValid(id string) (bool, error) {
	tally, supply, err := v.fetch(id)
	if err != nil {
		return false, err
	}
	return v.quorumValid(tally, supply)
}

// IsVoteDifferentialValid reports whether the for-minus-against margin, as
// a fraction of voting supply, reaches the required differential.
func (v *ProposalValidator) IsVoteDifferentialValid(id string) (bool, error) {
	tally, supply, err := v.fetch(id)
	if err != nil {
		return false, err
	}
	return v.differentialValid(tally, supply)
}

// MinimumVotingPowerNeeded returns votingSupply * MinimumQuorum /
// OneHundredWithPrecision, floor division.
func (v *ProposalValidator) MinimumVotingPowerNeeded(votingSupply *uint256.Int) (*uint256.Int, error) {
	scaled, overflow := new(uint256.Int).MulOverflow(votingSupply, v.rules.minimumQuorum)
	if overflow {
		return nil, fmt.Errorf("scaling voting supply by quorum: %w", ErrArithmeticOverflow)
	}
	return scaled.Div(scaled, v.rules.precision), nil
}

func (v *ProposalValidator) fetch(id string) (*ProposalTally, *uint256.Int, error) {
	tally, err := v.proposals.ProposalTally(id)
	if err != nil {
		return nil, nil, fmt.Errorf("proposal %s: %w", id, err)
	}
	supply, err := v.strategy.GetTotalVotingSupplyAt(tally.SnapshotBlock)
	if err != nil {
		return nil, nil, fmt.Errorf("voting supply at block %d: %w", tally.SnapshotBlock, err)
	}
	return tally, supply, nil
}

// quorumValid checks forVotes >= supply * MinimumQuorum / precision.
// A zero supply fails closed: an empty-supply proposal cannot pass.
func (v *ProposalValidator) quorumValid(tally *ProposalTally, supply *uint256.Int) (bool, error) {
	if supply.IsZero() {
		return false, nil
	}
	needed, err := v.MinimumVotingPowerNeeded(supply)
	if err != nil {
		return false, err
	}
	return tally.ForVotes.Cmp(needed) >= 0, nil
}

// differentialValid checks (forVotes - againstVotes) * precision / supply
// >= VoteDifferential. Zero supply and a non-positive margin both fail
// closed rather than erroring.
func (v *ProposalValidator) differentialValid(tally *ProposalTally, supply *uint256.Int) (bool, error) {
	if supply.IsZero() {
		return false, nil
	}
	if tally.ForVotes.Cmp(tally.AgainstVotes) < 0 {
		return false, nil
	}

	margin := new(uint256.Int).Sub(tally.ForVotes, tally.AgainstVotes)
	scaled, overflow := margin.MulOverflow(margin, v.rules.precision)
	if overflow {
		return false, fmt.Errorf("scaling vote margin: %w", ErrArithmeticOverflow)
	}
	scaled.Div(scaled, supply)
	return scaled.Cmp(v.rules.voteDifferential) >= 0, nil
}
