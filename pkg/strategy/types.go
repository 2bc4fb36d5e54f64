package strategy

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Account is an opaque address. The strategy holds no mutable state for it.
type Account string

// BlockRef identifies a historical point; all queries are read-only
// snapshots at a BlockRef.
type BlockRef uint64

// PowerType selects which delegation channel to query.
type PowerType uint8

const (
	PowerProposition PowerType = iota
	PowerVoting
)

// String returns a human-readable name for the power type
func (t PowerType) String() string {
	switch t {
	case PowerProposition:
		return "proposition"
	case PowerVoting:
		return "voting"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ValidationRules holds the threshold constants for proposal validation.
// All fields are fixed at construction and never mutated; accessors return
// copies so callers cannot alter them.
type ValidationRules struct {
	votingDuration   uint64
	voteDifferential *uint256.Int
	minimumQuorum    *uint256.Int
	precision        *uint256.Int
}

// NewValidationRules creates the rule set. votingDuration is a block count,
// voteDifferential and minimumQuorum are expressed in basis points of
// precision (ONE_HUNDRED_WITH_PRECISION, e.g. 10000 for two decimals).
func NewValidationRules(votingDuration, voteDifferential, minimumQuorum, precision uint64) (*ValidationRules, error) {
	if precision == 0 {
		return nil, fmt.Errorf("precision must be positive")
	}
	if voteDifferential > precision {
		return nil, fmt.Errorf("vote differential %d exceeds precision %d", voteDifferential, precision)
	}
	if minimumQuorum > precision {
		return nil, fmt.Errorf("minimum quorum %d exceeds precision %d", minimumQuorum, precision)
	}
	return &ValidationRules{
		votingDuration:   votingDuration,
		voteDifferential: uint256.NewInt(voteDifferential),
		minimumQuorum:    uint256.NewInt(minimumQuorum),
		precision:        uint256.NewInt(precision),
	}, nil
}

// DefaultRules returns the default validation rules: a ~1 day voting window
// at 12s blocks, 0.5% vote differential and 20% minimum quorum at 10000
// precision.
func DefaultRules() *ValidationRules {
	rules, err := NewValidationRules(7200, 50, 2000, 10000)
	if err != nil {
		panic(err) // static arguments, cannot fail
	}
	return rules
}

// VotingDuration returns the length of the voting window in blocks.
func (r *ValidationRules) VotingDuration() uint64 {
	return r.votingDuration
}

// VoteDifferential returns the required for-minus-against margin in basis
// points of OneHundredWithPrecision.
func (r *ValidationRules) VoteDifferential() *uint256.Int {
	return new(uint256.Int).Set(r.voteDifferential)
}

// MinimumQuorum returns the minimum quorum in basis points of
// OneHundredWithPrecision.
func (r *ValidationRules) MinimumQuorum() *uint256.Int {
	return new(uint256.Int).Set(r.minimumQuorum)
}

// OneHundredWithPrecision returns the scaling denominator representing 100%.
func (r *ValidationRules) OneHundredWithPrecision() *uint256.Int {
	return new(uint256.Int).Set(r.precision)
}
