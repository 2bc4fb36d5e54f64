package strategy

import (
	"github.com/holiman/uint256"
)

// PowerOracle provides read-only access to block-indexed balance and
// delegation snapshots for a single token. Implementations must return
// ErrSnapshotUnavailable (possibly wrapped) when no snapshot covers the
// requested block.
type PowerOracle interface {
	// TotalSupplyAt returns the token's total supply at the given block.
	TotalSupplyAt(block BlockRef) (*uint256.Int, error)

	// PowerAtBlock returns the governance power of an account at the given
	// block for the given delegation channel: direct holdings, plus power
	// delegated to the account, minus power it has delegated away.
	PowerAtBlock(account Account, block BlockRef, kind PowerType) (*uint256.Int, error)
}

// TokenPowerSource is one governance token's contribution to aggregated
// power. Each source's delegation bookkeeping is self-contained and
// non-overlapping with the other sources, so aggregation is plain addition.
type TokenPowerSource interface {
	// PowerAt returns the account's power from this source at the block.
	PowerAt(account Account, block BlockRef, kind PowerType) (*uint256.Int, error)

	// SupplyAt returns this source's total supply at the block.
	SupplyAt(block BlockRef) (*uint256.Int, error)
}

// ProposalTally is the read-only view of a proposal the validator needs:
// the vote counts and the block at which supply and power are evaluated.
type ProposalTally struct {
	ForVotes      *uint256.Int
	AgainstVotes  *uint256.Int
	SnapshotBlock BlockRef
}

// ProposalReader exposes proposal tallies from the governance registry.
type ProposalReader interface {
	ProposalTally(id string) (*ProposalTally, error)
}
