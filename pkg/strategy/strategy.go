package strategy

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Strategy aggregates governance power and eligible supply across the
// primary governance token and its staked derivative. It is stateless
// beyond the two source handles and safe for concurrent use.
type Strategy struct {
	primary TokenPowerSource
	staked  TokenPowerSource
}

// NewStrategy creates a strategy over the two token sources.
func NewStrategy(primary, staked TokenPowerSource) *Strategy {
	return &Strategy{
		primary: primary,
		staked:  staked,
	}
}

// GetPowerAt returns the account's aggregated power at the block for the
// given channel: the sum of the primary and staked-derivative figures.
// Each source's bookkeeping already nets out delegation, so addition
// cannot double-count.
func (s *Strategy) GetPowerAt(account Account, block BlockRef, kind PowerType) (*uint256.Int, error) {
	primary, err := s.primary.PowerAt(account, block, kind)
	if err != nil {
		return nil, fmt.Errorf("primary source: %w", err)
	}

	staked, err := s.staked.PowerAt(account, block, kind)
	if err != nil {
		return nil, fmt.Errorf("staked source: %w", err)
	}

	total, overflow := new(uint256.Int).AddOverflow(primary, staked)
	if overflow {
		return nil, fmt.Errorf("summing %s power at block %d: %w", kind, block, ErrArithmeticOverflow)
	}
	return total, nil
}

// GetPropositionPowerAt returns the account's proposition power at the block.
func (s *Strategy) GetPropositionPowerAt(account Account, block BlockRef) (*uint256.Int, error) {
	return s.GetPowerAt(account, block, PowerProposition)
}

// GetVotingPowerAt returns the account's voting power at the block.
func (s *Strategy) GetVotingPowerAt(account Account, block BlockRef) (*uint256.Int, error) {
	return s.GetPowerAt(account, block, PowerVoting)
}

// GetTotalSupplyAt returns the total supply eligible for governance at the
// block. The staked derivative is backed 1:1 by primary tokens locked in
// staking, so staked supply cancels exactly against the locked amount and
// the eligible supply is the primary token's total supply alone. Summing
// both supplies would double-count the locked tokens.
func (s *Strategy) GetTotalSupplyAt(block BlockRef) (*uint256.Int, error) {
	supply, err := s.primary.SupplyAt(block)
	if err != nil {
		return nil, fmt.Errorf("primary supply: %w", err)
	}
	return supply, nil
}

// GetTotalPropositionSupplyAt returns the supply counted against the
// proposition thresholds at the block.
func (s *Strategy) GetTotalPropositionSupplyAt(block BlockRef) (*uint256.Int, error) {
	return s.GetTotalSupplyAt(block)
}

// GetTotalVotingSupplyAt returns the supply counted against the voting
// thresholds at the block. Supply policy does not differ between channels;
// only per-account power does.
func (s *Strategy) GetTotalVotingSupplyAt(block BlockRef) (*uint256.Int, error) {
	return s.GetTotalSupplyAt(block)
}
