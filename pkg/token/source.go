// Package token adapts per-token snapshot oracles into the power sources
// the strategy aggregates over.
package token

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/1Crazymoney/governance-v2/pkg/strategy"
)

// Source exposes one token's snapshot oracle as a strategy.TokenPowerSource,
// tagging failures with the token name.
type Source struct {
	name   string
	oracle strategy.PowerOracle
}

// NewPrimarySource wraps the primary governance token's oracle.
func NewPrimarySource(oracle strategy.PowerOracle) *Source {
	return &Source{name: "primary", oracle: oracle}
}

// NewStakedSource wraps the staked-derivative token's oracle. The
// derivative's supply is backed 1:1 by primary tokens locked in staking;
// the strategy relies on that when computing eligible supply.
func NewStakedSource(oracle strategy.PowerOracle) *Source {
	return &Source{name: "staked", oracle: oracle}
}

// Name returns the token name used in error messages.
func (s *Source) Name() string {
	return s.name
}

// PowerAt implements strategy.TokenPowerSource.
func (s *Source) PowerAt(account strategy.Account, block strategy.BlockRef, kind strategy.PowerType) (*uint256.Int, error) {
	power, err := s.oracle.PowerAtBlock(account, block, kind)
	if err != nil {
		return nil, fmt.Errorf("%s token: %w", s.name, err)
	}
	return power, nil
}

// SupplyAt implements strategy.TokenPowerSource.
func (s *Source) SupplyAt(block strategy.BlockRef) (*uint256.Int, error) {
	supply, err := s.oracle.TotalSupplyAt(block)
	if err != nil {
		return nil, fmt.Errorf("%s token: %w", s.name, err)
	}
	return supply, nil
}
