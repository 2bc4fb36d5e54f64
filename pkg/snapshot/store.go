// Package snapshot provides an in-memory, append-only store of
// block-indexed power and supply checkpoints. It implements
// strategy.PowerOracle for a single token.
package snapshot

import (
	"fmt"
	"sort"
	"sync"

	"github.com/holiman/uint256"

	"github.com/1Crazymoney/governance-v2/pkg/strategy"
)

// checkpoint records a figure that took effect at a block and holds until
// the next checkpoint.
type checkpoint struct {
	block strategy.BlockRef
	value *uint256.Int
}

// series is a checkpoint log sorted by block, ascending. Appends are
// monotone so the sort order is maintained by construction.
type series []checkpoint

// at returns the value of the last checkpoint at or before block.
func (s series) at(block strategy.BlockRef) (*uint256.Int, bool) {
	i := sort.Search(len(s), func(i int) bool {
		return s[i].block > block
	})
	if i == 0 {
		return nil, false
	}
	return s[i-1].value, true
}

// append adds a checkpoint, rejecting out-of-order blocks. A write at the
// latest recorded block replaces its value.
func (s series) append(block strategy.BlockRef, value *uint256.Int) (series, error) {
	if n := len(s); n > 0 {
		last := s[n-1].block
		if block < last {
			return s, fmt.Errorf("checkpoint at block %d is older than latest block %d", block, last)
		}
		if block == last {
			s[n-1].value = value
			return s, nil
		}
	}
	return append(s, checkpoint{block: block, value: value}), nil
}

// Store holds the snapshot history of one token: a supply series plus one
// power series per (channel, account). Safe for concurrent use; reads never
// alias stored values.
type Store struct {
	mu     sync.RWMutex
	power  map[strategy.PowerType]map[strategy.Account]series
	supply series
}

// NewStore creates an empty snapshot store.
func NewStore() *Store {
	return &Store{
		power: map[strategy.PowerType]map[strategy.Account]series{
			strategy.PowerProposition: make(map[strategy.Account]series),
			strategy.PowerVoting:      make(map[strategy.Account]series),
		},
	}
}

// RecordPower appends a power checkpoint for an account and channel. The
// value is the account's net power at the block: direct holdings plus
// inbound delegation minus outbound delegation, as computed by the token's
// delegation bookkeeping.
func (s *Store) RecordPower(account strategy.Account, block strategy.BlockRef, kind strategy.PowerType, value *uint256.Int) error {
	byAccount, ok := s.power[kind]
	if !ok {
		return fmt.Errorf("unknown power type %s", kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := byAccount[account].append(block, new(uint256.Int).Set(value))
	if err != nil {
		return fmt.Errorf("power of %s: %w", account, err)
	}
	byAccount[account] = updated
	return nil
}

// RecordSupply appends a total-supply checkpoint.
func (s *Store) RecordSupply(block strategy.BlockRef, value *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := s.supply.append(block, new(uint256.Int).Set(value))
	if err != nil {
		return fmt.Errorf("supply: %w", err)
	}
	s.supply = updated
	return nil
}

// TotalSupplyAt implements strategy.PowerOracle. It fails with
// ErrSnapshotUnavailable when the block predates the first supply
// checkpoint.
func (s *Store) TotalSupplyAt(block strategy.BlockRef) (*uint256.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.supply.at(block)
	if !ok {
		return nil, fmt.Errorf("supply at block %d: %w", block, strategy.ErrSnapshotUnavailable)
	}
	return new(uint256.Int).Set(value), nil
}

// PowerAtBlock implements strategy.PowerOracle. The supply log defines the
// store's coverage: at a covered block, an account with no checkpoint holds
// no power and reads as zero. A block before the first supply checkpoint is
// outside coverage and the read fails with ErrSnapshotUnavailable.
func (s *Store) PowerAtBlock(account strategy.Account, block strategy.BlockRef, kind strategy.PowerType) (*uint256.Int, error) {
	byAccount, ok := s.power[kind]
	if !ok {
		return nil, fmt.Errorf("unknown power type %s", kind)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if value, found := byAccount[account].at(block); found {
		return new(uint256.Int).Set(value), nil
	}
	if _, covered := s.supply.at(block); !covered {
		return nil, fmt.Errorf("%s power of %s at block %d: %w", kind, account, block, strategy.ErrSnapshotUnavailable)
	}
	return uint256.NewInt(0), nil
}
