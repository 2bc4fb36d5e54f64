package registry_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/1Crazymoney/governance-v2/pkg/registry"
	"github.com/1Crazymoney/governance-v2/pkg/snapshot"
	"github.com/1Crazymoney/governance-v2/pkg/strategy"
	"github.com/1Crazymoney/governance-v2/pkg/token"
)

type fixture struct {
	clock     *registry.HeightClock
	registry  *registry.Registry
	validator *strategy.ProposalValidator
}

// newFixture seeds a 1,000,000 voting supply at block 1 with:
//   - alice: 200,000 primary + 50,000 staked voting power, 250,000 proposition
//   - bob:   50,000 primary voting power, no proposition power
//   - carol: nothing
//
// Rules: 10 block window, 5% differential, 20% quorum, precision 10000.
func newFixture(t *testing.T, height strategy.BlockRef) *fixture {
	t.Helper()

	primary := snapshot.NewStore()
	staked := snapshot.NewStore()
	require.NoError(t, primary.RecordSupply(1, uint256.NewInt(1_000_000)))
	require.NoError(t, staked.RecordSupply(1, uint256.NewInt(100_000)))
	require.NoError(t, primary.RecordPower("alice", 1, strategy.PowerVoting, uint256.NewInt(200_000)))
	require.NoError(t, staked.RecordPower("alice", 1, strategy.PowerVoting, uint256.NewInt(50_000)))
	require.NoError(t, primary.RecordPower("alice", 1, strategy.PowerProposition, uint256.NewInt(250_000)))
	require.NoError(t, primary.RecordPower("bob", 1, strategy.PowerVoting, uint256.NewInt(50_000)))

	strat := strategy.NewStrategy(token.NewPrimarySource(primary), token.NewStakedSource(staked))
	rules, err := strategy.NewValidationRules(10, 500, 2000, 10000)
	require.NoError(t, err)

	clock := registry.NewHeightClock(height)
	reg := registry.New(clock, strat, registry.NewMemoryStore(), rules, zap.NewNop())
	return &fixture{
		clock:     clock,
		registry:  reg,
		validator: strategy.NewProposalValidator(strat, reg, rules),
	}
}

func TestCreateProposal(t *testing.T) {
	t.Run("snapshots the block before creation", func(t *testing.T) {
		f := newFixture(t, 11)
		p, err := f.registry.CreateProposal("alice", "raise quorum", "")
		require.NoError(t, err)

		assert.Equal(t, strategy.BlockRef(10), p.SnapshotBlock)
		assert.Equal(t, strategy.BlockRef(11), p.StartBlock)
		assert.Equal(t, strategy.BlockRef(21), p.EndBlock)
		assert.Equal(t, registry.StatusVoting, p.Status)
	})

	t.Run("requires proposition power", func(t *testing.T) {
		f := newFixture(t, 11)
		_, err := f.registry.CreateProposal("bob", "raise quorum", "")
		assert.ErrorIs(t, err, registry.ErrNoPropositionPower)
	})

	t.Run("rejects creation at genesis", func(t *testing.T) {
		f := newFixture(t, 0)
		_, err := f.registry.CreateProposal("alice", "raise quorum", "")
		assert.ErrorIs(t, err, registry.ErrChainAtGenesis)
	})
}

func TestSubmitVote(t *testing.T) {
	f := newFixture(t, 11)
	p, err := f.registry.CreateProposal("alice", "raise quorum", "")
	require.NoError(t, err)

	t.Run("tallies votes at snapshot power", func(t *testing.T) {
		require.NoError(t, f.registry.SubmitVote("alice", p.ID, true))
		require.NoError(t, f.registry.SubmitVote("bob", p.ID, false))

		got, err := f.registry.GetProposal(p.ID)
		require.NoError(t, err)
		assert.Equal(t, uint256.NewInt(250_000), got.ForVotes)
		assert.Equal(t, uint256.NewInt(50_000), got.AgainstVotes)
	})

	t.Run("one vote per account", func(t *testing.T) {
		err := f.registry.SubmitVote("alice", p.ID, true)
		assert.ErrorIs(t, err, registry.ErrAlreadyVoted)
	})

	t.Run("requires voting power", func(t *testing.T) {
		err := f.registry.SubmitVote("carol", p.ID, true)
		assert.ErrorIs(t, err, registry.ErrNoVotingPower)
	})

	t.Run("unknown proposal", func(t *testing.T) {
		err := f.registry.SubmitVote("alice", "nope", true)
		assert.ErrorIs(t, err, registry.ErrProposalNotFound)
	})

	t.Run("rejected after the window closes", func(t *testing.T) {
		f.clock.Set(22)
		err := f.registry.SubmitVote("carol", p.ID, true)
		assert.ErrorIs(t, err, registry.ErrVotingClosed)
	})
}

func TestFinalizeProposal(t *testing.T) {
	t.Run("passes with quorum and differential", func(t *testing.T) {
		f := newFixture(t, 11)
		p, err := f.registry.CreateProposal("alice", "raise quorum", "")
		require.NoError(t, err)
		require.NoError(t, f.registry.SubmitVote("alice", p.ID, true))
		require.NoError(t, f.registry.SubmitVote("bob", p.ID, false))

		_, err = f.registry.FinalizeProposal(p.ID, f.validator)
		assert.ErrorIs(t, err, registry.ErrVotingStillOpen)

		f.clock.Set(22)
		status, err := f.registry.FinalizeProposal(p.ID, f.validator)
		require.NoError(t, err)
		assert.Equal(t, registry.StatusPassed, status)

		// settled proposals stay settled
		status, err = f.registry.FinalizeProposal(p.ID, f.validator)
		require.NoError(t, err)
		assert.Equal(t, registry.StatusPassed, status)
	})

	t.Run("fails without quorum", func(t *testing.T) {
		f := newFixture(t, 11)
		p, err := f.registry.CreateProposal("alice", "raise quorum", "")
		require.NoError(t, err)
		// bob's 50,000 is well under the 200,000 quorum
		require.NoError(t, f.registry.SubmitVote("bob", p.ID, true))

		f.clock.Set(22)
		status, err := f.registry.FinalizeProposal(p.ID, f.validator)
		require.NoError(t, err)
		assert.Equal(t, registry.StatusFailed, status)
	})
}

func TestProposalTally(t *testing.T) {
	f := newFixture(t, 11)
	p, err := f.registry.CreateProposal("alice", "raise quorum", "")
	require.NoError(t, err)
	require.NoError(t, f.registry.SubmitVote("alice", p.ID, true))

	tally, err := f.registry.ProposalTally(p.ID)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(250_000), tally.ForVotes)
	assert.Equal(t, strategy.BlockRef(10), tally.SnapshotBlock)

	// mutating the returned tally must not leak into the store
	tally.ForVotes.SetUint64(1)
	again, err := f.registry.ProposalTally(p.ID)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(250_000), again.ForVotes)
}

func TestHeightClock(t *testing.T) {
	clock := registry.NewHeightClock(5)
	assert.Equal(t, strategy.BlockRef(5), clock.CurrentBlock())
	assert.Equal(t, strategy.BlockRef(8), clock.Advance(3))
	clock.Set(100)
	assert.Equal(t, strategy.BlockRef(100), clock.CurrentBlock())
}
