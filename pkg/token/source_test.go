package token_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1Crazymoney/governance-v2/pkg/snapshot"
	"github.com/1Crazymoney/governance-v2/pkg/strategy"
	"github.com/1Crazymoney/governance-v2/pkg/token"
)

func TestSource(t *testing.T) {
	store := snapshot.NewStore()
	require.NoError(t, store.RecordSupply(5, uint256.NewInt(1000)))
	require.NoError(t, store.RecordPower("alice", 5, strategy.PowerVoting, uint256.NewInt(70)))

	primary := token.NewPrimarySource(store)
	staked := token.NewStakedSource(store)

	t.Run("names", func(t *testing.T) {
		assert.Equal(t, "primary", primary.Name())
		assert.Equal(t, "staked", staked.Name())
	})

	t.Run("power passthrough", func(t *testing.T) {
		power, err := primary.PowerAt("alice", 5, strategy.PowerVoting)
		require.NoError(t, err)
		assert.Equal(t, uint256.NewInt(70), power)
	})

	t.Run("supply passthrough", func(t *testing.T) {
		supply, err := staked.SupplyAt(5)
		require.NoError(t, err)
		assert.Equal(t, uint256.NewInt(1000), supply)
	})

	t.Run("errors carry the token name", func(t *testing.T) {
		_, err := staked.SupplyAt(1)
		require.ErrorIs(t, err, strategy.ErrSnapshotUnavailable)
		assert.Contains(t, err.Error(), "staked token")
	})
}
