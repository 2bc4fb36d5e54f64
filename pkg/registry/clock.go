package registry

import (
	"sync/atomic"

	"github.com/1Crazymoney/governance-v2/pkg/strategy"
)

// HeightClock is a ChainReader backed by a manually advanced height. It
// stands in for a chain client in the daemon and in tests.
type HeightClock struct {
	height atomic.Uint64
}

// NewHeightClock creates a clock at the given height.
func NewHeightClock(height strategy.BlockRef) *HeightClock {
	c := &HeightClock{}
	c.height.Store(uint64(height))
	return c
}

// CurrentBlock implements ChainReader.
func (c *HeightClock) CurrentBlock() strategy.BlockRef {
	return strategy.BlockRef(c.height.Load())
}

// Advance moves the clock forward by n blocks and returns the new height.
func (c *HeightClock) Advance(n uint64) strategy.BlockRef {
	return strategy.BlockRef(c.height.Add(n))
}

// Set moves the clock to an absolute height.
func (c *HeightClock) Set(height strategy.BlockRef) {
	c.height.Store(uint64(height))
}
