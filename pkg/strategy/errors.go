package strategy

import "errors"

var (
	// ErrSnapshotUnavailable indicates the oracle has no recorded snapshot
	// at the requested block. It is always propagated to the caller; power
	// and supply reads never default to zero.
	ErrSnapshotUnavailable = errors.New("snapshot unavailable at requested block")

	// ErrArithmeticOverflow indicates a power figure computation exceeded
	// the 256-bit unsigned range.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
)
