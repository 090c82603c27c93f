// Package rng provides a small seeded pseudo-random stream whose output is
// fixed by its algorithm (SplitMix64) rather than by the Go release, so that
// generated worlds stay identical across toolchains and platforms.
package rng

import "multiverse.game/internal/sim/worldgen/mathx"

type Stream struct {
	state uint64
}

func New(seed uint64) *Stream {
	return &Stream{state: seed}
}

func (s *Stream) Uint64() uint64 {
	z := s.state
	s.state += mathx.Golden64
	return mathx.Mix64(z)
}

// Float64 returns a uniform value in [0, 1).
func (s *Stream) Float64() float64 {
	return float64(s.Uint64()>>11) * 0x1p-53
}

// IntRange returns a uniform int in [lo, hi] (inclusive). hi < lo returns lo.
func (s *Stream) IntRange(lo, hi int) int {
	if hi <= lo {
		// Still consume a draw so callers keep a fixed draw order.
		_ = s.Uint64()
		return lo
	}
	n := uint64(hi-lo) + 1
	return lo + int(s.Uint64()%n)
}

// Symmetric returns a uniform value in [-span, span).
func (s *Stream) Symmetric(span float64) float64 {
	u := s.Float64()
	// Conversion blocks FMA fusion.
	return float64(u*2*span) - span
}
