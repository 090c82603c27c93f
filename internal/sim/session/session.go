// Package session holds the per-session generation state: the global seed,
// which universes have been collected, and the home placement.
//
// A State is owned by the world loop goroutine and is not safe for
// concurrent use.
package session

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"multiverse.game/internal/sim/worldgen/placement"
)

var (
	ErrNotCollectible = errors.New("category is not collectible")
	ErrUnknownLevel   = errors.New("unknown level")
)

// Levels are numbered from 1; level n unlocks category n-1.
const LevelCount = 3

type State struct {
	seed     int32
	unlocked placement.CategorySet
	home     *placement.Record
}

func New(seed int32) *State {
	return &State{seed: seed}
}

// NewRandom starts a session with a freshly drawn seed.
func NewRandom() *State {
	return New(rand.Int32())
}

func (s *State) Seed() int32 { return s.seed }

// Reset starts a new session: flags and home are cleared.
func (s *State) Reset(seed int32) {
	s.seed = seed
	s.unlocked = 0
	s.home = nil
}

func (s *State) Unlocked() placement.CategorySet { return s.unlocked }

func (s *State) IsUnlocked(c placement.Category) bool { return s.unlocked.Has(c) }

// Unlock marks a universe as collected. Chunks generated afterwards spawn it
// as a neutral planet.
func (s *State) Unlock(c placement.Category) error {
	if !c.Collectible() {
		return fmt.Errorf("unlock %s: %w", c, ErrNotCollectible)
	}
	s.unlocked = s.unlocked.With(c)
	return nil
}

// LevelWon is the level-completion hook.
func (s *State) LevelWon(level int) error {
	if level < 1 || level > LevelCount {
		return fmt.Errorf("level %d: %w", level, ErrUnknownLevel)
	}
	return s.Unlock(placement.Category(level - 1))
}

// SetUnlocked replaces the flag set (snapshot import).
func (s *State) SetUnlocked(set placement.CategorySet) { s.unlocked = set }

// EnsureHome generates the home placement on first call and returns the
// stored record afterwards.
func (s *State) EnsureHome(p placement.Params) placement.Record {
	if s.home == nil {
		h := placement.HomeRecord(s.seed, p)
		s.home = &h
	}
	return *s.home
}

func (s *State) Home() (placement.Record, bool) {
	if s.home == nil {
		return placement.Record{}, false
	}
	return *s.home, true
}

// SetHome restores a previously generated home (snapshot import).
func (s *State) SetHome(r placement.Record) {
	r.Category = placement.Home
	s.home = &r
}
