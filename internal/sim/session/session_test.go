package session

import (
	"errors"
	"testing"

	"multiverse.game/internal/sim/worldgen/placement"
)

func TestUnlockAndLevelWon(t *testing.T) {
	s := New(42)
	if err := s.LevelWon(3); err != nil {
		t.Fatalf("LevelWon(3): %v", err)
	}
	if !s.IsUnlocked(placement.Universe3) {
		t.Fatalf("level 3 should unlock UNIVERSE_3")
	}
	if s.IsUnlocked(placement.Universe1) {
		t.Fatalf("UNIVERSE_1 should still be locked")
	}
	if err := s.LevelWon(0); !errors.Is(err, ErrUnknownLevel) {
		t.Fatalf("LevelWon(0) err=%v want ErrUnknownLevel", err)
	}
	if err := s.LevelWon(4); !errors.Is(err, ErrUnknownLevel) {
		t.Fatalf("LevelWon(4) err=%v want ErrUnknownLevel", err)
	}
	if err := s.Unlock(placement.Home); !errors.Is(err, ErrNotCollectible) {
		t.Fatalf("Unlock(HOME) err=%v want ErrNotCollectible", err)
	}
	// Unlocking twice is harmless.
	if err := s.Unlock(placement.Universe3); err != nil {
		t.Fatalf("second unlock: %v", err)
	}
	if got := s.Unlocked().Slice(); len(got) != 1 {
		t.Fatalf("unlocked = %v", got)
	}
}

func TestEnsureHomeOncePerSession(t *testing.T) {
	s := New(7)
	if _, ok := s.Home(); ok {
		t.Fatalf("fresh session should have no home")
	}
	p := placement.DefaultParams()
	h1 := s.EnsureHome(p)
	p.HomeDistance = 50
	h2 := s.EnsureHome(p)
	if h1 != h2 {
		t.Fatalf("home regenerated within the session: %+v vs %+v", h1, h2)
	}
	if h1.Category != placement.Home {
		t.Fatalf("home category %s", h1.Category)
	}

	s.Reset(8)
	if _, ok := s.Home(); ok {
		t.Fatalf("reset should clear the home")
	}
	if s.Unlocked() != 0 || s.Seed() != 8 {
		t.Fatalf("reset left state behind: seed=%d unlocked=%v", s.Seed(), s.Unlocked())
	}
	if h3 := s.EnsureHome(p); h3 == h1 {
		t.Fatalf("new session should get a new home")
	}
}
