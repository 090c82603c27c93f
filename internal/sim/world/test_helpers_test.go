package world

import (
	"testing"

	"multiverse.game/internal/sim/chunkgen"
	"multiverse.game/internal/sim/session"
	"multiverse.game/internal/sim/worldgen/placement"
)

func testWorldConfig() WorldConfig {
	fg := chunkgen.DefaultConfig(placement.Foreground)
	fg.ViewDistanceInChunks = 1
	fg.MaxPlanetsPerChunk = 6
	bg := chunkgen.DefaultConfig(placement.Background)
	bg.ViewDistanceInChunks = 1
	bg.NoForegroundRadius = 0
	return WorldConfig{
		ID:             "test",
		TickRateHz:     1000,
		ObserverRadius: 1,
		Foreground:     fg,
		Background:     bg,
	}
}

func newTestWorld(t *testing.T, seed int32) *World {
	t.Helper()
	w, err := New(testWorldConfig(), session.New(seed))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

// settle ticks until neither layer has in-flight work.
func settle(t *testing.T, w *World, pos *placement.Vec2) {
	t.Helper()
	w.StepOnce(pos)
	for i := 0; i < 100; i++ {
		if w.fg.Pending() == 0 && w.bg.Pending() == 0 {
			return
		}
		w.StepOnce(nil)
	}
	t.Fatalf("world never settled")
}

type memTickLogger struct{ entries []TickLogEntry }

func (m *memTickLogger) WriteTick(e TickLogEntry) error {
	m.entries = append(m.entries, e)
	return nil
}
