package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	persistlog "multiverse.game/internal/persistence/log"
	"multiverse.game/internal/persistence/snapshot"
	"multiverse.game/internal/sim/session"
	"multiverse.game/internal/sim/tuning"
	"multiverse.game/internal/sim/world"
	"multiverse.game/internal/sim/worldgen/placement"
)

func TestChunk_JSONMatchesGenerator(t *testing.T) {
	var b strings.Builder
	if err := run([]string{"chunk", "-seed", "42", "-x", "1", "-y", "2", "-json", "-unlocked", "1,3"}, &b); err != nil {
		t.Fatalf("run: %v", err)
	}
	cfg := tuning.Defaults().Foreground.Config()
	want := placement.Generate(42, placement.ChunkCoord{X: 1, Y: 2}, placement.Foreground,
		placement.SetOf(placement.Universe1, placement.Universe3), cfg.Params)

	sc := bufio.NewScanner(strings.NewReader(b.String()))
	i := 0
	for sc.Scan() {
		var r placement.Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if i >= len(want) || r != want[i] {
			t.Fatalf("record %d = %+v", i, r)
		}
		i++
	}
	if i != len(want) {
		t.Fatalf("got %d records want %d", i, len(want))
	}
}

func TestChunk_TableAndErrors(t *testing.T) {
	var b strings.Builder
	if err := run([]string{"chunk", "-seed", "7", "-layer", "bg"}, &b); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(b.String(), "seed=7 chunk=(0,0) layer=BACKGROUND") {
		t.Fatalf("header: %q", b.String())
	}

	var ue usageError
	for _, args := range [][]string{
		nil,
		{"nope"},
		{"chunk", "-layer", "middle"},
		{"chunk", "-unlocked", "4"},
		{"snapshot"},
		{"replay"},
	} {
		if err := run(args, &b); !errors.As(err, &ue) {
			t.Fatalf("%v: want usage error, got %v", args, err)
		}
	}
}

func testTuning() tuning.Tuning {
	t := tuning.Defaults()
	t.Foreground.ViewDistanceInChunks = 1
	t.Background.ViewDistanceInChunks = 1
	return t
}

func TestSnapshotAndReplay(t *testing.T) {
	dir := t.TempDir()
	tune := testTuning()
	tuningPath := filepath.Join(dir, "tuning.yaml")
	writeTuning(t, tuningPath)

	w, err := world.New(world.ConfigFromTuning("hub", tune), session.New(42))
	if err != nil {
		t.Fatal(err)
	}
	tl := persistlog.NewTickLogger(dir)
	w.SetTickLogger(tl)
	for i, p := range []placement.Vec2{{X: 5, Y: 5}, {X: 150, Y: 20}, {X: 150, Y: 260}} {
		p := p
		w.StepOnce(&p)
		in := world.Input{Residues: []world.ResidueInput{{Pos: p, Radius: 0.4}}}
		if i == 1 {
			in.LevelsWon = []int{2}
		}
		w.StepInput(in)
	}
	snapPath := filepath.Join(dir, "6.snap.zst")
	if err := snapshot.WriteSnapshot(snapPath, w.ExportSnapshot(w.CurrentTick())); err != nil {
		t.Fatal(err)
	}
	if err := tl.Close(); err != nil {
		t.Fatal(err)
	}

	var b strings.Builder
	if err := run([]string{"snapshot", "-path", snapPath}, &b); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !strings.Contains(b.String(), "tick=6 seed=42 unlocked=[1]") {
		t.Fatalf("snapshot output: %q", b.String())
	}

	b.Reset()
	events := persistlog.EventsDir(dir)
	if err := run([]string{"replay", "-events", events, "-seed", "42", "-tuning", tuningPath}, &b); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !strings.Contains(b.String(), "checked=6 ticks") {
		t.Fatalf("replay output: %q", b.String())
	}

	b.Reset()
	if err := run([]string{"replay", "-events", events, "-seed", "42", "-tuning", tuningPath, "-to_tick", "2"}, &b); err != nil {
		t.Fatalf("replay to_tick: %v", err)
	}
	if !strings.Contains(b.String(), "checked=3 ticks") {
		t.Fatalf("replay to_tick output: %q", b.String())
	}

	if err := run([]string{"replay", "-events", events, "-seed", "43", "-tuning", tuningPath}, &b); err == nil ||
		!strings.Contains(err.Error(), "digest mismatch at tick 0") {
		t.Fatalf("wrong seed: %v", err)
	}
}

func writeTuning(t *testing.T, path string) {
	t.Helper()
	tune := testTuning()
	yaml := fmt.Sprintf(`foreground:
  view_distance_in_chunks: %d
background:
  view_distance_in_chunks: %d
`, tune.Foreground.ViewDistanceInChunks, tune.Background.ViewDistanceInChunks)
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
}
