package indexdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"multiverse.game/internal/persistence/snapshot"
	"multiverse.game/internal/sim/world"
	"multiverse.game/internal/sim/worldgen/placement"
)

func TestStats_QueueDrops(t *testing.T) {
	s := &Index{ch: make(chan req, 1)}
	_ = s.WriteTick(world.TickLogEntry{Tick: 1})
	_ = s.WriteTick(world.TickLogEntry{Tick: 2})
	s.RecordSnapshot("a", snapshot.SnapshotV1{})
	s.RecordSession("w", 1, 0)

	st := s.Stats()
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue depth/capacity = %d/%d", st.QueueDepth, st.QueueCapacity)
	}
	if st.DropTickTotal != 1 || st.DropSnapshotTotal != 1 || st.DropSessionTotal != 1 {
		t.Fatalf("drops: %+v", st)
	}
}

func TestRebind(t *testing.T) {
	q := `SELECT a FROM t WHERE x=? AND y=?`
	if got := DialectSQLite.rebind(q); got != q {
		t.Fatalf("sqlite rebind changed query: %q", got)
	}
	if got := DialectPostgres.rebind(q); got != `SELECT a FROM t WHERE x=$1 AND y=$2` {
		t.Fatalf("postgres rebind: %q", got)
	}
}

func TestSQLite_TicksAndChunkEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "world.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()
	if idx.Dialect() != DialectSQLite {
		t.Fatalf("dialect = %v", idx.Dialect())
	}

	c := placement.ChunkCoord{X: 2, Y: -1}
	_ = idx.WriteTick(world.TickLogEntry{
		Tick:       0,
		Foreground: world.LayerTick{Loaded: []placement.ChunkCoord{c, {X: 0, Y: 0}}},
		Background: world.LayerTick{Loaded: []placement.ChunkCoord{c}},
		Digest:     "d0",
	})
	_ = idx.WriteTick(world.TickLogEntry{
		Tick:       5,
		Observer:   [2]float64{300, 0},
		Foreground: world.LayerTick{Evicted: []placement.ChunkCoord{c}},
		Digest:     "d5",
	})
	idx.RecordSession("w1", 42, 0)
	idx.RecordSnapshot("/tmp/5.snap.zst", snapshot.SnapshotV1{
		Header:   snapshot.Header{Version: snapshot.Version, WorldID: "w1", Tick: 5},
		Seed:     42,
		Unlocked: []int{1},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	hist, err := idx.ChunkHistory(ctx, placement.Foreground, c)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 || hist[0].Event != EventLoad || hist[0].Tick != 0 || hist[1].Event != EventEvict || hist[1].Tick != 5 {
		t.Fatalf("foreground history: %+v", hist)
	}
	bg, err := idx.ChunkHistory(ctx, placement.Background, c)
	if err != nil || len(bg) != 1 {
		t.Fatalf("background history: %+v err=%v", bg, err)
	}

	d, ok, err := idx.TickDigest(ctx, 5)
	if err != nil || !ok || d != "d5" {
		t.Fatalf("digest: %q ok=%v err=%v", d, ok, err)
	}
	if _, ok, _ := idx.TickDigest(ctx, 99); ok {
		t.Fatalf("expected missing tick")
	}

	snaps, err := idx.Snapshots(ctx)
	if err != nil || snaps[5] != "/tmp/5.snap.zst" {
		t.Fatalf("snapshots: %v err=%v", snaps, err)
	}
	if st := idx.Stats(); st.WriteErrorTotal != 0 {
		t.Fatalf("write errors: %+v", st)
	}
}

func TestSQLite_RewriteTickIsUpsert(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "world.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	_ = idx.WriteTick(world.TickLogEntry{Tick: 3, Digest: "old"})
	_ = idx.WriteTick(world.TickLogEntry{Tick: 3, Digest: "new"})
	ctx := context.Background()
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	d, _, err := idx.TickDigest(ctx, 3)
	if err != nil || d != "new" {
		t.Fatalf("digest = %q err=%v", d, err)
	}
}

func TestClosedIndexIgnoresWrites(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "world.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_ = idx.WriteTick(world.TickLogEntry{Tick: 1})
	if err := idx.Flush(context.Background()); err == nil {
		t.Fatalf("expected flush error after close")
	}
	_ = idx.Close()
}
