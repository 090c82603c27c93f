package world

import (
	"fmt"

	"multiverse.game/internal/persistence/snapshot"
	"multiverse.game/internal/sim/chunkgen"
	"multiverse.game/internal/sim/entity"
	"multiverse.game/internal/sim/worldgen/placement"
)

// ExportSnapshot must be called from the world loop goroutine. nowTick is
// the next tick to run.
func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    nowTick,
			Seed:    w.session.Seed(),
		},
		TickRate:           w.cfg.TickRateHz,
		SnapshotEveryTicks: w.cfg.SnapshotEveryTicks,
		ObserverRadius:     w.cfg.ObserverRadius,
		Foreground:         layerV1(w.cfg.Foreground),
		Background:         layerV1(w.cfg.Background),
		Seed:               w.session.Seed(),
	}
	for _, c := range w.session.Unlocked().Slice() {
		snap.Unlocked = append(snap.Unlocked, int(c))
	}
	if home, ok := w.session.Home(); ok {
		r := recordV1(home)
		snap.Home = &r
	}
	if obs, ok := w.Observer(); ok {
		snap.Observer = obs.ToArray()
		snap.HasObserver = true
	}
	for _, e := range w.registry.All() {
		if e.Kind != entity.KindResidue {
			continue
		}
		snap.Residues = append(snap.Residues, snapshot.ResidueV1{
			Pos:    e.Record.Pos.ToArray(),
			Radius: e.Record.Radius,
			Layer:  int(e.Layer),
			Chunk:  snapshot.ChunkKeyV1{CX: e.Record.Chunk.X, CY: e.Record.Chunk.Y},
		})
	}
	snap.ResidentForeground = chunkKeys(w.fg.Resident())
	snap.ResidentBackground = chunkKeys(w.bg.Resident())
	return snap
}

// ImportSnapshot replaces the session and rebuilds both layers. Chunks are
// regenerated from the seed on the following ticks; entity ids restart.
// It must be called from the world loop goroutine (or before Run).
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if w.closed {
		return ErrClosed
	}
	if snap.Header.Version != snapshot.Version {
		return fmt.Errorf("import snapshot: unsupported version %d", snap.Header.Version)
	}
	cfg := w.cfg
	if snap.TickRate > 0 {
		cfg.TickRateHz = snap.TickRate
	}
	cfg.SnapshotEveryTicks = snap.SnapshotEveryTicks
	cfg.ObserverRadius = snap.ObserverRadius
	cfg.Foreground = layerFromV1(snap.Foreground, placement.Foreground)
	cfg.Background = layerFromV1(snap.Background, placement.Background)
	if err := cfg.Foreground.Validate(); err != nil {
		return fmt.Errorf("import snapshot: foreground: %w", err)
	}
	if err := cfg.Background.Validate(); err != nil {
		return fmt.Errorf("import snapshot: background: %w", err)
	}

	var unlocked placement.CategorySet
	for _, c := range snap.Unlocked {
		cat := placement.Category(c)
		if !cat.Collectible() {
			return fmt.Errorf("import snapshot: category %d is not collectible", c)
		}
		unlocked = unlocked.With(cat)
	}

	w.fg.Close()
	w.bg.Close()
	w.registry.Destroy(w.homeID)

	w.cfg = cfg
	w.session.Reset(snap.Seed)
	w.session.SetUnlocked(unlocked)
	if snap.Home != nil {
		w.session.SetHome(recordFromV1(*snap.Home))
	}
	if err := w.buildLayers(); err != nil {
		return err
	}

	for _, r := range snap.Residues {
		layer := placement.Layer(r.Layer)
		gen := w.fg
		if layer == placement.Background {
			gen = w.bg
		}
		pos := placement.Vec2FromArray(r.Pos)
		id := w.registry.SpawnResidue(pos, r.Radius, layer, gen.Config().ChunkSize)
		gen.RegisterResidue(gen.ChunkOf(pos), id)
	}
	// The import itself is not streamed to observers.
	w.registry.Drain()

	w.observer = nil
	if snap.HasObserver {
		obs := placement.Vec2FromArray(snap.Observer)
		w.observer = &obs
	}
	w.tick.Store(snap.Header.Tick)
	for _, c := range w.observers {
		c.resync = true
	}
	w.logf("world %s: imported snapshot tick=%d seed=%d", w.cfg.ID, snap.Header.Tick, snap.Seed)
	return nil
}

func layerV1(c chunkgen.Config) snapshot.LayerV1 {
	return snapshot.LayerV1{
		ChunkSize:            c.ChunkSize,
		ViewDistanceInChunks: c.ViewDistanceInChunks,
		MinPlanetRadius:      c.MinPlanetRadius,
		MaxPlanetRadius:      c.MaxPlanetRadius,
		MaxPlanetsPerChunk:   c.MaxPlanetsPerChunk,
		MaxPlacementAttempts: c.MaxPlacementAttempts,
		PlanetsPerFrame:      c.PlanetsPerFrame,
		NoForegroundRadius:   c.NoForegroundRadius,
		HomeDistance:         c.HomeDistance,
		Background:           c.Layer == placement.Background,
	}
}

func layerFromV1(l snapshot.LayerV1, layer placement.Layer) chunkgen.Config {
	return chunkgen.Config{
		Params: placement.Params{
			ChunkSize:            l.ChunkSize,
			MinPlanetRadius:      l.MinPlanetRadius,
			MaxPlanetRadius:      l.MaxPlanetRadius,
			MaxPlanetsPerChunk:   l.MaxPlanetsPerChunk,
			MaxPlacementAttempts: l.MaxPlacementAttempts,
			NoForegroundRadius:   l.NoForegroundRadius,
			HomeDistance:         l.HomeDistance,
		},
		ViewDistanceInChunks: l.ViewDistanceInChunks,
		PlanetsPerFrame:      l.PlanetsPerFrame,
		Layer:                layer,
	}
}

func recordV1(r placement.Record) snapshot.RecordV1 {
	return snapshot.RecordV1{
		Pos:      r.Pos.ToArray(),
		Radius:   r.Radius,
		Chunk:    snapshot.ChunkKeyV1{CX: r.Chunk.X, CY: r.Chunk.Y},
		Category: int(r.Category),
		Rotation: r.Rotation,
	}
}

func recordFromV1(r snapshot.RecordV1) placement.Record {
	return placement.Record{
		Pos:      placement.Vec2FromArray(r.Pos),
		Radius:   r.Radius,
		Chunk:    placement.ChunkCoord{X: r.Chunk.CX, Y: r.Chunk.CY},
		Category: placement.Category(r.Category),
		Rotation: r.Rotation,
	}
}

func chunkKeys(cs []placement.ChunkCoord) []snapshot.ChunkKeyV1 {
	out := make([]snapshot.ChunkKeyV1, 0, len(cs))
	for _, c := range cs {
		out = append(out, snapshot.ChunkKeyV1{CX: c.X, CY: c.Y})
	}
	return out
}
