package world

import (
	"context"
	"time"

	"multiverse.game/internal/sim/chunkgen"
	"multiverse.game/internal/sim/worldgen/placement"
)

// Input is what one tick consumes besides the clock.
type Input struct {
	// Observer replaces the observer position when non-nil.
	Observer  *placement.Vec2
	LevelsWon []int
	Residues  []ResidueInput
}

type ResidueInput struct {
	Pos    placement.Vec2
	Radius float64
	Layer  placement.Layer
}

type TickLogEntry struct {
	Tick      uint64            `json:"tick"`
	Move      *[2]float64       `json:"move,omitempty"`
	LevelsWon []int             `json:"levels_won,omitempty"`
	Residues  []RecordedResidue `json:"residues,omitempty"`

	Observer   [2]float64          `json:"observer"`
	Foreground LayerTick           `json:"foreground"`
	Background LayerTick           `json:"background"`
	Contacts   []chunkgen.EntityID `json:"contacts,omitempty"`
	Digest     string              `json:"digest"`
}

type RecordedResidue struct {
	ID     chunkgen.EntityID `json:"id"`
	Pos    [2]float64        `json:"pos"`
	Radius float64           `json:"radius"`
	Layer  string            `json:"layer"`
}

type LayerTick struct {
	Loaded    []placement.ChunkCoord `json:"loaded,omitempty"`
	Evicted   []placement.ChunkCoord `json:"evicted,omitempty"`
	Realized  int                    `json:"realized,omitempty"`
	Destroyed int                    `json:"destroyed,omitempty"`
	InFlight  int                    `json:"in_flight,omitempty"`
}

func layerTick(r chunkgen.TickReport) LayerTick {
	return LayerTick{
		Loaded:    r.Loaded,
		Evicted:   r.Evicted,
		Realized:  r.Realized,
		Destroyed: r.Destroyed,
		InFlight:  r.InFlight,
	}
}

func (w *World) Run(ctx context.Context) error {
	if w.closed {
		return ErrClosed
	}
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingMove *placement.Vec2
	var pendingLevels []LevelWonRequest
	var pendingResidues []ResidueRequest
	var pendingSnapshots []SnapshotRequest

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.move:
			p := req.Pos
			pendingMove = &p
		case req := <-w.levelWon:
			pendingLevels = append(pendingLevels, req)
		case req := <-w.residue:
			pendingResidues = append(pendingResidues, req)
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case req := <-w.snapshotReq:
			pendingSnapshots = append(pendingSnapshots, req)
		case <-ticker.C:
			w.stepRequests(interval, pendingMove, pendingLevels, pendingResidues)
			w.handleSnapshotRequests(pendingSnapshots)
			pendingMove = nil
			pendingLevels = pendingLevels[:0]
			pendingResidues = pendingResidues[:0]
			pendingSnapshots = pendingSnapshots[:0]
		}
	}
}

// Stop makes Run return. Safe to call more than once and from any goroutine.
func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// StepOnce advances the world by a single tick using the same ordering
// semantics as the server. A nil observer keeps the current position.
func (w *World) StepOnce(observer *placement.Vec2) (tick uint64, digest string) {
	return w.StepInput(Input{Observer: observer})
}

// StepInput is StepOnce with level completions and residue drops.
func (w *World) StepInput(in Input) (tick uint64, digest string) {
	tick, digest, _, _ = w.step(w.interval(), in)
	return tick, digest
}

func (w *World) interval() time.Duration {
	return time.Second / time.Duration(w.cfg.TickRateHz)
}

func (w *World) stepRequests(dt time.Duration, move *placement.Vec2, levels []LevelWonRequest, residues []ResidueRequest) {
	in := Input{Observer: move}
	for _, r := range levels {
		in.LevelsWon = append(in.LevelsWon, r.Level)
	}
	for _, r := range residues {
		in.Residues = append(in.Residues, ResidueInput{Pos: r.Pos, Radius: r.Radius, Layer: r.Layer})
	}
	_, _, levelErrs, residueIDs := w.step(dt, in)
	for i, r := range levels {
		if r.Resp != nil {
			r.Resp <- levelErrs[i]
		}
	}
	for i, r := range residues {
		if r.Resp != nil {
			r.Resp <- residueIDs[i]
		}
	}
}

func (w *World) step(dt time.Duration, in Input) (tick uint64, digest string, levelErrs []error, residueIDs []chunkgen.EntityID) {
	tick = w.tick.Load()
	if w.closed {
		return tick, w.stateDigest(tick), make([]error, len(in.LevelsWon)), make([]chunkgen.EntityID, len(in.Residues))
	}
	start := time.Now()
	entry := TickLogEntry{Tick: tick}

	if in.Observer != nil {
		p := *in.Observer
		w.observer = &p
		mv := p.ToArray()
		entry.Move = &mv
	}

	// Unlocks first so chunks generated this tick already see them.
	levelErrs = make([]error, len(in.LevelsWon))
	for i, lvl := range in.LevelsWon {
		if err := w.session.LevelWon(lvl); err != nil {
			levelErrs[i] = err
			continue
		}
		entry.LevelsWon = append(entry.LevelsWon, lvl)
		w.logf("world %s: level %d won, unlocked=%v", w.cfg.ID, lvl, w.session.Unlocked().Slice())
	}

	fgRep := w.fg.Tick(dt, w.observer)
	bgRep := w.bg.Tick(dt, w.observer)
	entry.Foreground = layerTick(fgRep)
	entry.Background = layerTick(bgRep)

	residueIDs = make([]chunkgen.EntityID, len(in.Residues))
	for i, r := range in.Residues {
		gen := w.fg
		if r.Layer == placement.Background {
			gen = w.bg
		}
		id := w.registry.SpawnResidue(r.Pos, r.Radius, r.Layer, gen.Config().ChunkSize)
		gen.RegisterResidue(gen.ChunkOf(r.Pos), id)
		residueIDs[i] = id
		entry.Residues = append(entry.Residues, RecordedResidue{
			ID:     id,
			Pos:    r.Pos.ToArray(),
			Radius: r.Radius,
			Layer:  r.Layer.String(),
		})
	}

	obs, _ := w.Observer()
	entry.Observer = obs.ToArray()
	contacts := w.registry.Contacts(obs, w.cfg.ObserverRadius, placement.Foreground)
	for _, c := range contacts {
		entry.Contacts = append(entry.Contacts, c.ID)
	}

	events := w.registry.Drain()

	w.tick.Add(1)
	digest = w.stateDigest(tick)
	entry.Digest = digest

	if w.tickLogger != nil {
		if err := w.tickLogger.WriteTick(entry); err != nil {
			w.logf("world %s: tick log: %v", w.cfg.ID, err)
		}
	}

	w.broadcastTick(tick, fgRep.ObserverChunk, events, contacts, digest)
	w.publishMetrics(tick+1, time.Since(start))

	if w.snapshotSink != nil && w.cfg.SnapshotEveryTicks > 0 && (tick+1)%uint64(w.cfg.SnapshotEveryTicks) == 0 {
		snap := w.ExportSnapshot(tick + 1)
		select {
		case w.snapshotSink <- snap:
		default:
			w.logf("world %s: snapshot sink full, dropped tick %d", w.cfg.ID, tick+1)
		}
	}
	return tick, digest, levelErrs, residueIDs
}

func (w *World) handleSnapshotRequests(reqs []SnapshotRequest) {
	if len(reqs) == 0 {
		return
	}
	snap := w.ExportSnapshot(w.tick.Load())
	for _, r := range reqs {
		if r.Resp != nil {
			r.Resp <- snap
		}
	}
}

// Input reconstructs what the logged tick consumed, for replay.
func (e TickLogEntry) Input() Input {
	in := Input{LevelsWon: e.LevelsWon}
	if e.Move != nil {
		p := placement.Vec2FromArray(*e.Move)
		in.Observer = &p
	}
	for _, r := range e.Residues {
		layer := placement.Foreground
		if r.Layer == placement.Background.String() {
			layer = placement.Background
		}
		in.Residues = append(in.Residues, ResidueInput{Pos: placement.Vec2FromArray(r.Pos), Radius: r.Radius, Layer: layer})
	}
	return in
}
