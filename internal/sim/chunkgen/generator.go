// Package chunkgen streams procedurally generated chunks around an observer.
//
// A Generator keeps every chunk within ViewDistanceInChunks (Chebyshev
// distance) of the observer's chunk resident and nothing else. Chunk contents
// come from placement.Generate and are realized through a Spawner a few
// records per tick. All methods must be called from a single goroutine.
package chunkgen

import (
	"fmt"
	"sort"
	"time"

	"multiverse.game/internal/sim/worldgen/placement"
)

type residentChunk struct {
	coord    placement.ChunkCoord
	entities map[EntityID]struct{}
	task     *materializeTask

	// generated is false for entries auto-created by residue registration.
	generated bool
}

func newResidentChunk(c placement.ChunkCoord) *residentChunk {
	return &residentChunk{coord: c, entities: map[EntityID]struct{}{}}
}

type Generator struct {
	cfg     Config
	session SessionView
	spawner Spawner

	chunks   map[placement.ChunkCoord]*residentChunk
	observer placement.ChunkCoord

	ticks   uint64
	elapsed time.Duration
	closed  bool
}

func New(cfg Config, sess SessionView, sp Spawner) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("chunkgen %s: %w", cfg.Layer, err)
	}
	if sess == nil || sp == nil {
		return nil, fmt.Errorf("chunkgen %s: session and spawner are required", cfg.Layer)
	}
	return &Generator{
		cfg:     cfg,
		session: sess,
		spawner: sp,
		chunks:  map[placement.ChunkCoord]*residentChunk{},
	}, nil
}

func (g *Generator) Config() Config { return g.cfg }

func (g *Generator) Layer() placement.Layer { return g.cfg.Layer }

func (g *Generator) Ticks() uint64 { return g.ticks }

func (g *Generator) Elapsed() time.Duration { return g.elapsed }

// ObserverChunk is the observer chunk seen by the last Tick.
func (g *Generator) ObserverChunk() placement.ChunkCoord { return g.observer }

func (g *Generator) ChunkOf(pos placement.Vec2) placement.ChunkCoord {
	return placement.ChunkOf(pos, g.cfg.ChunkSize)
}

// Tick runs one residency update followed by one materialization step for
// every in-flight chunk. A nil observer is treated as the world origin.
func (g *Generator) Tick(dt time.Duration, observer *placement.Vec2) TickReport {
	var pos placement.Vec2
	if observer != nil {
		pos = *observer
	}
	center := g.ChunkOf(pos)
	rep := TickReport{ObserverChunk: center}
	if g.closed {
		return rep
	}
	g.ticks++
	g.elapsed += dt
	g.observer = center

	view := g.cfg.ViewDistanceInChunks

	// Evict first so a chunk is never both leaving and loading in one tick.
	for _, c := range g.sortedKeys() {
		if c.Chebyshev(center) <= view {
			continue
		}
		rep.Destroyed += g.evict(c)
		rep.Evicted = append(rep.Evicted, c)
	}

	for x := center.X - view; x <= center.X+view; x++ {
		for y := center.Y - view; y <= center.Y+view; y++ {
			c := placement.ChunkCoord{X: x, Y: y}
			ch := g.chunks[c]
			if ch != nil && ch.generated {
				continue
			}
			if ch == nil {
				ch = newResidentChunk(c)
				g.chunks[c] = ch
			}
			ch.generated = true
			records := placement.Generate(g.session.Seed(), c, g.cfg.Layer, g.session.Unlocked(), g.cfg.Params)
			g.schedule(ch, records)
			rep.Loaded = append(rep.Loaded, c)
		}
	}

	for _, c := range g.sortedKeys() {
		ch := g.chunks[c]
		if ch.task == nil {
			continue
		}
		n, more := ch.task.Step()
		rep.Realized += n
		if more {
			rep.InFlight++
		} else {
			ch.task = nil
		}
	}
	return rep
}

// schedule attaches a materialization task to ch. It is a no-op while a task
// for ch is still in flight.
func (g *Generator) schedule(ch *residentChunk, records []placement.Record) bool {
	if ch.task != nil && !ch.task.Done() {
		return false
	}
	if len(records) == 0 {
		ch.task = nil
		return false
	}
	ch.task = newMaterializeTask(ch, records, g.cfg.PlanetsPerFrame, g.cfg.Layer, g.spawner)
	return true
}

func (g *Generator) evict(c placement.ChunkCoord) int {
	ch := g.chunks[c]
	if ch == nil {
		return 0
	}
	if ch.task != nil {
		ch.task.Cancel()
		ch.task = nil
	}
	ids := sortedIDs(ch.entities)
	for _, id := range ids {
		g.spawner.Destroy(id)
	}
	delete(g.chunks, c)
	return len(ids)
}

// RegisterResidue hands ownership of an externally created entity to chunk
// c. The chunk entry is created if it is not resident yet; the entity is
// destroyed together with the chunk.
func (g *Generator) RegisterResidue(c placement.ChunkCoord, id EntityID) {
	if g.closed {
		g.spawner.Destroy(id)
		return
	}
	ch := g.chunks[c]
	if ch == nil {
		ch = newResidentChunk(c)
		g.chunks[c] = ch
	}
	ch.entities[id] = struct{}{}
}

// Close destroys every resident chunk. The generator stays closed.
func (g *Generator) Close() {
	if g.closed {
		return
	}
	for _, c := range g.sortedKeys() {
		g.evict(c)
	}
	g.closed = true
}

func (g *Generator) IsResident(c placement.ChunkCoord) bool {
	_, ok := g.chunks[c]
	return ok
}

// Resident lists resident chunks ordered by X then Y.
func (g *Generator) Resident() []placement.ChunkCoord { return g.sortedKeys() }

// Entities lists the entities owned by chunk c in ascending id order.
func (g *Generator) Entities(c placement.ChunkCoord) []EntityID {
	ch := g.chunks[c]
	if ch == nil {
		return nil
	}
	return sortedIDs(ch.entities)
}

func (g *Generator) InFlight(c placement.ChunkCoord) bool {
	ch := g.chunks[c]
	return ch != nil && ch.task != nil && !ch.task.Done()
}

// Pending counts records generated but not yet realized.
func (g *Generator) Pending() int {
	n := 0
	for _, ch := range g.chunks {
		if ch.task != nil {
			n += ch.task.Remaining()
		}
	}
	return n
}

func (g *Generator) sortedKeys() []placement.ChunkCoord {
	keys := make([]placement.ChunkCoord, 0, len(g.chunks))
	for k := range g.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

func sortedIDs(m map[EntityID]struct{}) []EntityID {
	ids := make([]EntityID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
