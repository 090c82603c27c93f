package world

import (
	"encoding/json"
	"sort"

	"multiverse.game/internal/protocol"
	"multiverse.game/internal/sim/chunkgen"
	"multiverse.game/internal/sim/entity"
	"multiverse.game/internal/sim/worldgen/placement"
)

type observerClient struct {
	id      string
	tickOut chan []byte
	// resync is set on join and after a dropped message; the next TICK then
	// carries the full live entity set instead of the journal.
	resync bool
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.TickOut == nil {
		return
	}
	// Replace existing session id if any.
	if old := w.observers[req.SessionID]; old != nil {
		close(old.tickOut)
	}
	w.observers[req.SessionID] = &observerClient{id: req.SessionID, tickOut: req.TickOut, resync: true}
	if req.Resp != nil {
		req.Resp <- w.worldParams()
	}
}

func (w *World) handleObserverLeave(sessionID string) {
	c := w.observers[sessionID]
	if c == nil {
		return
	}
	delete(w.observers, sessionID)
	close(c.tickOut)
}

func (w *World) worldParams() protocol.WorldParams {
	p := protocol.WorldParams{
		TickRateHz:     w.cfg.TickRateHz,
		Seed:           w.session.Seed(),
		ObserverRadius: w.cfg.ObserverRadius,
		Foreground:     layerParams(w.cfg.Foreground),
		Background:     layerParams(w.cfg.Background),
	}
	if home, ok := w.session.Home(); ok {
		hp := planetOf(w.homeID, home)
		p.Home = &hp
	}
	return p
}

// WorldParams is safe to call from any goroutine.
func (w *World) WorldParams() protocol.WorldParams {
	if p := w.params.Load(); p != nil {
		return *p
	}
	return protocol.WorldParams{}
}

func layerParams(c chunkgen.Config) protocol.LayerParams {
	return protocol.LayerParams{
		ChunkSize:            c.ChunkSize,
		ViewDistanceInChunks: c.ViewDistanceInChunks,
		MinPlanetRadius:      c.MinPlanetRadius,
		MaxPlanetRadius:      c.MaxPlanetRadius,
		MaxPlanetsPerChunk:   c.MaxPlanetsPerChunk,
		PlanetsPerFrame:      c.PlanetsPerFrame,
	}
}

func planetOf(id chunkgen.EntityID, r placement.Record) protocol.Planet {
	return protocol.Planet{
		ID:       uint64(id),
		Pos:      r.Pos.ToArray(),
		Radius:   r.Radius,
		Chunk:    [2]int{r.Chunk.X, r.Chunk.Y},
		Category: r.Category.String(),
		Rotation: r.Rotation,
	}
}

func eventOf(e entity.Event) protocol.EntityEvent {
	return protocol.EntityEvent{
		Type:     string(e.Type),
		ID:       uint64(e.ID),
		Kind:     e.Kind,
		Layer:    e.Layer,
		Chunk:    [2]int{e.Chunk.X, e.Chunk.Y},
		Pos:      e.Pos,
		Radius:   e.Radius,
		Category: e.Category,
		Rotation: e.Rotation,
	}
}

func spawnEventOf(e entity.Entity) protocol.EntityEvent {
	return protocol.EntityEvent{
		Type:     string(entity.EventSpawn),
		ID:       uint64(e.ID),
		Kind:     e.Kind.String(),
		Layer:    e.Layer.String(),
		Chunk:    [2]int{e.Record.Chunk.X, e.Record.Chunk.Y},
		Pos:      e.Record.Pos.ToArray(),
		Radius:   e.Record.Radius,
		Category: e.Record.Category.String(),
		Rotation: e.Record.Rotation,
	}
}

func (w *World) unlockedNames() []string {
	out := []string{}
	for _, c := range w.session.Unlocked().Slice() {
		out = append(out, c.String())
	}
	return out
}

func (w *World) broadcastTick(tick uint64, center placement.ChunkCoord, events []entity.Event, contacts []entity.Entity, digest string) {
	if len(w.observers) == 0 {
		return
	}
	obs, _ := w.Observer()
	base := protocol.TickMsg{
		Type:            protocol.TypeTick,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Observer:        obs.ToArray(),
		ObserverChunk:   [2]int{center.X, center.Y},
		Unlocked:        w.unlockedNames(),
		Digest:          digest,
	}
	for _, c := range contacts {
		base.Contacts = append(base.Contacts, planetOf(c.ID, c.Record))
	}

	delta := base
	for _, e := range events {
		delta.Events = append(delta.Events, eventOf(e))
	}
	deltaBytes, _ := json.Marshal(delta)

	var fullBytes []byte
	for _, id := range sortedObserverIDs(w.observers) {
		c := w.observers[id]
		b := deltaBytes
		if c.resync {
			if fullBytes == nil {
				full := base
				full.Resync = true
				for _, e := range w.registry.All() {
					full.Events = append(full.Events, spawnEventOf(e))
				}
				fullBytes, _ = json.Marshal(full)
			}
			b = fullBytes
			c.resync = false
		}
		if sendLatest(c.tickOut, b) {
			c.resync = true
		}
	}
}

// sendLatest queues b, dropping the oldest queued message when the channel
// is full. It reports whether anything was dropped.
func sendLatest(ch chan []byte, b []byte) (dropped bool) {
	select {
	case ch <- b:
		return false
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
	return true
}

func sortedObserverIDs(m map[string]*observerClient) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
