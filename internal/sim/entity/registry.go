// Package entity is the in-memory store of live entities realized from
// placement records. It stands in for the engine that would own the visual
// and physical objects.
package entity

import (
	"sort"

	"multiverse.game/internal/sim/chunkgen"
	"multiverse.game/internal/sim/worldgen/placement"
)

type Kind uint8

const (
	KindPlanet Kind = iota
	KindResidue
	KindHome
)

func (k Kind) String() string {
	switch k {
	case KindPlanet:
		return "PLANET"
	case KindResidue:
		return "RESIDUE"
	case KindHome:
		return "HOME"
	default:
		return "UNKNOWN"
	}
}

type Entity struct {
	ID     chunkgen.EntityID
	Kind   Kind
	Layer  placement.Layer
	Record placement.Record
	Label  string
}

// EventType is the journal verb.
type EventType string

const (
	EventSpawn   EventType = "SPAWN"
	EventDestroy EventType = "DESTROY"
)

type Event struct {
	Type     EventType            `json:"type"`
	ID       chunkgen.EntityID    `json:"id"`
	Kind     string               `json:"kind"`
	Layer    string               `json:"layer"`
	Chunk    placement.ChunkCoord `json:"chunk"`
	Pos      [2]float64           `json:"pos,omitempty"`
	Radius   float64              `json:"radius,omitempty"`
	Category string               `json:"category,omitempty"`
	Rotation float64              `json:"rotation,omitempty"`
}

// Registry implements chunkgen.Spawner. It is not safe for concurrent use.
type Registry struct {
	next    chunkgen.EntityID
	live    map[chunkgen.EntityID]*Entity
	journal []Event
}

func NewRegistry() *Registry {
	return &Registry{live: map[chunkgen.EntityID]*Entity{}}
}

func (r *Registry) Spawn(spec chunkgen.SpawnSpec) chunkgen.EntityID {
	kind := KindPlanet
	if spec.Record.Category == placement.Home {
		kind = KindHome
	}
	return r.add(kind, spec.Layer, spec.Record, spec.Label)
}

// SpawnResidue creates a free-floating debris entity. The caller decides
// which chunk owns it.
func (r *Registry) SpawnResidue(pos placement.Vec2, radius float64, layer placement.Layer, chunkSize float64) chunkgen.EntityID {
	rec := placement.Record{
		Pos:      pos,
		Radius:   radius,
		Chunk:    placement.ChunkOf(pos, chunkSize),
		Category: placement.Neutral,
	}
	return r.add(KindResidue, layer, rec, rec.Chunk.String())
}

func (r *Registry) add(kind Kind, layer placement.Layer, rec placement.Record, label string) chunkgen.EntityID {
	r.next++
	e := &Entity{ID: r.next, Kind: kind, Layer: layer, Record: rec, Label: label}
	r.live[e.ID] = e
	r.journal = append(r.journal, Event{
		Type:     EventSpawn,
		ID:       e.ID,
		Kind:     kind.String(),
		Layer:    layer.String(),
		Chunk:    rec.Chunk,
		Pos:      rec.Pos.ToArray(),
		Radius:   rec.Radius,
		Category: rec.Category.String(),
		Rotation: rec.Rotation,
	})
	return e.ID
}

// Destroy removes id. Unknown ids are ignored.
func (r *Registry) Destroy(id chunkgen.EntityID) {
	e := r.live[id]
	if e == nil {
		return
	}
	delete(r.live, id)
	r.journal = append(r.journal, Event{
		Type:  EventDestroy,
		ID:    id,
		Kind:  e.Kind.String(),
		Layer: e.Layer.String(),
		Chunk: e.Record.Chunk,
	})
}

func (r *Registry) Get(id chunkgen.EntityID) (Entity, bool) {
	e := r.live[id]
	if e == nil {
		return Entity{}, false
	}
	return *e, true
}

func (r *Registry) Len() int { return len(r.live) }

// NextID is the id the next spawn will receive.
func (r *Registry) NextID() chunkgen.EntityID { return r.next + 1 }

// All returns live entities sorted by id.
func (r *Registry) All() []Entity {
	out := make([]Entity, 0, len(r.live))
	for _, e := range r.live {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Contacts returns live entities of the given layer whose disk overlaps the
// disk at pos with the given radius, sorted by id. Layers never touch.
func (r *Registry) Contacts(pos placement.Vec2, radius float64, layer placement.Layer) []Entity {
	var out []Entity
	for _, e := range r.live {
		if e.Layer != layer {
			continue
		}
		if e.Record.Pos.Dist(pos) < e.Record.Radius+radius {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Drain returns the spawn/destroy journal accumulated since the last call.
func (r *Registry) Drain() []Event {
	if len(r.journal) == 0 {
		return nil
	}
	out := r.journal
	r.journal = nil
	return out
}
