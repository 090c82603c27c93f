package chunkgen

import (
	"fmt"

	"multiverse.game/internal/sim/worldgen/placement"
)

// EntityID is the handle of a live entity owned by the instantiation
// collaborator.
type EntityID uint64

type SpawnSpec struct {
	Record placement.Record
	Layer  placement.Layer
	// Label is a human-readable chunk tag for debugging.
	Label string
}

// Spawner realizes placement records as live entities and destroys them.
type Spawner interface {
	Spawn(spec SpawnSpec) EntityID
	Destroy(id EntityID)
}

// SessionView is the read side of the session state consulted at
// generation time.
type SessionView interface {
	Seed() int32
	Unlocked() placement.CategorySet
}

type Config struct {
	placement.Params

	ViewDistanceInChunks int
	PlanetsPerFrame      int
	Layer                placement.Layer
}

func DefaultConfig(layer placement.Layer) Config {
	return Config{
		Params:               placement.DefaultParams(),
		ViewDistanceInChunks: 2,
		PlanetsPerFrame:      2,
		Layer:                layer,
	}
}

func (c Config) Validate() error {
	if err := c.Params.Validate(); err != nil {
		return err
	}
	if c.ViewDistanceInChunks < 0 {
		return fmt.Errorf("view_distance_in_chunks must be >= 0")
	}
	if c.PlanetsPerFrame < 1 {
		return fmt.Errorf("planets_per_frame must be >= 1")
	}
	return nil
}

// TickReport summarizes one residency update.
type TickReport struct {
	ObserverChunk placement.ChunkCoord
	Loaded        []placement.ChunkCoord
	Evicted       []placement.ChunkCoord
	Realized      int
	Destroyed     int
	InFlight      int
}
