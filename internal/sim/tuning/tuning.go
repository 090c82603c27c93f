package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"multiverse.game/internal/sim/chunkgen"
	"multiverse.game/internal/sim/worldgen/placement"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int     `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int     `yaml:"snapshot_every_ticks"`
	ObserverRadius     float64 `yaml:"observer_radius"`

	Foreground Layer `yaml:"foreground"`
	Background Layer `yaml:"background"`

	RateLimits RateLimits `yaml:"rate_limits"`
}

// Layer holds the knobs of one generator instance.
type Layer struct {
	ChunkSize            float64 `yaml:"chunk_size"`
	ViewDistanceInChunks int     `yaml:"view_distance_in_chunks"`
	MinPlanetRadius      float64 `yaml:"min_planet_radius"`
	MaxPlanetRadius      float64 `yaml:"max_planet_radius"`
	MaxPlanetsPerChunk   int     `yaml:"max_planets_per_chunk"`
	MaxPlacementAttempts int     `yaml:"max_placement_attempts"`
	PlanetsPerFrame      int     `yaml:"planets_per_frame"`
	NoForegroundRadius   float64 `yaml:"no_foreground_radius"`
	HomeDistance         float64 `yaml:"home_distance"`
	Background           bool    `yaml:"background"`
}

type RateLimits struct {
	MovePerSecond float64 `yaml:"move_per_second"`
	MoveBurst     int     `yaml:"move_burst"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         30,
		SnapshotEveryTicks: 3000,
		ObserverRadius:     1,
		Foreground:         layerFrom(chunkgen.DefaultConfig(placement.Foreground)),
		Background: Layer{
			ChunkSize:            100,
			ViewDistanceInChunks: 3,
			MinPlanetRadius:      0.5,
			MaxPlanetRadius:      3,
			MaxPlanetsPerChunk:   6,
			MaxPlacementAttempts: 10,
			PlanetsPerFrame:      3,
			Background:           true,
		},
		RateLimits: RateLimits{MovePerSecond: 60, MoveBurst: 30},
	}
}

func layerFrom(c chunkgen.Config) Layer {
	return Layer{
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

// Config converts l to a generator config.
func (l Layer) Config() chunkgen.Config {
	layer := placement.Foreground
	if l.Background {
		layer = placement.Background
	}
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

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be > 0")
	}
	if t.SnapshotEveryTicks < 0 {
		return fmt.Errorf("snapshot_every_ticks must be >= 0")
	}
	if t.ObserverRadius < 0 {
		return fmt.Errorf("observer_radius must be >= 0")
	}
	if t.Foreground.Background {
		return fmt.Errorf("foreground: background must be false")
	}
	if !t.Background.Background {
		return fmt.Errorf("background: background must be true")
	}
	if err := t.Foreground.Config().Validate(); err != nil {
		return fmt.Errorf("foreground: %w", err)
	}
	if err := t.Background.Config().Validate(); err != nil {
		return fmt.Errorf("background: %w", err)
	}
	if t.RateLimits.MovePerSecond < 0 || t.RateLimits.MoveBurst < 0 {
		return fmt.Errorf("rate_limits must be >= 0")
	}
	return nil
}

// Load reads path over Defaults. Keys missing from the file keep their
// default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
