package placement

import "fmt"

// Params are the generation knobs of one layer.
type Params struct {
	ChunkSize            float64
	MinPlanetRadius      float64
	MaxPlanetRadius      float64
	MaxPlanetsPerChunk   int
	MaxPlacementAttempts int
	NoForegroundRadius   float64
	HomeDistance         float64
}

func DefaultParams() Params {
	return Params{
		ChunkSize:            100,
		MinPlanetRadius:      1,
		MaxPlanetRadius:      5,
		MaxPlanetsPerChunk:   3,
		MaxPlacementAttempts: 10,
		NoForegroundRadius:   20,
		HomeDistance:         6,
	}
}

func (p Params) Validate() error {
	if p.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be > 0")
	}
	if p.MinPlanetRadius < 0 {
		return fmt.Errorf("min_planet_radius must be >= 0")
	}
	if p.MaxPlanetRadius < p.MinPlanetRadius {
		return fmt.Errorf("max_planet_radius must be >= min_planet_radius")
	}
	if p.MaxPlanetsPerChunk < 0 {
		return fmt.Errorf("max_planets_per_chunk must be >= 0")
	}
	if p.MaxPlacementAttempts < 0 {
		return fmt.Errorf("max_placement_attempts must be >= 0")
	}
	if p.NoForegroundRadius < 0 {
		return fmt.Errorf("no_foreground_radius must be >= 0")
	}
	if p.HomeDistance < 0 {
		return fmt.Errorf("home_distance must be >= 0")
	}
	return nil
}
