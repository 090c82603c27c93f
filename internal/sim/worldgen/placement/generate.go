package placement

import (
	"math"

	"multiverse.game/internal/sim/worldgen/mathx"
	"multiverse.game/internal/sim/worldgen/rng"
)

const (
	// BackgroundSalt separates the decorative layer from the gameplay layer
	// that shares the same chunk coordinate.
	BackgroundSalt int32 = 0x2545f491

	// MaxRotationJitter bounds the cosmetic rotation, in degrees.
	MaxRotationJitter = 15.0

	homeSalt int32 = 0x68e31da4
)

// Generate returns the placement records of one chunk. The result depends
// only on its arguments; every random draw comes from a stream seeded by the
// chunk seed, in a fixed order.
func Generate(seed int32, chunk ChunkCoord, layer Layer, unlocked CategorySet, p Params) []Record {
	var salt int32
	if layer == Background {
		salt = BackgroundSalt
	}
	s := rng.New(uint64(uint32(mathx.ChunkSeed(seed, chunk.X, chunk.Y, salt))))

	count := s.IntRange(0, p.MaxPlanetsPerChunk)
	out := make([]Record, 0, count)
	origin := chunk.Origin(p.ChunkSize)

	for i := 0; i < count; i++ {
		for attempt := 0; attempt < p.MaxPlacementAttempts; attempt++ {
			cat := Category(s.IntRange(int(Universe1), int(Universe3)))
			if unlocked.Has(cat) {
				cat = Neutral
			}
			rot := s.Symmetric(MaxRotationJitter)
			radius := lerp(p.MinPlanetRadius, p.MaxPlanetRadius, s.Float64())
			px := s.Float64()
			py := s.Float64()
			cand := Record{
				Pos:      Vec2{X: origin.X + float64(px*p.ChunkSize), Y: origin.Y + float64(py*p.ChunkSize)},
				Radius:   radius,
				Chunk:    chunk,
				Category: cat,
				Rotation: rot,
			}

			if layer == Foreground && cand.Pos.Len() < p.NoForegroundRadius+radius {
				continue
			}
			if overlapsAny(cand, out) {
				continue
			}
			out = append(out, cand)
			break
		}
	}
	return out
}

// HomeRecord returns the session's home planet. It sits HomeDistance away
// from the origin at an angle derived from the seed and never takes part in
// chunk overlap checks.
func HomeRecord(seed int32, p Params) Record {
	s := rng.New(uint64(uint32(seed ^ homeSalt)))
	angle := s.Float64() * 2 * math.Pi
	pos := Vec2{
		X: math.Cos(angle) * p.HomeDistance,
		Y: math.Sin(angle) * p.HomeDistance,
	}
	return Record{
		Pos:      pos,
		Radius:   p.MaxPlanetRadius,
		Chunk:    ChunkOf(pos, p.ChunkSize),
		Category: Home,
	}
}

func overlapsAny(c Record, placed []Record) bool {
	for _, p := range placed {
		if p.Overlaps(c) {
			return true
		}
	}
	return false
}

// The explicit float64 conversions in this package forbid fused
// multiply-add, so generated positions are identical on every GOARCH.
func lerp(a, b, t float64) float64 {
	return a + float64((b-a)*t)
}
