package placement

import (
	"fmt"
	"math"

	"multiverse.game/internal/sim/worldgen/mathx"
)

type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Len rounds each square before the add (no FMA).
func (v Vec2) Len() float64 {
	return math.Sqrt(float64(v.X*v.X) + float64(v.Y*v.Y))
}

func (v Vec2) Dist(o Vec2) float64 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}.Len()
}

func (v Vec2) ToArray() [2]float64 { return [2]float64{v.X, v.Y} }

func Vec2FromArray(a [2]float64) Vec2 { return Vec2{X: a[0], Y: a[1]} }

// ChunkCoord identifies a square region of side ChunkSize in world space.
type ChunkCoord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c ChunkCoord) String() string { return fmt.Sprintf("(%d,%d)", c.X, c.Y) }

// Origin is the world-space corner with the smallest coordinates.
func (c ChunkCoord) Origin(chunkSize float64) Vec2 {
	return Vec2{X: float64(c.X) * chunkSize, Y: float64(c.Y) * chunkSize}
}

// Chebyshev returns max(|dx|, |dy|).
func (c ChunkCoord) Chebyshev(o ChunkCoord) int {
	dx := mathx.AbsInt(c.X - o.X)
	dy := mathx.AbsInt(c.Y - o.Y)
	if dx > dy {
		return dx
	}
	return dy
}

// Less orders coordinates by X then Y.
func (c ChunkCoord) Less(o ChunkCoord) bool {
	if c.X != o.X {
		return c.X < o.X
	}
	return c.Y < o.Y
}

// ChunkOf maps a world position to its chunk. Positions beyond the chunk
// index range land in the nearest edge chunk.
func ChunkOf(pos Vec2, chunkSize float64) ChunkCoord {
	return ChunkCoord{X: mathx.FloorDivF(pos.X, chunkSize), Y: mathx.FloorDivF(pos.Y, chunkSize)}
}

// Addressable reports whether pos lies in a chunk ChunkOf can name
// without clamping.
func Addressable(pos Vec2, chunkSize float64) bool {
	return mathx.InChunkRange(pos.X, chunkSize) && mathx.InChunkRange(pos.Y, chunkSize)
}

type Category uint8

const (
	Universe1 Category = iota
	Universe2
	Universe3
	Neutral
	Home
)

// Collectible reports whether the category is one of the three universes.
func (c Category) Collectible() bool { return c <= Universe3 }

func (c Category) String() string {
	switch c {
	case Universe1:
		return "UNIVERSE_1"
	case Universe2:
		return "UNIVERSE_2"
	case Universe3:
		return "UNIVERSE_3"
	case Neutral:
		return "NEUTRAL"
	case Home:
		return "HOME"
	default:
		return fmt.Sprintf("CATEGORY_%d", uint8(c))
	}
}

// CategorySet is a bitset over the collectible categories.
type CategorySet uint8

func SetOf(cats ...Category) CategorySet {
	var s CategorySet
	for _, c := range cats {
		s = s.With(c)
	}
	return s
}

func (s CategorySet) Has(c Category) bool {
	if !c.Collectible() {
		return false
	}
	return s&(1<<c) != 0
}

// With returns s plus c. Non-collectible categories are ignored.
func (s CategorySet) With(c Category) CategorySet {
	if !c.Collectible() {
		return s
	}
	return s | 1<<c
}

// Slice lists members in ascending order.
func (s CategorySet) Slice() []Category {
	var out []Category
	for c := Universe1; c <= Universe3; c++ {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

type Layer uint8

const (
	Foreground Layer = iota
	Background
)

func (l Layer) String() string {
	if l == Background {
		return "BACKGROUND"
	}
	return "FOREGROUND"
}

// Record describes one generated entity before it is realized.
type Record struct {
	Pos      Vec2       `json:"pos"`
	Radius   float64    `json:"radius"`
	Chunk    ChunkCoord `json:"chunk"`
	Category Category   `json:"category"`
	Rotation float64    `json:"rotation"`
}

// Overlaps reports whether the two disks intersect.
func (r Record) Overlaps(o Record) bool {
	return r.Pos.Dist(o.Pos) < r.Radius+o.Radius
}
