package mathx

import "math"

// Golden64 is the SplitMix64 increment (2^64 / phi).
const Golden64 uint64 = 0x9e3779b97f4a7c15

// Spatial hash primes used to mix chunk coordinates into a seed.
const (
	chunkPrimeX int32 = 73856093
	chunkPrimeY int32 = 19349663
)

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

// Chunk indices are folded to 32 bits by ChunkSeed, so world-space
// coordinates map into this range.
const (
	MinChunkIndex = math.MinInt32
	MaxChunkIndex = math.MaxInt32
)

// FloorDivF is floor(a/b) for world-space coordinates, clamped to
// [MinChunkIndex, MaxChunkIndex]. NaN maps to 0. b > 0.
func FloorDivF(a, b float64) int {
	q := math.Floor(a / b)
	switch {
	case math.IsNaN(q):
		return 0
	case q < MinChunkIndex:
		return MinChunkIndex
	case q > MaxChunkIndex:
		return MaxChunkIndex
	}
	return int(q)
}

// InChunkRange reports whether floor(a/b) is finite and fits
// [MinChunkIndex, MaxChunkIndex] without clamping.
func InChunkRange(a, b float64) bool {
	q := math.Floor(a / b)
	return !math.IsNaN(q) && q >= MinChunkIndex && q <= MaxChunkIndex
}

func Mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Mix64 is the SplitMix64 output function applied to z+Golden64.
func Mix64(z uint64) uint64 {
	z += Golden64
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func Hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9)
	return Mix64(v)
}

// ChunkSeed mixes a session seed with a chunk coordinate and an optional
// layer salt. All arithmetic wraps at 32 bits.
func ChunkSeed(seed int32, cx, cy int, salt int32) int32 {
	return seed ^ (int32(cx) * chunkPrimeX) ^ (int32(cy) * chunkPrimeY) ^ salt
}
