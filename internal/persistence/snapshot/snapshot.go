package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
	Seed    int32  `json:"seed"`
}

// SnapshotV1 captures what cannot be regenerated from the seed. Chunk
// contents are never stored.
type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRate           int     `json:"tick_rate_hz"`
	SnapshotEveryTicks int     `json:"snapshot_every_ticks,omitempty"`
	ObserverRadius     float64 `json:"observer_radius"`

	Foreground LayerV1 `json:"foreground"`
	Background LayerV1 `json:"background"`

	Seed     int32      `json:"seed"`
	Unlocked []int      `json:"unlocked,omitempty"`
	Home     *RecordV1  `json:"home,omitempty"`
	Observer [2]float64 `json:"observer"`
	// HasObserver is false until the first observer position was set.
	HasObserver bool `json:"has_observer,omitempty"`

	Residues []ResidueV1 `json:"residues,omitempty"`

	// Informational: resident chunk keys at export time, per layer.
	ResidentForeground []ChunkKeyV1 `json:"resident_foreground,omitempty"`
	ResidentBackground []ChunkKeyV1 `json:"resident_background,omitempty"`
}

type LayerV1 struct {
	ChunkSize            float64 `json:"chunk_size"`
	ViewDistanceInChunks int     `json:"view_distance_in_chunks"`
	MinPlanetRadius      float64 `json:"min_planet_radius"`
	MaxPlanetRadius      float64 `json:"max_planet_radius"`
	MaxPlanetsPerChunk   int     `json:"max_planets_per_chunk"`
	MaxPlacementAttempts int     `json:"max_placement_attempts"`
	PlanetsPerFrame      int     `json:"planets_per_frame"`
	NoForegroundRadius   float64 `json:"no_foreground_radius"`
	HomeDistance         float64 `json:"home_distance"`
	Background           bool    `json:"background"`
}

type RecordV1 struct {
	Pos      [2]float64 `json:"pos"`
	Radius   float64    `json:"radius"`
	Chunk    ChunkKeyV1 `json:"chunk"`
	Category int        `json:"category"`
	Rotation float64    `json:"rotation"`
}

type ResidueV1 struct {
	Pos    [2]float64 `json:"pos"`
	Radius float64    `json:"radius"`
	Layer  int        `json:"layer"`
	Chunk  ChunkKeyV1 `json:"chunk"`
}

type ChunkKeyV1 struct {
	CX int `json:"cx"`
	CY int `json:"cy"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}
