package tuning

import (
	"os"
	"path/filepath"
	"testing"

	"multiverse.game/internal/sim/worldgen/placement"
)

func TestDefaultsValidate(t *testing.T) {
	d := Defaults()
	if err := d.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if d.Foreground.Config().Layer != placement.Foreground || d.Background.Config().Layer != placement.Background {
		t.Fatalf("layer flags wrong")
	}
}

func TestLoad_RepoFile(t *testing.T) {
	tu, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	fg := tu.Foreground.Config()
	if fg.ChunkSize != 100 || fg.MaxPlanetsPerChunk != 3 || fg.PlanetsPerFrame != 2 {
		t.Fatalf("foreground=%+v", fg)
	}
	if tu.Background.Config().Layer != placement.Background {
		t.Fatalf("background layer not set")
	}
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := "tick_rate_hz: 10\nforeground:\n  chunk_size: 50\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	tu, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu.TickRateHz != 10 || tu.Foreground.ChunkSize != 50 {
		t.Fatalf("overrides lost: %+v", tu)
	}
	if tu.Foreground.MaxPlanetRadius != Defaults().Foreground.MaxPlanetRadius {
		t.Fatalf("default max radius lost")
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := "foreground:\n  planets_per_frame: 0\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for planets_per_frame=0")
	}
	if err := os.WriteFile(path, []byte("tick_rate_hz: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected yaml error")
	}
}
