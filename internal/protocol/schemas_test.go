package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"multiverse.game/internal/protocol"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// asJSON round-trips v through encoding/json so the validator sees the
// exact wire shape.
func asJSON(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func raw(t *testing.T, s string) any {
	t.Helper()
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		t.Fatalf("bad sample: %v", err)
	}
	return out
}

func TestSchemas_ValidateMessages(t *testing.T) {
	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	validate(compile(t, "hello.schema.json"), asJSON(t, protocol.HelloMsg{
		Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "viewer", Pilot: true, MaxQueue: 8,
	}))

	layer := protocol.LayerParams{ChunkSize: 100, ViewDistanceInChunks: 2, MinPlanetRadius: 1, MaxPlanetRadius: 5, MaxPlanetsPerChunk: 3, PlanetsPerFrame: 2}
	validate(compile(t, "welcome.schema.json"), asJSON(t, protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "S1",
		WorldParams: protocol.WorldParams{
			TickRateHz: 30, Seed: -42, ObserverRadius: 1,
			Foreground: layer, Background: layer,
			Home: &protocol.Planet{Pos: [2]float64{6, 0}, Radius: 5, Chunk: [2]int{0, 0}, Category: "HOME"},
		},
	}))

	validate(compile(t, "tick.schema.json"), asJSON(t, protocol.TickMsg{
		Type:            protocol.TypeTick,
		ProtocolVersion: protocol.Version,
		Tick:            7,
		Observer:        [2]float64{-3.5, 120},
		ObserverChunk:   [2]int{-1, 1},
		Unlocked:        []string{"UNIVERSE_2"},
		Events: []protocol.EntityEvent{
			{Type: "SPAWN", ID: 3, Kind: "PLANET", Layer: "FOREGROUND", Chunk: [2]int{-1, 1}, Pos: [2]float64{-50, 150}, Radius: 2, Category: "UNIVERSE_1"},
			{Type: "DESTROY", ID: 1, Kind: "PLANET", Layer: "BACKGROUND", Chunk: [2]int{4, 4}},
		},
		Contacts: []protocol.Planet{{ID: 3, Pos: [2]float64{-50, 150}, Radius: 2, Chunk: [2]int{-1, 1}, Category: "UNIVERSE_1"}},
		Digest:   "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
	}))

	validate(compile(t, "move.schema.json"), asJSON(t, protocol.MoveMsg{Type: protocol.TypeMove, ProtocolVersion: protocol.Version, Pos: [2]float64{1, -2}}))
	validate(compile(t, "level_won.schema.json"), asJSON(t, protocol.LevelWonMsg{Type: protocol.TypeLevelWon, ProtocolVersion: protocol.Version, Level: 2}))
	validate(compile(t, "residue.schema.json"), asJSON(t, protocol.ResidueMsg{Type: protocol.TypeResidue, ProtocolVersion: protocol.Version, Pos: [2]float64{1, 1}, Radius: 0.5}))
	validate(compile(t, "error.schema.json"), asJSON(t, protocol.NewError(protocol.ErrRateLimit, "too many MOVE messages")))
}

func TestSchemas_RejectBadSamples(t *testing.T) {
	cases := []struct {
		schema string
		doc    string
	}{
		{"hello.schema.json", `{"type":"HELLO","protocol_version":"1.0"}`},
		{"move.schema.json", `{"type":"MOVE","protocol_version":"1.0","pos":[1]}`},
		{"level_won.schema.json", `{"type":"LEVEL_WON","protocol_version":"1.0","level":4}`},
		{"residue.schema.json", `{"type":"RESIDUE","protocol_version":"1.0","pos":[0,0],"radius":0}`},
		{"tick.schema.json", `{"type":"TICK","protocol_version":"1.0","tick":1,"observer":[0,0],"observer_chunk":[0,0],"unlocked":["NEUTRAL"],"digest":"x"}`},
		{"error.schema.json", `{"type":"ERROR","protocol_version":"1.0","code":"oops","message":""}`},
	}
	for _, c := range cases {
		if err := compile(t, c.schema).Validate(raw(t, c.doc)); err == nil {
			t.Fatalf("%s accepted %s", c.schema, c.doc)
		}
	}
}
