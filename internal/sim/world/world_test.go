package world

import (
	"encoding/json"
	"reflect"
	"testing"

	"multiverse.game/internal/protocol"
	"multiverse.game/internal/sim/chunkgen"
	"multiverse.game/internal/sim/entity"
	"multiverse.game/internal/sim/worldgen/placement"
)

func path() []Input {
	p := func(x, y float64) *placement.Vec2 { return &placement.Vec2{X: x, Y: y} }
	return []Input{
		{},
		{Observer: p(30, 40)},
		{},
		{Observer: p(250, -80), LevelsWon: []int{2}},
		{Residues: []ResidueInput{{Pos: placement.Vec2{X: 251, Y: -79}, Radius: 0.5}}},
		{Observer: p(-420, 999)},
		{},
		{Observer: p(0, 0), LevelsWon: []int{1, 3}},
		{},
	}
}

func TestWorld_DeterministicDigests(t *testing.T) {
	run := func(seed int32) []string {
		w := newTestWorld(t, seed)
		var out []string
		for _, in := range path() {
			_, d := w.StepInput(in)
			out = append(out, d)
		}
		return out
	}
	a := run(42)
	b := run(42)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed diverged:\n%v\n%v", a, b)
	}
	c := run(43)
	if reflect.DeepEqual(a, c) {
		t.Fatalf("different seeds produced identical digests")
	}
	for _, d := range a {
		if len(d) != 64 {
			t.Fatalf("digest %q", d)
		}
	}
}

func TestWorld_StepOnceReturnsTickBeforeStep(t *testing.T) {
	w := newTestWorld(t, 1)
	for want := uint64(0); want < 3; want++ {
		tick, _ := w.StepOnce(nil)
		if tick != want {
			t.Fatalf("tick=%d want %d", tick, want)
		}
	}
	if w.CurrentTick() != 3 {
		t.Fatalf("current tick %d", w.CurrentTick())
	}
}

func TestWorld_ResidencyFollowsObserver(t *testing.T) {
	w := newTestWorld(t, 7)
	settle(t, w, nil)
	if got := w.fg.ObserverChunk(); got != (placement.ChunkCoord{}) {
		t.Fatalf("absent observer should mean origin, got %s", got)
	}
	pos := placement.Vec2{X: 1234, Y: -567}
	settle(t, w, &pos)
	center := placement.ChunkOf(pos, w.cfg.Foreground.ChunkSize)
	for _, g := range []*chunkgen.Generator{w.fg, w.bg} {
		res := g.Resident()
		if len(res) != 9 {
			t.Fatalf("%s resident=%v", g.Layer(), res)
		}
		for _, c := range res {
			if c.Chebyshev(center) > 1 {
				t.Fatalf("%s kept %s outside window", g.Layer(), c)
			}
		}
	}
	// Every live planet belongs to a resident chunk of its own layer.
	for _, e := range w.registry.All() {
		if e.Kind != entity.KindPlanet {
			continue
		}
		g := w.fg
		if e.Layer == placement.Background {
			g = w.bg
		}
		if !g.IsResident(e.Record.Chunk) {
			t.Fatalf("entity %d lives in non-resident chunk %s", e.ID, e.Record.Chunk)
		}
	}
}

func TestWorld_HomeSurvivesEviction(t *testing.T) {
	w := newTestWorld(t, 5)
	home, ok := w.session.Home()
	if !ok {
		t.Fatalf("home not generated")
	}
	far := placement.Vec2{X: 1e6, Y: 1e6}
	settle(t, w, &far)
	e, ok := w.registry.Get(w.HomeID())
	if !ok || e.Kind != entity.KindHome || e.Record != home {
		t.Fatalf("home entity %+v ok=%v", e, ok)
	}
	if h2 := w.session.EnsureHome(w.cfg.Foreground.Params); h2 != home {
		t.Fatalf("home regenerated")
	}
}

func TestWorld_UnlockAppliesOnRegeneration(t *testing.T) {
	w := newTestWorld(t, 42)
	pos := placement.Vec2{X: 550, Y: 550}
	settle(t, w, &pos)

	w.StepInput(Input{LevelsWon: []int{1, 2, 3}})
	if w.session.Unlocked() != placement.SetOf(placement.Universe1, placement.Universe2, placement.Universe3) {
		t.Fatalf("unlocked=%v", w.session.Unlocked().Slice())
	}

	far := placement.Vec2{X: -1e5}
	settle(t, w, &far)
	settle(t, w, &pos)
	n := 0
	for _, e := range w.registry.All() {
		if e.Kind == entity.KindPlanet && e.Layer == placement.Foreground {
			n++
			if e.Record.Category != placement.Neutral {
				t.Fatalf("regenerated planet %d kept %s", e.ID, e.Record.Category)
			}
		}
	}
	if n == 0 {
		t.Fatalf("no foreground planets around %+v", pos)
	}
}

func TestWorld_ResidueOwnedByChunk(t *testing.T) {
	w := newTestWorld(t, 3)
	settle(t, w, nil)
	log := &memTickLogger{}
	w.SetTickLogger(log)

	rpos := placement.Vec2{X: 42, Y: -17}
	w.StepInput(Input{Residues: []ResidueInput{{Pos: rpos, Radius: 0.25}}})
	entry := log.entries[len(log.entries)-1]
	if len(entry.Residues) != 1 {
		t.Fatalf("residue not logged: %+v", entry)
	}
	id := entry.Residues[0].ID
	e, ok := w.registry.Get(id)
	if !ok || e.Kind != entity.KindResidue {
		t.Fatalf("residue entity %+v ok=%v", e, ok)
	}
	c := placement.ChunkOf(rpos, w.cfg.Foreground.ChunkSize)
	found := false
	for _, owned := range w.fg.Entities(c) {
		found = found || owned == id
	}
	if !found {
		t.Fatalf("chunk %s does not own residue %d", c, id)
	}

	far := placement.Vec2{X: 9e4, Y: 9e4}
	w.StepOnce(&far)
	if _, ok := w.registry.Get(id); ok {
		t.Fatalf("residue survived eviction")
	}
}

func TestWorld_TickLogAndContacts(t *testing.T) {
	w := newTestWorld(t, 11)
	log := &memTickLogger{}
	w.SetTickLogger(log)
	home, _ := w.session.Home()
	tick, digest := w.StepOnce(&home.Pos)

	if len(log.entries) != 1 {
		t.Fatalf("entries=%d", len(log.entries))
	}
	e := log.entries[0]
	if e.Tick != tick || e.Digest != digest || e.Move == nil || *e.Move != home.Pos.ToArray() {
		t.Fatalf("entry %+v", e)
	}
	if len(e.Foreground.Loaded) != 9 || len(e.Background.Loaded) != 9 {
		t.Fatalf("loaded fg=%d bg=%d", len(e.Foreground.Loaded), len(e.Background.Loaded))
	}
	found := false
	for _, id := range e.Contacts {
		found = found || id == w.HomeID()
	}
	if !found {
		t.Fatalf("observer on home planet but contacts=%v", e.Contacts)
	}
	if _, err := json.Marshal(e); err != nil {
		t.Fatalf("marshal entry: %v", err)
	}
}

func TestWorld_ObserverStream(t *testing.T) {
	w := newTestWorld(t, 9)
	settle(t, w, nil)

	out := make(chan []byte, 4)
	resp := make(chan protocol.WorldParams, 1)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "S1", TickOut: out, Resp: resp})
	params := <-resp
	if params.Seed != 9 || params.Home == nil || params.Foreground.ChunkSize != 100 {
		t.Fatalf("params=%+v", params)
	}

	w.StepOnce(nil)
	var full protocol.TickMsg
	if err := json.Unmarshal(<-out, &full); err != nil {
		t.Fatal(err)
	}
	if !full.Resync || len(full.Events) != w.registry.Len() {
		t.Fatalf("first message resync=%v events=%d live=%d", full.Resync, len(full.Events), w.registry.Len())
	}

	far := placement.Vec2{X: 5000, Y: 5000}
	w.StepOnce(&far)
	var delta protocol.TickMsg
	if err := json.Unmarshal(<-out, &delta); err != nil {
		t.Fatal(err)
	}
	if delta.Resync {
		t.Fatalf("second message should be a delta")
	}
	destroys, spawns := 0, 0
	for _, ev := range delta.Events {
		switch ev.Type {
		case "DESTROY":
			destroys++
		case "SPAWN":
			spawns++
		}
	}
	if destroys == 0 || spawns == 0 {
		t.Fatalf("moving far should destroy and spawn: %d/%d", destroys, spawns)
	}
	if delta.ObserverChunk != [2]int{50, 50} || delta.Unlocked == nil {
		t.Fatalf("delta header %+v", delta)
	}

	w.handleObserverLeave("S1")
	if _, ok := <-out; ok {
		// Drain remaining messages until the channel closes.
		for range out {
		}
	}
}

func TestWorld_ObserverResyncAfterDrop(t *testing.T) {
	w := newTestWorld(t, 9)
	out := make(chan []byte, 1)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "S", TickOut: out})
	w.StepOnce(nil)
	w.StepOnce(nil) // overflows the queue
	w.StepOnce(nil)
	var m protocol.TickMsg
	if err := json.Unmarshal(<-out, &m); err != nil {
		t.Fatal(err)
	}
	if !m.Resync {
		t.Fatalf("message after a drop must resync")
	}
}

func TestWorld_CloseTearsDown(t *testing.T) {
	w := newTestWorld(t, 2)
	settle(t, w, nil)
	out := make(chan []byte, 8)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "S", TickOut: out})
	w.Close()
	if w.registry.Len() != 0 {
		t.Fatalf("%d entities after Close", w.registry.Len())
	}
	for range out {
	}
	w.Close()
}

func TestMetrics_PublishedAfterStep(t *testing.T) {
	w := newTestWorld(t, 42)
	defer w.Close()
	if m := w.Metrics(); m.Tick != 0 || m.Entities != 0 {
		t.Fatalf("metrics before first step: %+v", m)
	}
	settle(t, w, &placement.Vec2{X: 10, Y: 10})

	m := w.Metrics()
	if m.Tick != w.CurrentTick() {
		t.Fatalf("metrics tick %d, world tick %d", m.Tick, w.CurrentTick())
	}
	if m.ResidentForeground != 9 || m.ResidentBackground != 9 {
		t.Fatalf("resident = %d/%d, want 9/9", m.ResidentForeground, m.ResidentBackground)
	}
	if m.Entities != w.Registry().Len() || m.PendingForeground != 0 {
		t.Fatalf("metrics = %+v", m)
	}
}
