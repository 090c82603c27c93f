// Package world runs the hub simulation: one session, a gameplay layer and a
// decorative layer of streamed chunks, and the entities realized from them.
package world

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"multiverse.game/internal/persistence/snapshot"
	"multiverse.game/internal/protocol"
	"multiverse.game/internal/sim/chunkgen"
	"multiverse.game/internal/sim/entity"
	"multiverse.game/internal/sim/session"
	"multiverse.game/internal/sim/tuning"
	"multiverse.game/internal/sim/worldgen/placement"
)

var ErrClosed = errors.New("world closed")

type WorldConfig struct {
	ID                 string
	TickRateHz         int
	SnapshotEveryTicks int
	// ObserverRadius is the radius of the observer disk for contact queries.
	ObserverRadius float64

	Foreground chunkgen.Config
	Background chunkgen.Config
}

func ConfigFromTuning(id string, t tuning.Tuning) WorldConfig {
	return WorldConfig{
		ID:                 id,
		TickRateHz:         t.TickRateHz,
		SnapshotEveryTicks: t.SnapshotEveryTicks,
		ObserverRadius:     t.ObserverRadius,
		Foreground:         t.Foreground.Config(),
		Background:         t.Background.Config(),
	}
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "hub"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 30
	}
	if c.ObserverRadius < 0 {
		c.ObserverRadius = 0
	}
	c.Foreground.Layer = placement.Foreground
	c.Background.Layer = placement.Background
}

// World is a single-threaded simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg WorldConfig
	log *log.Logger

	tick atomic.Uint64

	session  *session.State
	registry *entity.Registry
	fg       *chunkgen.Generator
	bg       *chunkgen.Generator
	homeID   chunkgen.EntityID

	// nil until the first MOVE; generators treat that as the origin.
	observer *placement.Vec2

	observers map[string]*observerClient
	// params is republished whenever the home planet changes so HTTP
	// handlers can read it off the loop.
	params  atomic.Pointer[protocol.WorldParams]
	metrics atomic.Pointer[WorldMetrics]

	move          chan MoveRequest
	levelWon      chan LevelWonRequest
	residue       chan ResidueRequest
	observerJoin  chan ObserverJoinRequest
	observerLeave chan string
	snapshotReq   chan SnapshotRequest
	stop          chan struct{}
	stopOnce      sync.Once
	closed        bool

	// Optional logger (may be nil). Implemented in internal/persistence/*.
	tickLogger TickLogger

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

func New(cfg WorldConfig, sess *session.State) (*World, error) {
	cfg.applyDefaults()
	if sess == nil {
		return nil, fmt.Errorf("world %s: nil session", cfg.ID)
	}
	w := &World{
		cfg:           cfg,
		session:       sess,
		observers:     map[string]*observerClient{},
		move:          make(chan MoveRequest, 256),
		levelWon:      make(chan LevelWonRequest, 16),
		residue:       make(chan ResidueRequest, 256),
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerLeave: make(chan string, 16),
		snapshotReq:   make(chan SnapshotRequest, 4),
		stop:          make(chan struct{}),
	}
	if err := w.buildLayers(); err != nil {
		return nil, err
	}
	return w, nil
}

// buildLayers creates a fresh registry and both generators for the current
// session and spawns its home planet.
func (w *World) buildLayers() error {
	reg := entity.NewRegistry()
	fg, err := chunkgen.New(w.cfg.Foreground, w.session, reg)
	if err != nil {
		return fmt.Errorf("world %s: %w", w.cfg.ID, err)
	}
	bg, err := chunkgen.New(w.cfg.Background, w.session, reg)
	if err != nil {
		return fmt.Errorf("world %s: %w", w.cfg.ID, err)
	}
	w.registry = reg
	w.fg = fg
	w.bg = bg

	home := w.session.EnsureHome(w.cfg.Foreground.Params)
	w.homeID = reg.Spawn(chunkgen.SpawnSpec{Record: home, Layer: placement.Foreground, Label: "home"})
	p := w.worldParams()
	w.params.Store(&p)
	return nil
}

func (w *World) SetLogger(l *log.Logger) { w.log = l }

func (w *World) logf(format string, args ...any) {
	if w.log != nil {
		w.log.Printf(format, args...)
	}
}

func (w *World) SetTickLogger(l TickLogger) { w.tickLogger = l }

func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) Config() WorldConfig { return w.cfg }

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.TickRateHz
}

// CurrentTick is safe to call from any goroutine.
func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) Session() *session.State { return w.session }

func (w *World) Registry() *entity.Registry { return w.registry }

func (w *World) Foreground() *chunkgen.Generator { return w.fg }

func (w *World) Background() *chunkgen.Generator { return w.bg }

func (w *World) HomeID() chunkgen.EntityID { return w.homeID }

// Observer returns the current observer position and whether one was set.
func (w *World) Observer() (placement.Vec2, bool) {
	if w.observer == nil {
		return placement.Vec2{}, false
	}
	return *w.observer, true
}

// Close tears down both layers and disconnects observers. It must be called
// after Run has returned.
func (w *World) Close() {
	if w.closed {
		return
	}
	w.Stop()
	w.fg.Close()
	w.bg.Close()
	w.registry.Destroy(w.homeID)
	for _, id := range sortedObserverIDs(w.observers) {
		w.handleObserverLeave(id)
	}
	w.closed = true
	w.logf("world %s closed at tick %d", w.cfg.ID, w.tick.Load())
}
