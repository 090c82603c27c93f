package world

import (
	"context"

	"multiverse.game/internal/persistence/snapshot"
	"multiverse.game/internal/protocol"
	"multiverse.game/internal/sim/chunkgen"
	"multiverse.game/internal/sim/worldgen/placement"
)

// MoveRequest updates the observer position. The last request before a
// tick wins.
type MoveRequest struct {
	Pos placement.Vec2
}

// LevelWonRequest reports completion of level 1..3. Resp (buffered, may be
// nil) receives the outcome once the tick applying it has run.
type LevelWonRequest struct {
	Level int
	Resp  chan error
}

type ResidueRequest struct {
	Pos    placement.Vec2
	Radius float64
	Layer  placement.Layer
	Resp   chan chunkgen.EntityID
}

// ObserverJoinRequest registers a read-only observer session that receives
// one TICK message per tick on TickOut. TickOut is closed by the world when
// the session leaves.
type ObserverJoinRequest struct {
	SessionID string
	TickOut   chan []byte
	Resp      chan protocol.WorldParams
}

type SnapshotRequest struct {
	Resp chan snapshot.SnapshotV1
}

func (w *World) Move() chan<- MoveRequest                 { return w.move }
func (w *World) LevelWonCh() chan<- LevelWonRequest       { return w.levelWon }
func (w *World) Residue() chan<- ResidueRequest           { return w.residue }
func (w *World) ObserverJoin() chan<- ObserverJoinRequest { return w.observerJoin }
func (w *World) ObserverLeave() chan<- string             { return w.observerLeave }
func (w *World) SnapshotReq() chan<- SnapshotRequest      { return w.snapshotReq }

func send[T any](ctx context.Context, w *World, ch chan<- T, v T) error {
	select {
	case <-w.stop:
		return ErrClosed
	default:
	}
	select {
	case ch <- v:
		return nil
	case <-w.stop:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func recv[T any](ctx context.Context, w *World, ch <-chan T) (T, error) {
	var zero T
	select {
	case v := <-ch:
		return v, nil
	case <-w.stop:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// SubmitMove queues an observer position update.
func (w *World) SubmitMove(ctx context.Context, pos placement.Vec2) error {
	return send[MoveRequest](ctx, w, w.move, MoveRequest{Pos: pos})
}

// SubmitLevelWon queues a level completion and waits for the tick that
// applies it.
func (w *World) SubmitLevelWon(ctx context.Context, level int) error {
	resp := make(chan error, 1)
	if err := send[LevelWonRequest](ctx, w, w.levelWon, LevelWonRequest{Level: level, Resp: resp}); err != nil {
		return err
	}
	err, rerr := recv[error](ctx, w, resp)
	if rerr != nil {
		return rerr
	}
	return err
}

// SubmitResidue queues a residue drop and returns the new entity id.
func (w *World) SubmitResidue(ctx context.Context, pos placement.Vec2, radius float64, layer placement.Layer) (chunkgen.EntityID, error) {
	resp := make(chan chunkgen.EntityID, 1)
	if err := send[ResidueRequest](ctx, w, w.residue, ResidueRequest{Pos: pos, Radius: radius, Layer: layer, Resp: resp}); err != nil {
		return 0, err
	}
	return recv[chunkgen.EntityID](ctx, w, resp)
}

// JoinObserver registers an observer session and returns the world
// parameters for its WELCOME.
func (w *World) JoinObserver(ctx context.Context, sessionID string, out chan []byte) (protocol.WorldParams, error) {
	resp := make(chan protocol.WorldParams, 1)
	if err := send[ObserverJoinRequest](ctx, w, w.observerJoin, ObserverJoinRequest{SessionID: sessionID, TickOut: out, Resp: resp}); err != nil {
		return protocol.WorldParams{}, err
	}
	return recv[protocol.WorldParams](ctx, w, resp)
}

func (w *World) LeaveObserver(sessionID string) {
	select {
	case w.observerLeave <- sessionID:
	case <-w.stop:
	}
}

// RequestSnapshot asks the loop for a snapshot taken between ticks.
func (w *World) RequestSnapshot(ctx context.Context) (snapshot.SnapshotV1, error) {
	resp := make(chan snapshot.SnapshotV1, 1)
	if err := send[SnapshotRequest](ctx, w, w.snapshotReq, SnapshotRequest{Resp: resp}); err != nil {
		return snapshot.SnapshotV1{}, err
	}
	return recv[snapshot.SnapshotV1](ctx, w, resp)
}
