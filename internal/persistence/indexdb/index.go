package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"multiverse.game/internal/persistence/snapshot"
	"multiverse.game/internal/sim/world"
	"multiverse.game/internal/sim/worldgen/placement"
)

type Dialect int

const (
	DialectSQLite Dialect = iota + 1
	DialectPostgres
)

func (d Dialect) String() string {
	switch d {
	case DialectSQLite:
		return "sqlite"
	case DialectPostgres:
		return "postgres"
	default:
		return "unknown"
	}
}

// rebind rewrites ? placeholders to $n for postgres.
func (d Dialect) rebind(q string) string {
	if d != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Index is a secondary SQL read model of the tick log. Writes are queued and
// applied by a single goroutine in batched transactions; the JSONL logs stay
// the source of truth, so a full queue drops rows instead of stalling the
// world loop.
type Index struct {
	db      *sql.DB
	dialect Dialect

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick     atomic.Uint64
	dropSnapshot atomic.Uint64
	dropSession  atomic.Uint64
	writeErrors  atomic.Uint64
}

type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropTickTotal     uint64
	DropSnapshotTotal uint64
	DropSessionTotal  uint64
	WriteErrorTotal   uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqSnapshot
	reqSession
	reqFlush
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	snapshot snapshotRow
	session  sessionRow
	done     chan struct{}
}

type snapshotRow struct {
	Tick     uint64
	Path     string
	WorldID  string
	Seed     int32
	Unlocked int
	Residues int
}

type sessionRow struct {
	WorldID     string
	Seed        int32
	StartedTick uint64
	StartedAt   string
}

func newIndex(db *sql.DB, d Dialect, queue int) (*Index, error) {
	if err := initSchema(db, d); err != nil {
		return nil, err
	}
	s := &Index{db: db, dialect: d, ch: make(chan req, queue)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initSchema(db *sql.DB, d Dialect) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			world_id TEXT NOT NULL,
			started_tick BIGINT NOT NULL,
			seed BIGINT NOT NULL,
			started_at TEXT NOT NULL,
			PRIMARY KEY (world_id, started_tick)
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick BIGINT PRIMARY KEY,
			digest TEXT NOT NULL,
			observer_x DOUBLE PRECISION NOT NULL,
			observer_y DOUBLE PRECISION NOT NULL,
			levels_won INTEGER NOT NULL,
			residues INTEGER NOT NULL,
			contacts INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chunk_events (
			tick BIGINT NOT NULL,
			seq INTEGER NOT NULL,
			layer TEXT NOT NULL,
			cx INTEGER NOT NULL,
			cy INTEGER NOT NULL,
			event TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_events_coord ON chunk_events(layer, cx, cy, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick BIGINT PRIMARY KEY,
			path TEXT NOT NULL,
			world_id TEXT NOT NULL,
			seed BIGINT NOT NULL,
			unlocked INTEGER NOT NULL,
			residues INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("%s schema: %w", d, err)
		}
	}
	if _, err := db.Exec(d.rebind(`INSERT INTO meta(key,value) VALUES(?,?) ON CONFLICT (key) DO UPDATE SET value=excluded.value`), "schema_version", "1"); err != nil {
		return fmt.Errorf("%s schema: %w", d, err)
	}
	return nil
}

func (s *Index) Dialect() Dialect { return s.dialect }

func (s *Index) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *Index) Stats() Stats {
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		DropSessionTotal:  s.dropSession.Load(),
		WriteErrorTotal:   s.writeErrors.Load(),
	}
}

func (s *Index) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *Index) WriteTick(entry world.TickLogEntry) error {
	s.enqueue(req{kind: reqTick, tick: entry}, &s.dropTick)
	return nil
}

func (s *Index) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	s.enqueue(req{kind: reqSnapshot, snapshot: snapshotRow{
		Tick:     snap.Header.Tick,
		Path:     path,
		WorldID:  snap.Header.WorldID,
		Seed:     snap.Seed,
		Unlocked: len(snap.Unlocked),
		Residues: len(snap.Residues),
	}}, &s.dropSnapshot)
}

func (s *Index) RecordSession(worldID string, seed int32, startedTick uint64) {
	s.enqueue(req{kind: reqSession, session: sessionRow{
		WorldID:     worldID,
		Seed:        seed,
		StartedTick: startedTick,
		StartedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}}, &s.dropSession)
}

// Flush blocks until every write queued before it is committed.
func (s *Index) Flush(ctx context.Context) error {
	if s.closed.Load() {
		return fmt.Errorf("index closed")
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Index) loop() {
	ctx := context.Background()
	d := s.dialect

	insertTick, _ := s.db.Prepare(d.rebind(`INSERT INTO ticks(tick,digest,observer_x,observer_y,levels_won,residues,contacts,raw_json) VALUES(?,?,?,?,?,?,?,?)
		ON CONFLICT (tick) DO UPDATE SET digest=excluded.digest, observer_x=excluded.observer_x, observer_y=excluded.observer_y,
		levels_won=excluded.levels_won, residues=excluded.residues, contacts=excluded.contacts, raw_json=excluded.raw_json`))
	insertChunk, _ := s.db.Prepare(d.rebind(`INSERT INTO chunk_events(tick,seq,layer,cx,cy,event) VALUES(?,?,?,?,?,?)
		ON CONFLICT (tick,seq) DO UPDATE SET layer=excluded.layer, cx=excluded.cx, cy=excluded.cy, event=excluded.event`))
	insertSnapshot, _ := s.db.Prepare(d.rebind(`INSERT INTO snapshots(tick,path,world_id,seed,unlocked,residues) VALUES(?,?,?,?,?,?)
		ON CONFLICT (tick) DO UPDATE SET path=excluded.path, world_id=excluded.world_id, seed=excluded.seed, unlocked=excluded.unlocked, residues=excluded.residues`))
	insertSession, _ := s.db.Prepare(d.rebind(`INSERT INTO sessions(world_id,started_tick,seed,started_at) VALUES(?,?,?,?)
		ON CONFLICT (world_id,started_tick) DO UPDATE SET seed=excluded.seed, started_at=excluded.started_at`))
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertChunk, insertSnapshot, insertSession} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.writeErrors.Add(1)
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErrors.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.writeErrors.Add(1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			t := r.tick
			raw, _ := json.Marshal(t)
			if !exec(insertTick, int64(t.Tick), t.Digest, t.Observer[0], t.Observer[1],
				len(t.LevelsWon), len(t.Residues), len(t.Contacts), string(raw)) {
				continue
			}
			seq := 0
			for _, ev := range chunkEventsOf(t) {
				if !exec(insertChunk, int64(t.Tick), seq, ev.Layer, ev.Chunk.X, ev.Chunk.Y, ev.Event) {
					break
				}
				seq++
			}

		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, int64(sn.Tick), sn.Path, sn.WorldID, int64(sn.Seed), sn.Unlocked, sn.Residues)

		case reqSession:
			se := r.session
			exec(insertSession, se.WorldID, int64(se.StartedTick), int64(se.Seed), se.StartedAt)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}

type ChunkEvent struct {
	Tick  uint64
	Layer string
	Chunk placement.ChunkCoord
	Event string
}

const (
	EventLoad  = "LOAD"
	EventEvict = "EVICT"
)

func chunkEventsOf(t world.TickLogEntry) []ChunkEvent {
	var out []ChunkEvent
	add := func(layer placement.Layer, lt world.LayerTick) {
		for _, c := range lt.Evicted {
			out = append(out, ChunkEvent{Tick: t.Tick, Layer: layer.String(), Chunk: c, Event: EventEvict})
		}
		for _, c := range lt.Loaded {
			out = append(out, ChunkEvent{Tick: t.Tick, Layer: layer.String(), Chunk: c, Event: EventLoad})
		}
	}
	add(placement.Foreground, t.Foreground)
	add(placement.Background, t.Background)
	return out
}

// ChunkHistory lists load/evict events of one chunk in tick order.
func (s *Index) ChunkHistory(ctx context.Context, layer placement.Layer, c placement.ChunkCoord) ([]ChunkEvent, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		`SELECT tick, event FROM chunk_events WHERE layer=? AND cx=? AND cy=? ORDER BY tick, seq`),
		layer.String(), c.X, c.Y)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChunkEvent
	for rows.Next() {
		ev := ChunkEvent{Layer: layer.String(), Chunk: c}
		var tick int64
		if err := rows.Scan(&tick, &ev.Event); err != nil {
			return nil, err
		}
		ev.Tick = uint64(tick)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// TickDigest returns the digest stored for tick.
func (s *Index) TickDigest(ctx context.Context, tick uint64) (string, bool, error) {
	var digest string
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT digest FROM ticks WHERE tick=?`), int64(tick)).Scan(&digest)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return digest, true, nil
}

// Snapshots lists recorded snapshot paths by tick.
func (s *Index) Snapshots(ctx context.Context) (map[uint64]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tick, path FROM snapshots ORDER BY tick`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[uint64]string{}
	for rows.Next() {
		var tick int64
		var path string
		if err := rows.Scan(&tick, &path); err != nil {
			return nil, err
		}
		out[uint64(tick)] = path
	}
	return out, rows.Err()
}
