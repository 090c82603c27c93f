package chunkgen

import "multiverse.game/internal/sim/worldgen/placement"

// materializeTask realizes a chunk's records a few at a time. It is resumed
// once per tick by the generator until Step reports no more work.
type materializeTask struct {
	chunk   *residentChunk
	records []placement.Record
	next    int
	perStep int
	layer   placement.Layer
	spawner Spawner

	cancelled bool
}

func newMaterializeTask(ch *residentChunk, records []placement.Record, perStep int, layer placement.Layer, sp Spawner) *materializeTask {
	if perStep < 1 {
		perStep = 1
	}
	return &materializeTask{
		chunk:   ch,
		records: records,
		perStep: perStep,
		layer:   layer,
		spawner: sp,
	}
}

// Cancel stops the task. A cancelled task never touches its chunk again.
func (t *materializeTask) Cancel() { t.cancelled = true }

func (t *materializeTask) Done() bool {
	return t.cancelled || t.next >= len(t.records)
}

func (t *materializeTask) Remaining() int {
	if t.cancelled {
		return 0
	}
	return len(t.records) - t.next
}

// Step realizes up to perStep records and reports whether work remains.
func (t *materializeTask) Step() (realized int, more bool) {
	for realized < t.perStep && t.next < len(t.records) {
		if t.cancelled {
			return realized, false
		}
		rec := t.records[t.next]
		id := t.spawner.Spawn(SpawnSpec{Record: rec, Layer: t.layer, Label: rec.Chunk.String()})
		t.chunk.entities[id] = struct{}{}
		t.next++
		realized++
	}
	return realized, !t.Done()
}
