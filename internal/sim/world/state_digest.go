package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"multiverse.game/internal/sim/chunkgen"
)

// stateDigest hashes everything a replay must reproduce: clock, session,
// observer, residency of both layers and every live entity.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteI64(h, &tmp, int64(w.session.Seed()))
	h.Write([]byte{byte(w.session.Unlocked())})

	obs, ok := w.Observer()
	h.Write([]byte{boolByte(ok)})
	digestWriteF64(h, &tmp, obs.X)
	digestWriteF64(h, &tmp, obs.Y)

	for _, g := range []*chunkgen.Generator{w.fg, w.bg} {
		keys := g.Resident()
		digestWriteU64(h, &tmp, uint64(len(keys)))
		for _, k := range keys {
			digestWriteI64(h, &tmp, int64(k.X))
			digestWriteI64(h, &tmp, int64(k.Y))
			digestWriteU64(h, &tmp, uint64(len(g.Entities(k))))
		}
	}

	all := w.registry.All()
	digestWriteU64(h, &tmp, uint64(len(all)))
	for _, e := range all {
		digestWriteU64(h, &tmp, uint64(e.ID))
		h.Write([]byte{byte(e.Kind), byte(e.Layer), byte(e.Record.Category)})
		digestWriteF64(h, &tmp, e.Record.Pos.X)
		digestWriteF64(h, &tmp, e.Record.Pos.Y)
		digestWriteF64(h, &tmp, e.Record.Radius)
		digestWriteF64(h, &tmp, e.Record.Rotation)
	}

	return hex.EncodeToString(h.Sum(nil))
}

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteF64(h hashWriter, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
