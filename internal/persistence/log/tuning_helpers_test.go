package log

import "multiverse.game/internal/sim/tuning"

func testTuning() tuning.Tuning {
	t := tuning.Defaults()
	t.Foreground.ViewDistanceInChunks = 1
	t.Background.ViewDistanceInChunks = 1
	return t
}
