package world

import "time"

type QueueDepths struct {
	Move          int `json:"move"`
	LevelWon      int `json:"level_won"`
	Residue       int `json:"residue"`
	ObserverJoin  int `json:"observer_join"`
	ObserverLeave int `json:"observer_leave"`
}

type WorldMetrics struct {
	Tick               uint64      `json:"tick"`
	Observers          int         `json:"observers"`
	Entities           int         `json:"entities"`
	ResidentForeground int         `json:"resident_foreground"`
	ResidentBackground int         `json:"resident_background"`
	PendingForeground  int         `json:"pending_foreground"`
	PendingBackground  int         `json:"pending_background"`
	StepMS             float64     `json:"step_ms"`
	QueueDepths        QueueDepths `json:"queue_depths"`
}

// publishMetrics runs on the loop goroutine after each step.
func (w *World) publishMetrics(tick uint64, took time.Duration) {
	m := WorldMetrics{
		Tick:               tick,
		Observers:          len(w.observers),
		Entities:           w.registry.Len(),
		ResidentForeground: len(w.fg.Resident()),
		ResidentBackground: len(w.bg.Resident()),
		PendingForeground:  w.fg.Pending(),
		PendingBackground:  w.bg.Pending(),
		StepMS:             float64(took.Microseconds()) / 1000,
	}
	w.metrics.Store(&m)
}

// Metrics is safe to call from any goroutine. Values lag by at most one tick.
func (w *World) Metrics() WorldMetrics {
	var m WorldMetrics
	if p := w.metrics.Load(); p != nil {
		m = *p
	}
	m.QueueDepths = QueueDepths{
		Move:          len(w.move),
		LevelWon:      len(w.levelWon),
		Residue:       len(w.residue),
		ObserverJoin:  len(w.observerJoin),
		ObserverLeave: len(w.observerLeave),
	}
	return m
}
