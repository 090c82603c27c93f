package main

import (
	"fmt"
	"io"
	"net"
	"strings"

	"multiverse.game/internal/sim/world"
)

// writeMetrics renders a minimal Prometheus exposition.
func writeMetrics(rw io.Writer, worldID string, m world.WorldMetrics, idx runtimeIndex) {
	gauge := func(name, help string, v any) {
		fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE %s gauge\n", name)
		fmt.Fprintf(rw, "%s{world=%q} %v\n", name, worldID, v)
	}
	gauge("multiverse_world_tick", "Current world tick.", m.Tick)
	gauge("multiverse_world_observers", "Connected observer sessions.", m.Observers)
	gauge("multiverse_world_entities", "Live entities across both layers.", m.Entities)
	gauge("multiverse_world_step_ms", "Last tick step duration in milliseconds.", fmt.Sprintf("%.3f", m.StepMS))

	fmt.Fprintf(rw, "# HELP multiverse_world_resident_chunks Resident chunk count.\n")
	fmt.Fprintf(rw, "# TYPE multiverse_world_resident_chunks gauge\n")
	fmt.Fprintf(rw, "multiverse_world_resident_chunks{world=%q,layer=%q} %d\n", worldID, "foreground", m.ResidentForeground)
	fmt.Fprintf(rw, "multiverse_world_resident_chunks{world=%q,layer=%q} %d\n", worldID, "background", m.ResidentBackground)

	fmt.Fprintf(rw, "# HELP multiverse_world_pending_chunks Chunks with an in-flight materialization.\n")
	fmt.Fprintf(rw, "# TYPE multiverse_world_pending_chunks gauge\n")
	fmt.Fprintf(rw, "multiverse_world_pending_chunks{world=%q,layer=%q} %d\n", worldID, "foreground", m.PendingForeground)
	fmt.Fprintf(rw, "multiverse_world_pending_chunks{world=%q,layer=%q} %d\n", worldID, "background", m.PendingBackground)

	fmt.Fprintf(rw, "# HELP multiverse_world_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE multiverse_world_queue_depth gauge\n")
	q := m.QueueDepths
	for _, kv := range []struct {
		name string
		n    int
	}{{"move", q.Move}, {"level_won", q.LevelWon}, {"residue", q.Residue}, {"observer_join", q.ObserverJoin}, {"observer_leave", q.ObserverLeave}} {
		fmt.Fprintf(rw, "multiverse_world_queue_depth{world=%q,queue=%q} %d\n", worldID, kv.name, kv.n)
	}

	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(rw, "# HELP multiverse_index_queue_depth Index writer queue depth.\n")
	fmt.Fprintf(rw, "# TYPE multiverse_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "multiverse_index_queue_depth %d\n", s.QueueDepth)
	fmt.Fprintf(rw, "# HELP multiverse_index_dropped_total Index rows dropped because the queue was full.\n")
	fmt.Fprintf(rw, "# TYPE multiverse_index_dropped_total counter\n")
	fmt.Fprintf(rw, "multiverse_index_dropped_total{kind=%q} %d\n", "tick", s.DropTickTotal)
	fmt.Fprintf(rw, "multiverse_index_dropped_total{kind=%q} %d\n", "snapshot", s.DropSnapshotTotal)
	fmt.Fprintf(rw, "multiverse_index_dropped_total{kind=%q} %d\n", "session", s.DropSessionTotal)
	fmt.Fprintf(rw, "# HELP multiverse_index_write_errors_total Failed index writes.\n")
	fmt.Fprintf(rw, "# TYPE multiverse_index_write_errors_total counter\n")
	fmt.Fprintf(rw, "multiverse_index_write_errors_total %d\n", s.WriteErrorTotal)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
