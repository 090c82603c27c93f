// Command viewer ticks a local world and renders it in the terminal.
//
// Arrows or wasd move the observer, +/- zoom, 1-3 win a level, r drops a
// residue, h jumps home, b toggles the background layer, q quits.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"

	"multiverse.game/internal/sim/session"
	"multiverse.game/internal/sim/tuning"
	"multiverse.game/internal/sim/world"
)

func main() {
	var (
		seed       = flag.Int("seed", 0, "session seed (0 picks a random seed)")
		tuningPath = flag.String("tuning", "", "tuning.yaml (default: built-in defaults)")
	)
	flag.Parse()

	tune := tuning.Defaults()
	if *tuningPath != "" {
		t, err := tuning.Load(*tuningPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = t
	}
	sess := session.NewRandom()
	if *seed != 0 {
		sess = session.New(int32(*seed))
	}
	w, err := world.New(world.ConfigFromTuning("viewer", tune), sess)
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}
	defer w.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer screen.Fini()

	v := NewViewer(screen, w)
	run(v, screen, time.Second/time.Duration(w.TickRateHz()))
}

func run(v *Viewer, screen tcell.Screen, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	}()

	for {
		select {
		case ev := <-eventChan:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if !v.HandleKey(ev.Key(), ev.Rune()) {
					return
				}
			case *tcell.EventResize:
				screen.Sync()
			}
		case <-ticker.C:
			v.Tick()
			v.Draw()
		}
	}
}
