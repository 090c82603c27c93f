// Command chunkdump inspects generated chunks, snapshots and tick logs
// offline.
//
//	chunkdump chunk -seed 42 -x 0 -y 0 [-layer background] [-unlocked 1,2]
//	chunkdump snapshot -path data/worlds/hub/snapshots/3000.snap.zst
//	chunkdump replay -events data/worlds/hub/events -seed 42 [-snapshot path]
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	persistlog "multiverse.game/internal/persistence/log"
	"multiverse.game/internal/persistence/snapshot"
	"multiverse.game/internal/sim/session"
	"multiverse.game/internal/sim/tuning"
	"multiverse.game/internal/sim/world"
	"multiverse.game/internal/sim/worldgen/placement"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "chunkdump:", err)
		var ue usageError
		if errors.As(err, &ue) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

type usageError string

func (e usageError) Error() string { return string(e) }

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return usageError("usage: chunkdump chunk|snapshot|replay [flags]")
	}
	switch args[0] {
	case "chunk":
		return runChunk(args[1:], out)
	case "snapshot":
		return runSnapshot(args[1:], out)
	case "replay":
		return runReplay(args[1:], out)
	default:
		return usageError("unknown subcommand " + args[0])
	}
}

func loadTuning(path string) (tuning.Tuning, error) {
	if path == "" {
		return tuning.Defaults(), nil
	}
	return tuning.Load(path)
}

func parseUnlocked(s string) (placement.CategorySet, error) {
	var set placement.CategorySet
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		lvl, err := strconv.Atoi(p)
		if err != nil || lvl < 1 || lvl > session.LevelCount {
			return 0, usageError(fmt.Sprintf("bad level %q in -unlocked", p))
		}
		set = set.With(placement.Category(lvl - 1))
	}
	return set, nil
}

func runChunk(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("chunk", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		seed       = fs.Int("seed", 0, "session seed")
		cx         = fs.Int("x", 0, "chunk x")
		cy         = fs.Int("y", 0, "chunk y")
		layerName  = fs.String("layer", "foreground", "foreground|background")
		unlocked   = fs.String("unlocked", "", "comma separated won levels (1..3)")
		tuningPath = fs.String("tuning", "", "tuning.yaml (default: built-in defaults)")
		asJSON     = fs.Bool("json", false, "print records as JSON lines")
	)
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if int64(*seed) != int64(int32(*seed)) {
		return usageError("seed out of int32 range")
	}
	tune, err := loadTuning(*tuningPath)
	if err != nil {
		return err
	}
	set, err := parseUnlocked(*unlocked)
	if err != nil {
		return err
	}

	cfg := tune.Foreground.Config()
	switch strings.ToLower(*layerName) {
	case "foreground", "fg":
	case "background", "bg":
		cfg = tune.Background.Config()
	default:
		return usageError("bad -layer " + *layerName)
	}

	c := placement.ChunkCoord{X: *cx, Y: *cy}
	recs := placement.Generate(int32(*seed), c, cfg.Layer, set, cfg.Params)

	if *asJSON {
		enc := json.NewEncoder(out)
		for _, r := range recs {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	}
	fmt.Fprintf(out, "seed=%d chunk=%s layer=%s unlocked=%v records=%d\n", *seed, c, cfg.Layer, set.Slice(), len(recs))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tX\tY\tRADIUS\tCATEGORY\tROTATION")
	for i, r := range recs {
		fmt.Fprintf(tw, "%d\t%.3f\t%.3f\t%.3f\t%s\t%.1f\n", i, r.Pos.X, r.Pos.Y, r.Radius, r.Category, r.Rotation)
	}
	return tw.Flush()
}

func runSnapshot(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	path := fs.String("path", "", "path to .snap.zst")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if *path == "" {
		return usageError("missing -path")
	}
	snap, err := snapshot.ReadSnapshot(*path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	home := "none"
	if snap.Home != nil {
		home = fmt.Sprintf("(%.2f,%.2f)", snap.Home.Pos[0], snap.Home.Pos[1])
	}
	fmt.Fprintf(out, "snapshot v%d world=%s tick=%d seed=%d unlocked=%v home=%s residues=%d resident=%d/%d\n",
		snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.Seed, snap.Unlocked, home,
		len(snap.Residues), len(snap.ResidentForeground), len(snap.ResidentBackground))
	if snap.HasObserver {
		fmt.Fprintf(out, "observer=(%.2f,%.2f)\n", snap.Observer[0], snap.Observer[1])
	}
	return nil
}

func runReplay(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		eventsDir  = fs.String("events", "", "events dir containing events-*.jsonl.zst")
		snapPath   = fs.String("snapshot", "", "resume from this snapshot instead of genesis (optional)")
		seed       = fs.Int("seed", 0, "session seed for a genesis replay")
		worldID    = fs.String("world", "hub", "world id")
		tuningPath = fs.String("tuning", "", "tuning.yaml used by the server (default: built-in defaults)")
		fromTick   = fs.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick     = fs.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if *eventsDir == "" {
		return usageError("missing -events")
	}
	tune, err := loadTuning(*tuningPath)
	if err != nil {
		return err
	}

	w, err := world.New(world.ConfigFromTuning(*worldID, tune), session.New(int32(*seed)))
	if err != nil {
		return fmt.Errorf("world: %w", err)
	}
	defer w.Close()
	if *snapPath != "" {
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			return fmt.Errorf("read snapshot: %w", err)
		}
		if err := w.ImportSnapshot(snap); err != nil {
			return fmt.Errorf("import snapshot: %w", err)
		}
	}

	startTick := w.CurrentTick()
	verifyFrom := *fromTick
	if verifyFrom < startTick {
		verifyFrom = startTick
	}

	files, err := persistlog.ListEventFiles(*eventsDir)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no events files found in %s", *eventsDir)
	}

	var checked uint64
	errStop := errors.New("stop")
	for _, path := range files {
		err := persistlog.ReadTicks(path, func(entry world.TickLogEntry) error {
			if entry.Tick < startTick {
				return nil
			}
			if *toTick != 0 && entry.Tick > *toTick {
				return errStop
			}
			if entry.Tick != w.CurrentTick() {
				return fmt.Errorf("tick gap: want=%d got=%d (file=%s)", w.CurrentTick(), entry.Tick, filepath.Base(path))
			}
			tick, digest := w.StepInput(entry.Input())
			if tick >= verifyFrom {
				checked++
				if digest != entry.Digest {
					return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, digest, entry.Digest)
				}
			}
			return nil
		})
		if errors.Is(err, errStop) {
			break
		}
		if err != nil {
			return fmt.Errorf("replay: %w", err)
		}
	}
	fmt.Fprintf(out, "replay ok: checked=%d ticks (start tick=%d)\n", checked, startTick)
	return nil
}
