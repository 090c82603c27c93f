package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"multiverse.game/internal/persistence/snapshot"
)

type MilestoneMeta struct {
	Tick      uint64 `json:"tick"`
	Seed      int32  `json:"seed"`
	Unlocked  []int  `json:"unlocked,omitempty"`
	Residues  int    `json:"residues"`
	Snapshot  string `json:"snapshot"`
	CreatedAt string `json:"created_at"`
}

// ArchiveMilestone copies a snapshot taken at a multiple of everyTicks into
// `worldDir/archives/tick_<N>/` next to a meta.json. Milestones survive
// PruneSnapshots.
func ArchiveMilestone(worldDir, snapshotPath string, snap snapshot.SnapshotV1, everyTicks uint64) (archivedPath string, archived bool, err error) {
	if everyTicks == 0 || snap.Header.Tick == 0 || snap.Header.Tick%everyTicks != 0 {
		return "", false, nil
	}

	archiveDir := filepath.Join(worldDir, "archives", fmt.Sprintf("tick_%012d", snap.Header.Tick))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, err
	}

	meta := MilestoneMeta{
		Tick:      snap.Header.Tick,
		Seed:      snap.Seed,
		Unlocked:  snap.Unlocked,
		Residues:  len(snap.Residues),
		Snapshot:  filepath.Base(dst),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}

	return dst, true, nil
}

// PruneSnapshots deletes all but the newest keep `<tick>.snap.zst` files in
// dir and returns the removed paths. keep <= 0 disables pruning.
func PruneSnapshots(dir string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	type snapFile struct {
		tick uint64
		name string
	}
	var files []snapFile
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(e.Name(), ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		files = append(files, snapFile{tick: tick, name: e.Name()})
	}
	if len(files) <= keep {
		return nil, nil
	}
	sort.Slice(files, func(i, j int) bool { return files[i].tick < files[j].tick })

	var removed []string
	for _, f := range files[:len(files)-keep] {
		p := filepath.Join(dir, f.name)
		if err := os.Remove(p); err != nil {
			return removed, err
		}
		removed = append(removed, p)
	}
	return removed, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
