package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"multiverse.game/internal/persistence/indexdb"
	"multiverse.game/internal/persistence/snapshot"
	"multiverse.game/internal/sim/world"
)

type runtimeIndex interface {
	world.TickLogger
	Close() error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	RecordSession(worldID string, seed int32, startedTick uint64)
	Stats() indexdb.Stats
}

func openRuntimeIndex(worldDir string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("MV_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(worldDir, "index", "world.sqlite")
		return indexdb.OpenSQLite(dbPath)
	case "postgres", "postgresql":
		dsn := strings.TrimSpace(os.Getenv("MV_INDEX_POSTGRES_DSN"))
		if dsn == "" {
			return nil, fmt.Errorf("MV_INDEX_BACKEND=postgres but MV_INDEX_POSTGRES_DSN is empty")
		}
		idx, err := indexdb.OpenPostgres(indexdb.PostgresConfig{
			DSN:             dsn,
			MaxOpenConns:    envInt("MV_INDEX_POSTGRES_MAX_OPEN", 4),
			MaxIdleConns:    envInt("MV_INDEX_POSTGRES_MAX_IDLE", 2),
			ConnMaxLifetime: time.Duration(envInt("MV_INDEX_POSTGRES_MAX_LIFETIME_S", 1800)) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		if logger != nil {
			logger.Printf("index backend: postgres")
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported MV_INDEX_BACKEND: %s", backend)
	}
}
