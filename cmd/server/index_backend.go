package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ratpet.ai/internal/persistence/indexdb"
	"ratpet.ai/internal/sim/tuning"
	"ratpet.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.TickLogger
	Close() error
	UpsertTuning(t tuning.Tuning) (string, error)
	RecordRunEnd(runID string, endTick uint64, digest, state string)
	Stats() indexdb.Stats
}

// openRuntimeIndex opens the read-model index. It never affects simulation
// determinism; a nil index means indexing is off.
func openRuntimeIndex(worldDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("RP_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		idx, err := indexdb.OpenSQLite(filepath.Join(worldDir, "index", "ratpet.sqlite"))
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported RP_INDEX_BACKEND: %s", backend)
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
