// Package seen persists the set of already-notified record identifiers.
//
// The set is loaded once per run, mutated in memory, and written back only
// when the orchestrator confirms delivery. A missing or corrupt backing
// state is an empty set, never a fatal error.
package seen

import (
	"context"
	"errors"
	"strings"

	"perpwatch/pkg/logx"
)

// Store is the durable seen-set API.
//
// In-memory Add()s are provisional: nothing reaches disk until Persist.
type Store interface {
	Load(ctx context.Context) error
	Contains(id string) bool
	Add(id string)
	Persist(ctx context.Context) error
	Close() error
}

// Config configures the store.
//
// Driver values:
//   - "jsonfile": JSON array of ids, whole-file replace
//   - "sqlite": SQLite database file
type Config struct {
	Driver string
	Path   string
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("seen store path is required")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "jsonfile":
		return newFileStore(path, log), nil
	case "sqlite", "sqlite3":
		return openSQLite(path, log)
	default:
		return nil, errors.New("unknown seen driver: " + cfg.Driver)
	}
}
