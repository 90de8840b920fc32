package seen

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"perpwatch/pkg/logx"
)

// sqliteStore is the alternative backend for deployments that already ship
// a database file. Semantics match fileStore: Add is in-memory until
// Persist commits pending ids in one transaction.
type sqliteStore struct {
	log logx.Logger
	db  *sql.DB

	mu      sync.Mutex
	ids     map[string]struct{}
	pending []string
}

func openSQLite(path string, log logx.Logger) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(
		`CREATE TABLE IF NOT EXISTS seen (
			id       TEXT PRIMARY KEY,
			added_at TEXT NOT NULL
		)`,
	); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{log: log, db: db, ids: map[string]struct{}{}}, nil
}

func (s *sqliteStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ids = map[string]struct{}{}
	s.pending = nil

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM seen`)
	if err != nil {
		s.log.Warn("seen table unreadable, starting empty", logx.Err(err))
		return nil
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		s.ids[id] = struct{}{}
	}
	s.log.Debug("seen set loaded", logx.Int("count", len(s.ids)))
	return rows.Err()
}

func (s *sqliteStore) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

func (s *sqliteStore) Add(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	if _, ok := s.ids[id]; !ok {
		s.ids[id] = struct{}{}
		s.pending = append(s.pending, id)
	}
	s.mu.Unlock()
}

func (s *sqliteStore) Persist(ctx context.Context) error {
	s.mu.Lock()
	pending := append([]string(nil), s.pending...)
	s.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persist seen set: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for _, id := range pending {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO seen(id, added_at) VALUES(?, ?) ON CONFLICT(id) DO NOTHING`,
			id, now,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("persist seen set: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("persist seen set: %w", err)
	}

	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
	s.log.Debug("seen set persisted", logx.Int("count", len(pending)))
	return nil
}

func (s *sqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
