package seen

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"perpwatch/pkg/logx"
)

// fileStore keeps the seen set as a JSON array of identifier strings.
//
// Writes replace the whole file via tmp+rename, so a failed write leaves
// the previous durable state untouched.
type fileStore struct {
	log  logx.Logger
	path string

	mu  sync.Mutex
	ids map[string]struct{}
}

func newFileStore(path string, log logx.Logger) *fileStore {
	return &fileStore{log: log, path: path, ids: map[string]struct{}{}}
}

func (s *fileStore) Load(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ids = map[string]struct{}{}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("seen file unreadable, starting empty", logx.String("path", s.path), logx.Err(err))
		}
		return nil
	}

	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		s.log.Warn("seen file corrupt, starting empty", logx.String("path", s.path), logx.Err(err))
		return nil
	}
	for _, id := range list {
		if id != "" {
			s.ids[id] = struct{}{}
		}
	}
	s.log.Debug("seen set loaded", logx.Int("count", len(s.ids)))
	return nil
}

func (s *fileStore) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

func (s *fileStore) Add(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	s.ids[id] = struct{}{}
	s.mu.Unlock()
}

func (s *fileStore) Persist(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	list := make([]string, 0, len(s.ids))
	for id := range s.ids {
		list = append(list, id)
	}
	s.mu.Unlock()
	sort.Strings(list)

	b, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("persist seen set: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("persist seen set: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("persist seen set: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("persist seen set: %w", err)
	}
	s.log.Debug("seen set persisted", logx.Int("count", len(list)))
	return nil
}

func (s *fileStore) Close() error { return nil }
