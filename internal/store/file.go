package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"shopee-deal-bot/internal/models"
)

// fileDocument is the on-disk shape: one JSON document holding both
// persisted keys.
type fileDocument struct {
	Config *models.AffiliateConfig `json:"affiliateConfig,omitempty"`
	Posted []string                `json:"postedProducts"`
}

// FileStore keeps all state in a single JSON file. Writes go through a
// temp file and rename so a crash mid-write loses at most the latest
// increment, never the whole document.
type FileStore struct {
	path string

	mu     sync.RWMutex
	doc    fileDocument
	posted map[string]struct{}
}

func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:   path,
		posted: make(map[string]struct{}),
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load store file: %w", err)
	}
	return s, nil
}

var _ Store = (*FileStore)(nil)

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &s.doc); err != nil {
		return err
	}
	for _, id := range s.doc.Posted {
		s.posted[id] = struct{}{}
	}
	return nil
}

// flush writes the document atomically. Callers must hold the write lock.
func (s *FileStore) flush() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) LoadConfig(_ context.Context) (*models.AffiliateConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc.Config == nil {
		return nil, nil
	}
	cfg := *s.doc.Config
	return &cfg, nil
}

func (s *FileStore) SaveConfig(_ context.Context, cfg *models.AffiliateConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := *cfg
	s.doc.Config = &saved
	return s.flush()
}

func (s *FileStore) History(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.doc.Posted))
	copy(out, s.doc.Posted)
	return out, nil
}

func (s *FileStore) AppendPosted(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posted[id]; ok {
		return fmt.Errorf("%w: %s", models.ErrAlreadyPosted, id)
	}
	s.doc.Posted = append(s.doc.Posted, id)
	s.posted[id] = struct{}{}
	return s.flush()
}

func (s *FileStore) IsPosted(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.posted[id]
	return ok, nil
}

func (s *FileStore) Close() error {
	return nil
}
