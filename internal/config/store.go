package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store persists settings in a single JSON file and notifies subscribers on
// every applied change. It is the shared mutable settings resource; all writes
// funnel through Update so last-writer-wins stays well defined.
type Store struct {
	path string

	mu          sync.Mutex
	current     Settings
	loaded      bool
	subscribers map[int]func(Settings)
	nextSubID   int
}

// NewStore creates a JSON-backed settings store rooted at path.
func NewStore(path string) *Store {
	return &Store{path: path, subscribers: map[int]func(Settings){}}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads settings from disk, falling back to defaults when missing.
// Load is idempotent; repeated calls re-read disk state.
func (s *Store) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.current = Default()
			s.loaded = true
			return s.current, nil
		}
		return Settings{}, fmt.Errorf("read settings %q: %w", s.path, err)
	}

	var cfg Settings
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Settings{}, fmt.Errorf("parse settings %q: %w", s.path, err)
	}

	s.current = cfg
	s.loaded = true
	return cfg, nil
}

// Get returns the current in-memory settings snapshot, loading on first use.
func (s *Store) Get() (Settings, error) {
	s.mu.Lock()
	loaded := s.loaded
	current := s.current
	s.mu.Unlock()

	if loaded {
		return current, nil
	}
	return s.Load()
}

// Update applies a mutation, persists the result atomically, and notifies
// subscribers with the new snapshot.
func (s *Store) Update(mutate func(*Settings)) (Settings, error) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		if _, err := s.Load(); err != nil {
			return Settings{}, err
		}
		s.mu.Lock()
	}

	next := s.current
	mutate(&next)

	if err := s.save(next); err != nil {
		s.mu.Unlock()
		return Settings{}, err
	}
	s.current = next

	subs := make([]func(Settings), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return next, nil
}

// Subscribe registers a change callback and returns its removal func.
// Callbacks run on the Update caller's goroutine after the write lands.
func (s *Store) Subscribe(fn func(Settings)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// save writes settings as indented JSON via temp-file + rename.
func (s *Store) save(cfg Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("ensure settings dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write settings temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}
