// Package history persists session records as append-only JSONL.
package history

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tmm22/VoiceInk-sub006/internal/session"
)

// Store appends one JSON object per record to a history file. Records with a
// repeated ID supersede earlier entries for that session; readers keep the
// last occurrence.
type Store struct {
	mu   sync.Mutex
	path string
}

// ResolvePath returns the history file under the XDG state directory.
func ResolvePath() (string, error) {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		stateDir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateDir, "voiceink", "history.jsonl"), nil
}

// NewStore builds a history store writing to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Record appends one session record.
func (s *Store) Record(_ context.Context, rec session.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer file.Close()

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode history record: %w", err)
	}
	line = append(line, '\n')

	if _, err := file.Write(line); err != nil {
		return fmt.Errorf("append history record: %w", err)
	}
	return nil
}

// List returns the latest state of each session, newest first.
func (s *Store) List(_ context.Context, limit int) ([]session.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer file.Close()

	latest := make(map[string]session.Record)
	order := make([]string, 0, 64)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var rec session.Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			// A torn final line from a crash mid-append is expected; skip it.
			continue
		}
		if _, seen := latest[rec.ID]; !seen {
			order = append(order, rec.ID)
		}
		latest[rec.ID] = rec
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}

	records := make([]session.Record, 0, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		records = append(records, latest[order[i]])
		if limit > 0 && len(records) >= limit {
			break
		}
	}
	return records, nil
}
