// Package overlay applies transient settings substitutions for matched
// application contexts and restores the prior selection afterwards, including
// across a crash.
package overlay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tmm22/VoiceInk-sub006/internal/config"
)

// Session is the durable record of one active overlay: the rule that fired
// and the exact selection to restore when it ends.
type Session struct {
	ID        string           `json:"id"`
	RuleName  string           `json:"rule_name"`
	StartedAt time.Time        `json:"started_at"`
	AutoSend  bool             `json:"auto_send"`
	Original  config.Selection `json:"original"`
}

// ResolvePath returns the overlay snapshot path under the XDG state directory.
func ResolvePath() (string, error) {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		stateDir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateDir, "voiceink", "overlay.json"), nil
}

// saveSession durably writes the snapshot before the overlay mutates settings.
func saveSession(path string, sess Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create overlay state directory: %w", err)
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encode overlay session: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write overlay session: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit overlay session: %w", err)
	}
	return nil
}

// loadSession reads a persisted snapshot; ok is false when none exists.
func loadSession(path string) (Session, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Session{}, false, nil
		}
		return Session{}, false, fmt.Errorf("read overlay session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, false, fmt.Errorf("decode overlay session: %w", err)
	}
	return sess, true, nil
}

// removeSession deletes the snapshot; absence is not an error.
func removeSession(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove overlay session: %w", err)
	}
	return nil
}
