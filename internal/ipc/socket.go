// Package ipc owns the daemon's unix control socket: single-owner acquisition
// plus a line-delimited JSON request/response protocol.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

// ErrAlreadyRunning reports a live owner already serving the control socket.
var ErrAlreadyRunning = errors.New("voiceink session already running")

// ResolveSocketPath returns the control socket location, preferring the XDG
// runtime directory.
func ResolveSocketPath() string {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "voiceink.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("voiceink-%d.sock", os.Getuid()))
}

// Acquire claims socket ownership at path. A responsive existing owner yields
// ErrAlreadyRunning; a stale socket file is removed and re-bound.
func Acquire(ctx context.Context, path string) (net.Listener, error) {
	if _, err := os.Stat(path); err == nil {
		alive, probeErr := Probe(ctx, path, 500*time.Millisecond)
		if probeErr != nil {
			return nil, probeErr
		}
		if alive {
			return nil, ErrAlreadyRunning
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat socket: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("bind socket %q: %w", path, err)
	}
	return listener, nil
}

// Release closes the listener and removes the socket file.
func Release(listener net.Listener, path string) {
	if listener != nil {
		_ = listener.Close()
	}
	if path != "" {
		_ = os.Remove(path)
	}
}
