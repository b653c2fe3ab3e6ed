package model

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

var (
	// ErrLoadFailed indicates the native engine rejected a model file.
	ErrLoadFailed = errors.New("model load failed")
	// ErrAlreadyLoaded indicates an exclusive engine already holds a model.
	ErrAlreadyLoaded = errors.New("a model is already loaded")
	// ErrNotLoaded indicates transcription was requested with no loaded model.
	ErrNotLoaded = errors.New("no model loaded")
)

// Engine abstracts the native local inference collaborator. Implementations
// must only ever be invoked by one logical caller at a time; the inference
// coordinator's single processing slot enforces that.
type Engine interface {
	Load(ctx context.Context, modelPath string) error
	Transcribe(ctx context.Context, audioPath string, language string) (string, error)
	Unload() error
}

// ExecEngine drives a whisper.cpp style command-line binary. Load verifies the
// model file is readable; each Transcribe invocation passes it to the binary.
type ExecEngine struct {
	Binary string

	mu        sync.Mutex
	modelPath string
}

// NewExecEngine builds an engine around the given transcriber binary.
func NewExecEngine(binary string) *ExecEngine {
	if strings.TrimSpace(binary) == "" {
		binary = "whisper-cli"
	}
	return &ExecEngine{Binary: binary}
}

// Load records the model path after verifying the binary can be resolved.
func (e *ExecEngine) Load(_ context.Context, modelPath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.modelPath != "" {
		return ErrAlreadyLoaded
	}
	if _, err := exec.LookPath(e.Binary); err != nil {
		return fmt.Errorf("%w: locate %s: %v", ErrLoadFailed, e.Binary, err)
	}
	e.modelPath = modelPath
	return nil
}

// Transcribe runs one inference pass over an audio file.
func (e *ExecEngine) Transcribe(ctx context.Context, audioPath string, language string) (string, error) {
	e.mu.Lock()
	modelPath := e.modelPath
	e.mu.Unlock()

	if modelPath == "" {
		return "", ErrNotLoaded
	}

	args := []string{"-m", modelPath, "-f", audioPath, "--no-timestamps", "--no-prints"}
	if strings.TrimSpace(language) != "" {
		args = append(args, "-l", language)
	}

	cmd := exec.CommandContext(ctx, e.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", fmt.Errorf("run %s: %s", e.Binary, detail)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// Unload releases the held model reference.
func (e *ExecEngine) Unload() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.modelPath = ""
	return nil
}
