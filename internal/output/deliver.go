// Package output applies transcript delivery side effects: clipboard, paste,
// and the optional confirm keystroke.
package output

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/tmm22/VoiceInk-sub006/internal/config"
)

const commandTimeout = 2 * time.Second

// ExecDeliverer dispatches transcripts through user-configured shell commands.
// Clipboard failure aborts delivery; paste and confirm failures are logged.
type ExecDeliverer struct {
	logger *slog.Logger
	store  *config.Store
}

// NewExecDeliverer builds a deliverer reading commands from live settings.
func NewExecDeliverer(logger *slog.Logger, store *config.Store) *ExecDeliverer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ExecDeliverer{logger: logger, store: store}
}

// Deliver writes text to the clipboard and optionally dispatches paste.
func (d *ExecDeliverer) Deliver(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	settings, err := d.store.Get()
	if err != nil {
		return fmt.Errorf("read output settings: %w", err)
	}

	argv, err := config.ParseArgv(settings.Output.ClipboardCmd)
	if err != nil {
		return fmt.Errorf("parse clipboard_cmd: %w", err)
	}
	if err := runWithInput(ctx, argv, text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}

	if !settings.Output.PasteEnabled || settings.Output.PasteCmd == "" {
		return nil
	}

	pasteArgv, err := config.ParseArgv(settings.Output.PasteCmd)
	if err != nil {
		d.logger.Warn("paste skipped", "error", err.Error())
		return nil
	}
	if err := runWithInput(ctx, pasteArgv, ""); err != nil {
		// The transcript already sits on the clipboard, so paste failure is
		// not a delivery failure.
		d.logger.Warn("paste dispatch failed", "error", err.Error())
	}
	return nil
}

// Confirm dispatches the configured confirm keystroke command.
func (d *ExecDeliverer) Confirm(ctx context.Context) error {
	settings, err := d.store.Get()
	if err != nil {
		return fmt.Errorf("read output settings: %w", err)
	}
	if settings.Output.ConfirmCmd == "" {
		return nil
	}

	argv, err := config.ParseArgv(settings.Output.ConfirmCmd)
	if err != nil {
		return fmt.Errorf("parse confirm_cmd: %w", err)
	}
	return runWithInput(ctx, argv, "")
}

// runWithInput executes argv with a timeout, writing input to stdin when set.
func runWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	runCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}

	if input != "" {
		if _, err := stdin.Write([]byte(input)); err != nil {
			_ = stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("write stdin for %s: %w", argv[0], err)
		}
	}
	if err := stdin.Close(); err != nil {
		_ = cmd.Wait()
		return fmt.Errorf("close stdin for %s: %w", argv[0], err)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("run command %s: %w", argv[0], err)
	}
	return nil
}
