// Package indicator surfaces session phase changes as desktop notifications
// and short audio cues.
package indicator

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tmm22/VoiceInk-sub006/internal/config"
)

// Notifier is the runtime session monitor. Notifications replace each other
// through the freedesktop notification ID so only one surface is visible.
type Notifier struct {
	cfg    config.IndicatorSettings
	logger *slog.Logger

	mu             sync.Mutex
	notificationID uint32
	soundMu        sync.Mutex
}

// New creates a session notifier from settings.
func New(cfg config.IndicatorSettings, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Notifier{cfg: cfg, logger: logger}
}

// ShowRecording signals capture start and emits the start cue.
func (n *Notifier) ShowRecording(ctx context.Context) {
	n.playCue(cueStart)
	n.show(ctx, "Recording…", 300000)
}

// ShowTranscribing signals the post-capture transcription phase.
func (n *Notifier) ShowTranscribing(ctx context.Context) {
	n.playCue(cueStop)
	n.show(ctx, "Transcribing…", 300000)
}

// ShowEnhancing signals the enhancement phase.
func (n *Notifier) ShowEnhancing(ctx context.Context) {
	n.show(ctx, "Enhancing…", 300000)
}

// ShowError displays a short-lived error message.
func (n *Notifier) ShowError(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		text = "Dictation error"
	}
	n.show(ctx, text, 1500)
}

// Hide dismisses the active surface and emits the completion cue.
func (n *Notifier) Hide(ctx context.Context) {
	n.playCue(cueComplete)
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, n.dismiss)
}

func (n *Notifier) show(ctx context.Context, text string, timeoutMS int) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, text, timeoutMS)
	})
}

// notify sends a replaceable desktop notification and stores its ID.
func (n *Notifier) notify(ctx context.Context, text string, timeoutMS int) error {
	n.mu.Lock()
	replaceID := n.notificationID
	n.mu.Unlock()

	appName := strings.TrimSpace(n.cfg.AppName)
	if appName == "" {
		appName = "voiceink"
	}

	id, err := desktopNotify(ctx, appName, replaceID, text, timeoutMS)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.notificationID = id
	n.mu.Unlock()
	return nil
}

// dismiss closes the current notification ID when one is live.
func (n *Notifier) dismiss(ctx context.Context) error {
	n.mu.Lock()
	id := n.notificationID
	n.notificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes a notification operation with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.logger.Debug("indicator dispatch failed", "error", err.Error())
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	go func() {
		n.soundMu.Lock()
		defer n.soundMu.Unlock()
		if err := emitCue(kind); err != nil {
			n.logger.Debug("indicator audio cue failed", "error", err.Error())
		}
	}()
}
