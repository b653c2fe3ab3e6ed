// Package session coordinates one dictation lifecycle: capture, transcription,
// optional enhancement, and delivery, with cooperative cancellation at every
// phase boundary.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tmm22/VoiceInk-sub006/internal/config"
	"github.com/tmm22/VoiceInk-sub006/internal/fsm"
	"github.com/tmm22/VoiceInk-sub006/internal/inference"
	"github.com/tmm22/VoiceInk-sub006/internal/ipc"
	"github.com/tmm22/VoiceInk-sub006/internal/model"
	"github.com/tmm22/VoiceInk-sub006/internal/transcript"
)

type action int

const (
	actionStop action = iota + 1
	actionCancel
)

// defaultConfirmDelay separates delivery from the synthetic confirm keystroke.
const defaultConfirmDelay = 100 * time.Millisecond

// Options tunes one Run invocation; the overlay layer sets AutoSend.
type Options struct {
	AutoSend     bool
	ConfirmDelay time.Duration
}

// Result is the complete lifecycle output returned by one Run invocation.
type Result struct {
	State              fsm.State
	Transcript         string
	Enhanced           string
	Cancelled          bool
	Err                error
	ModelName          string
	AudioDevice        string
	BytesCaptured      int64
	CaptureDuration    time.Duration
	TranscribeDuration time.Duration
	EnhanceDuration    time.Duration
	StartedAt          time.Time
	FinishedAt         time.Time
}

// Controller orchestrates session state transitions and side effects.
type Controller struct {
	logger      *slog.Logger
	store       *config.Store
	registry    *model.Registry
	coordinator *inference.Coordinator
	recorder    Recorder
	cloud       CloudTranscriber
	enhancer    Enhancer
	deliverer   Deliverer
	historian   Historian
	monitor     Monitor

	mu    sync.RWMutex
	state fsm.State
	token *Token

	actions chan action
}

// NewController constructs a session controller with safe default fallbacks.
func NewController(
	logger *slog.Logger,
	store *config.Store,
	registry *model.Registry,
	coordinator *inference.Coordinator,
	recorder Recorder,
	cloud CloudTranscriber,
	enhancer Enhancer,
	deliverer Deliverer,
	historian Historian,
	monitor Monitor,
) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deliverer == nil {
		deliverer = DeliverFunc(func(context.Context, string) error { return nil })
	}
	if historian == nil {
		historian = HistorianFunc(func(context.Context, Record) error { return nil })
	}
	if monitor == nil {
		monitor = noopMonitor{}
	}

	return &Controller{
		logger:      logger,
		store:       store,
		registry:    registry,
		coordinator: coordinator,
		recorder:    recorder,
		cloud:       cloud,
		enhancer:    enhancer,
		deliverer:   deliverer,
		historian:   historian,
		monitor:     monitor,
		state:       fsm.StateIdle,
		actions:     make(chan action, 1),
	}
}

// State returns the current FSM state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// transition applies one FSM event to the controller state.
func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// Run executes one end-to-end dictation session.
func (c *Controller) Run(ctx context.Context, opts Options) Result {
	result := Result{StartedAt: time.Now()}
	finish := func() Result {
		result.State = c.State()
		result.FinishedAt = time.Now()
		return result
	}

	settings, err := c.store.Get()
	if err != nil {
		result.Err = err
		return finish()
	}

	desc, err := c.selectedModel(settings)
	if err != nil {
		result.Err = err
		return finish()
	}
	result.ModelName = desc.Name

	token := &Token{}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.token == token {
			c.token = nil
		}
		c.mu.Unlock()
	}()

	if err := c.transition(fsm.EventStart); err != nil {
		result.Err = err
		return finish()
	}

	rec := Record{
		ID:        uuid.NewString(),
		StartedAt: result.StartedAt,
		ModelName: desc.Name,
		Provider:  desc.Provider,
		PromptID:  settings.PromptID,
	}

	c.monitor.ShowRecording(ctx)

	audioPath := filepath.Join(os.TempDir(), "voiceink-"+rec.ID+".wav")
	if err := c.recorder.Start(ctx, audioPath); err != nil {
		c.monitor.ShowError(ctx, "Unable to start recording")
		c.toErrorAndReset()
		result.Err = wrapPhase("capture", desc.Name, err)
		return finish()
	}

	// Warm the local backend concurrently so transcription skips cold-start
	// latency after stop. Failures fall through to the load inside the
	// coordinator path.
	if desc.Kind == model.BackendLocal || desc.Kind == model.BackendNeural {
		go func() {
			if err := c.registry.Load(context.Background(), desc.Name); err != nil {
				c.logger.Warn("model warm-up failed", "model", desc.Name, "error", err.Error())
			}
		}()
	}

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
		defer cancel()
		c.monitor.Hide(cleanupCtx)
	}()

	select {
	case <-ctx.Done():
		token.Cancel()
		_ = c.recorder.Cancel(context.Background())
		c.coordinator.CancelAll()
		_ = c.transition(fsm.EventCancel)
		result.Cancelled = true
		result.Err = ctx.Err()
		return finish()
	case a := <-c.actions:
		switch a {
		case actionCancel:
			token.Cancel()
			_ = c.recorder.Cancel(context.Background())
			c.coordinator.CancelAll()
			_ = c.transition(fsm.EventCancel)
			result.Cancelled = true
			return finish()
		case actionStop:
			return c.runStopped(ctx, opts, settings, desc, token, rec, &result, finish)
		default:
			c.toErrorAndReset()
			result.Err = fmt.Errorf("unknown action %d", a)
			return finish()
		}
	}
}

// runStopped drives the transcribe/enhance/deliver phases after capture stops.
func (c *Controller) runStopped(
	ctx context.Context,
	opts Options,
	settings config.Settings,
	desc model.Descriptor,
	token *Token,
	rec Record,
	result *Result,
	finish func() Result,
) Result {
	if err := c.transition(fsm.EventStop); err != nil {
		c.toErrorAndReset()
		result.Err = err
		return finish()
	}
	c.monitor.ShowTranscribing(ctx)

	recording, err := c.recorder.Stop(ctx)
	result.AudioDevice = recording.Device
	result.BytesCaptured = recording.Bytes
	result.CaptureDuration = recording.Duration
	rec.AudioPath = recording.AudioPath
	rec.CaptureDuration = recording.Duration
	if err != nil {
		c.failSession(ctx, &rec, wrapPhase("capture", desc.Name, err), result)
		return finish()
	}

	rec.Status = RecordStatusPending
	c.persistRecord(ctx, rec)

	// Cancellation is checked at every phase boundary from here on.
	if token.Cancelled() {
		return c.cancelSession(ctx, rec, result, finish)
	}

	transcribeStart := time.Now()
	raw, err := c.transcribe(ctx, settings, desc, recording.AudioPath)
	result.TranscribeDuration = time.Since(transcribeStart)
	rec.TranscribeDuration = result.TranscribeDuration
	if err != nil {
		if token.Cancelled() || errors.Is(err, inference.ErrCancelled) {
			return c.cancelSession(ctx, rec, result, finish)
		}
		c.monitor.ShowError(ctx, "Transcription failed")
		c.failSession(ctx, &rec, wrapPhase("transcribe", desc.Name, err), result)
		return finish()
	}

	text := transcript.PostProcess(raw, transcript.Options{
		TrailingSpace:       settings.Transcript.TrailingSpace,
		CapitalizeSentences: settings.Transcript.CapitalizeSentences,
		Replacements:        settings.Transcript.Replacements,
	})
	if strings.TrimSpace(text) == "" {
		c.monitor.ShowError(ctx, "No speech detected")
		c.failSession(ctx, &rec, wrapPhase("transcribe", desc.Name, ErrEmptyTranscript), result)
		return finish()
	}
	result.Transcript = text
	rec.Text = text

	if token.Cancelled() {
		return c.cancelSession(ctx, rec, result, finish)
	}

	finalText := text
	if settings.EnhancementEnabled && c.enhancer != nil {
		if err := c.transition(fsm.EventTranscribed); err != nil {
			return c.cancelSession(ctx, rec, result, finish)
		}
		c.monitor.ShowEnhancing(ctx)

		enhanceStart := time.Now()
		enhanced, err := c.enhance(ctx, settings, text, recording.Duration)
		result.EnhanceDuration = time.Since(enhanceStart)
		rec.EnhanceDuration = result.EnhanceDuration
		if err != nil {
			// Enhancement failure is non-fatal: deliver the transcript and
			// annotate the record.
			rec.EnhancementFailure = err.Error()
			c.logger.Warn("enhancement failed; delivering raw transcript",
				"provider", settings.EnhancementProvider, "error", err.Error())
		} else {
			finalText = enhanced
			result.Enhanced = enhanced
			rec.Enhanced = enhanced
			rec.EnhancementModel = settings.EnhancementModel
			rec.EnhancementProvider = settings.EnhancementProvider
		}
		_ = c.transition(fsm.EventEnhanced)
	} else {
		_ = c.transition(fsm.EventSkipEnhance)
	}

	if token.Cancelled() {
		return c.cancelSession(ctx, rec, result, finish)
	}

	if err := c.deliverer.Deliver(ctx, finalText); err != nil {
		c.monitor.ShowError(ctx, "Output dispatch failed")
		c.failSession(ctx, &rec, wrapPhase("deliver", desc.Name, err), result)
		return finish()
	}
	if opts.AutoSend {
		delay := opts.ConfirmDelay
		if delay <= 0 {
			delay = defaultConfirmDelay
		}
		time.Sleep(delay)
		if err := c.deliverer.Confirm(ctx); err != nil {
			c.logger.Warn("auto-confirm failed", "error", err.Error())
		}
	}

	rec.Status = RecordStatusComplete
	c.persistRecord(ctx, rec)

	_ = c.transition(fsm.EventDelivered)
	return finish()
}

// transcribe routes to the inference coordinator for local backends or the
// cloud collaborator for remote backends.
func (c *Controller) transcribe(ctx context.Context, settings config.Settings, desc model.Descriptor, audioPath string) (string, error) {
	if desc.Kind.Local() {
		id := c.coordinator.Submit(inference.Request{
			Model:     desc.Name,
			AudioPath: audioPath,
			Language:  settings.Language,
		}, inference.PriorityHigh)
		return c.coordinator.Await(ctx, id)
	}

	if c.cloud == nil {
		return "", errors.New("cloud transcription is not configured")
	}

	timeout := time.Duration(settings.CloudTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return c.cloud.Transcribe(callCtx, audioPath, desc.Provider, desc.ModelID, desc.Endpoint, settings.Language)
}

// enhance sends the transcript plus contextual metadata to the enhancer.
func (c *Controller) enhance(ctx context.Context, settings config.Settings, text string, captureDuration time.Duration) (string, error) {
	timeout := time.Duration(settings.CloudTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return c.enhancer.Enhance(callCtx, text, EnhanceContext{
		Provider: settings.EnhancementProvider,
		Model:    settings.EnhancementModel,
		PromptID: settings.PromptID,
		Language: settings.Language,
		Duration: captureDuration,
	})
}

// selectedModel resolves the configured model and verifies it is usable.
func (c *Controller) selectedModel(settings config.Settings) (model.Descriptor, error) {
	name := strings.TrimSpace(settings.TranscriptionModel)
	if name == "" {
		return model.Descriptor{}, ErrNoModelSelected
	}
	desc, ok := c.registry.Get(name)
	if !ok {
		return model.Descriptor{}, fmt.Errorf("%w: %q is not a known model", ErrNoModelSelected, name)
	}
	if availability := c.registry.Availability(name); !availability.Usable() {
		return model.Descriptor{}, fmt.Errorf("%w: %q is %s", ErrNoModelSelected, name, availability.String())
	}
	return desc, nil
}

// cancelSession finalizes a cancellation observed at a phase boundary.
func (c *Controller) cancelSession(ctx context.Context, rec Record, result *Result, finish func() Result) Result {
	c.coordinator.CancelAll()
	rec.Status = RecordStatusCancelled
	c.persistRecord(ctx, rec)
	_ = c.transition(fsm.EventCancel)
	result.Cancelled = true
	return finish()
}

// failSession records a terminal failure and resets to idle.
func (c *Controller) failSession(ctx context.Context, rec *Record, err error, result *Result) {
	rec.Status = RecordStatusFailed
	rec.Text = failureMarker + err.Error()
	c.persistRecord(ctx, *rec)
	c.toErrorAndReset()
	result.Err = err
}

// persistRecord hands one history record to the historian, best-effort.
func (c *Controller) persistRecord(ctx context.Context, rec Record) {
	if err := c.historian.Record(ctx, rec); err != nil {
		c.logger.Warn("persist history record failed", "id", rec.ID, "error", err.Error())
	}
}

// Handle serves IPC commands for the active owner session.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return ipc.Accepted(string(c.State()), "status")
	case ipc.CommandToggle, ipc.CommandStop:
		return c.requestStop(req.Command)
	case ipc.CommandCancel:
		return c.requestCancel()
	default:
		return ipc.Rejected(string(c.State()), fmt.Sprintf("unknown command: %s", req.Command))
	}
}

// requestStop enqueues a stop action when state permits it.
func (c *Controller) requestStop(source ipc.Command) ipc.Response {
	state := c.State()
	if state != fsm.StateRecording {
		return ipc.Rejected(string(state), fmt.Sprintf("cannot %s from state %s", source, state))
	}

	select {
	case c.actions <- actionStop:
		return ipc.Accepted(string(state), "stop requested")
	default:
		return ipc.Accepted(string(state), "stop already requested")
	}
}

// requestCancel flags cancellation for the active session. While recording it
// unblocks the action loop; in later phases it sets the token so the next
// phase boundary observes it.
func (c *Controller) requestCancel() ipc.Response {
	state := c.State()
	switch state {
	case fsm.StateRecording:
		select {
		case c.actions <- actionCancel:
			return ipc.Accepted(string(state), "cancel requested")
		default:
			return ipc.Accepted(string(state), "cancel already requested")
		}
	case fsm.StateTranscribing, fsm.StateEnhancing, fsm.StateComplete:
		c.mu.RLock()
		token := c.token
		c.mu.RUnlock()
		if token == nil {
			return ipc.Rejected(string(state), "no active session")
		}
		token.Cancel()
		c.coordinator.CancelAll()
		return ipc.Accepted(string(state), "cancel requested")
	default:
		return ipc.Rejected(string(state), fmt.Sprintf("cannot cancel from state %s", state))
	}
}

// toErrorAndReset transitions to error and back to idle best-effort.
func (c *Controller) toErrorAndReset() {
	_ = c.transition(fsm.EventFail)
	_ = c.transition(fsm.EventReset)
}
