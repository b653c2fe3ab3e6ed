package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tmm22/VoiceInk-sub006/internal/config"
	"github.com/tmm22/VoiceInk-sub006/internal/fsm"
	"github.com/tmm22/VoiceInk-sub006/internal/inference"
	"github.com/tmm22/VoiceInk-sub006/internal/ipc"
	"github.com/tmm22/VoiceInk-sub006/internal/model"
)

type stubEngine struct{}

func (stubEngine) Load(context.Context, string) error { return nil }

func (stubEngine) Transcribe(context.Context, string, string) (string, error) {
	return "hello world", nil
}

func (stubEngine) Unload() error { return nil }

type fakeRecorder struct {
	mu         sync.Mutex
	startErr   error
	stopErr    error
	starts     int
	stops      int
	cancels    int
	outputPath string
	recording  Recording
}

func (f *fakeRecorder) Start(_ context.Context, outputPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	f.outputPath = outputPath
	return nil
}

func (f *fakeRecorder) Stop(context.Context) (Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	rec := f.recording
	if rec.AudioPath == "" {
		rec.AudioPath = f.outputPath
	}
	return rec, f.stopErr
}

func (f *fakeRecorder) Cancel(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	return nil
}

func (f *fakeRecorder) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

type fakeCloud struct {
	mu       sync.Mutex
	text     string
	err      error
	provider string
	modelID  string
	language string
	calls    int
}

func (f *fakeCloud) Transcribe(_ context.Context, _ string, provider string, modelID string, _ string, language string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.provider = provider
	f.modelID = modelID
	f.language = language
	return f.text, f.err
}

type fakeEnhancer struct {
	mu    sync.Mutex
	text  string
	err   error
	meta  EnhanceContext
	calls int
}

func (f *fakeEnhancer) Enhance(_ context.Context, _ string, meta EnhanceContext) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.meta = meta
	return f.text, f.err
}

type fakeDeliverer struct {
	mu         sync.Mutex
	deliverErr error
	delivered  []string
	confirms   int
}

func (f *fakeDeliverer) Deliver(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deliverErr != nil {
		return f.deliverErr
	}
	f.delivered = append(f.delivered, text)
	return nil
}

func (f *fakeDeliverer) Confirm(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirms++
	return nil
}

func (f *fakeDeliverer) deliveredTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.delivered...)
}

func (f *fakeDeliverer) confirmCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confirms
}

type fakeHistorian struct {
	mu      sync.Mutex
	records []Record
}

func (f *fakeHistorian) Record(_ context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeHistorian) all() []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Record(nil), f.records...)
}

func (f *fakeHistorian) last(t *testing.T) Record {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.records)
	return f.records[len(f.records)-1]
}

type fakeMonitor struct {
	mu           sync.Mutex
	recording    int
	transcribing int
	enhancing    int
	hides        int
	lastError    string
}

func (f *fakeMonitor) ShowRecording(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recording++
}

func (f *fakeMonitor) ShowTranscribing(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcribing++
}

func (f *fakeMonitor) ShowEnhancing(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enhancing++
}

func (f *fakeMonitor) ShowError(_ context.Context, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastError = message
}

func (f *fakeMonitor) Hide(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hides++
}

type harness struct {
	store      *config.Store
	registry   *model.Registry
	recorder   *fakeRecorder
	cloud      *fakeCloud
	enhancer   *fakeEnhancer
	deliverer  *fakeDeliverer
	historian  *fakeHistorian
	monitor    *fakeMonitor
	controller *Controller
}

// newHarness wires a controller over real store/registry/coordinator and fake
// collaborators. The runner defaults to an immediate fixed transcript.
func newHarness(t *testing.T, runner inference.Runner, mutate func(*config.Settings)) *harness {
	t.Helper()

	dir := t.TempDir()
	store := config.NewStore(filepath.Join(dir, "config.json"))
	_, err := store.Update(func(s *config.Settings) {
		s.TranscriptionModel = "ggml-tiny.en"
		s.Transcript.TrailingSpace = false
		s.Transcript.CapitalizeSentences = false
		if mutate != nil {
			mutate(s)
		}
	})
	require.NoError(t, err)

	modelDir := filepath.Join(dir, "models")
	require.NoError(t, os.MkdirAll(modelDir, 0o700))
	env := model.Environment{
		ModelDir:    modelDir,
		Credentials: config.NewCredentialsFrom(func(string) string { return "sk-test" }),
	}
	registry := model.NewRegistry(nil, env, stubEngine{}, model.NewDownloader(modelDir, nil))

	tiny, ok := registry.Get("ggml-tiny.en")
	require.True(t, ok)
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, tiny.FileName), []byte("weights"), 0o600))

	if runner == nil {
		runner = inference.RunnerFunc(func(context.Context, inference.Request) (string, error) {
			return "hello world", nil
		})
	}

	h := &harness{
		store:     store,
		registry:  registry,
		recorder:  &fakeRecorder{recording: Recording{Duration: 2 * time.Second, Bytes: 64000, Device: "mic0"}},
		cloud:     &fakeCloud{text: "cloud transcript"},
		enhancer:  &fakeEnhancer{text: "enhanced text"},
		deliverer: &fakeDeliverer{},
		historian: &fakeHistorian{},
		monitor:   &fakeMonitor{},
	}
	h.controller = NewController(
		nil,
		store,
		registry,
		inference.NewCoordinator(nil, runner),
		h.recorder,
		h.cloud,
		h.enhancer,
		h.deliverer,
		h.historian,
		h.monitor,
	)
	return h
}

func (h *harness) start(ctx context.Context, opts Options) <-chan Result {
	results := make(chan Result, 1)
	go func() {
		results <- h.controller.Run(ctx, opts)
	}()
	return results
}

func (h *harness) waitRecording(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.controller.State() == fsm.StateRecording
	}, 2*time.Second, 2*time.Millisecond)
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	resp := h.controller.Handle(context.Background(), ipc.Request{Command: ipc.CommandStop})
	require.True(t, resp.OK, "stop rejected: %s", resp.Error)
}

func awaitResult(t *testing.T, results <-chan Result) Result {
	t.Helper()
	select {
	case result := <-results:
		return result
	case <-time.After(3 * time.Second):
		t.Fatal("session did not finish")
		return Result{}
	}
}

func TestRunDeliversTranscript(t *testing.T) {
	h := newHarness(t, nil, nil)

	results := h.start(context.Background(), Options{})
	h.waitRecording(t)
	h.stop(t)
	result := awaitResult(t, results)

	require.NoError(t, result.Err)
	require.False(t, result.Cancelled)
	require.Equal(t, fsm.StateIdle, result.State)
	require.Equal(t, "hello world", result.Transcript)
	require.Equal(t, "ggml-tiny.en", result.ModelName)
	require.Equal(t, "mic0", result.AudioDevice)
	require.Equal(t, int64(64000), result.BytesCaptured)

	require.Equal(t, []string{"hello world"}, h.deliverer.deliveredTexts())
	require.Zero(t, h.deliverer.confirmCount())

	records := h.historian.all()
	require.Len(t, records, 2)
	require.Equal(t, RecordStatusPending, records[0].Status)
	require.Equal(t, RecordStatusComplete, records[1].Status)
	require.Equal(t, records[0].ID, records[1].ID)
	require.Equal(t, "hello world", records[1].Text)
	require.Equal(t, "ggml-tiny.en", records[1].ModelName)

	require.Equal(t, 1, h.monitor.recording)
	require.Equal(t, 1, h.monitor.transcribing)
	require.Zero(t, h.monitor.enhancing)
	require.Equal(t, 1, h.monitor.hides)
}

func TestRunAppliesTranscriptPostProcessing(t *testing.T) {
	h := newHarness(t, nil, func(s *config.Settings) {
		s.Transcript.TrailingSpace = true
		s.Transcript.CapitalizeSentences = true
	})

	results := h.start(context.Background(), Options{})
	h.waitRecording(t)
	h.stop(t)
	result := awaitResult(t, results)

	require.NoError(t, result.Err)
	require.Equal(t, "Hello world ", result.Transcript)
	require.Equal(t, []string{"Hello world "}, h.deliverer.deliveredTexts())
}

func TestRunRequiresSelectedModel(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"unknown":        "no-such-model",
		"not downloaded": "ggml-base",
	}
	for label, name := range cases {
		t.Run(label, func(t *testing.T) {
			h := newHarness(t, nil, func(s *config.Settings) {
				s.TranscriptionModel = name
			})

			result := h.controller.Run(context.Background(), Options{})
			require.ErrorIs(t, result.Err, ErrNoModelSelected)
			require.Equal(t, fsm.StateIdle, result.State)
			require.Empty(t, h.historian.all())
		})
	}
}

func TestRunRecorderStartFailure(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.recorder.startErr = errors.New("no input source")

	result := h.controller.Run(context.Background(), Options{})

	require.Error(t, result.Err)
	var phaseErr *PhaseError
	require.ErrorAs(t, result.Err, &phaseErr)
	require.Equal(t, "capture", phaseErr.Phase)
	require.Equal(t, fsm.StateIdle, result.State)
	require.Empty(t, h.historian.all())
	require.Equal(t, "Unable to start recording", h.monitor.lastError)
}

func TestRunClearsCancellationTokenOnEarlyFailure(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.recorder.startErr = errors.New("no input source")

	result := h.controller.Run(context.Background(), Options{})
	require.Error(t, result.Err)

	// A failure before the session loop starts must not leave the token
	// behind for the next Run to trip over.
	h.controller.mu.RLock()
	token := h.controller.token
	h.controller.mu.RUnlock()
	require.Nil(t, token)
}

func TestRunClearsCancellationTokenAfterCompletion(t *testing.T) {
	h := newHarness(t, nil, nil)

	results := h.start(context.Background(), Options{})
	h.waitRecording(t)
	h.stop(t)
	result := awaitResult(t, results)
	require.NoError(t, result.Err)

	h.controller.mu.RLock()
	token := h.controller.token
	h.controller.mu.RUnlock()
	require.Nil(t, token)
}

func TestRunCancelWhileRecording(t *testing.T) {
	h := newHarness(t, nil, nil)

	results := h.start(context.Background(), Options{})
	h.waitRecording(t)

	resp := h.controller.Handle(context.Background(), ipc.Request{Command: ipc.CommandCancel})
	require.True(t, resp.OK)

	result := awaitResult(t, results)
	require.True(t, result.Cancelled)
	require.NoError(t, result.Err)
	require.Equal(t, fsm.StateIdle, result.State)
	require.Equal(t, 1, h.recorder.cancelCount())
	require.Empty(t, h.historian.all())
	require.Empty(t, h.deliverer.deliveredTexts())
}

func TestRunContextCancellationWhileRecording(t *testing.T) {
	h := newHarness(t, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	results := h.start(ctx, Options{})
	h.waitRecording(t)
	cancel()

	result := awaitResult(t, results)
	require.True(t, result.Cancelled)
	require.ErrorIs(t, result.Err, context.Canceled)
	require.Equal(t, 1, h.recorder.cancelCount())
}

func TestRunCancelDuringTranscription(t *testing.T) {
	entered := make(chan struct{})
	runner := inference.RunnerFunc(func(ctx context.Context, _ inference.Request) (string, error) {
		close(entered)
		<-ctx.Done()
		return "", ctx.Err()
	})
	h := newHarness(t, runner, nil)

	results := h.start(context.Background(), Options{})
	h.waitRecording(t)
	h.stop(t)

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("transcription never started")
	}

	resp := h.controller.Handle(context.Background(), ipc.Request{Command: ipc.CommandCancel})
	require.True(t, resp.OK, "cancel rejected: %s", resp.Error)

	result := awaitResult(t, results)
	require.True(t, result.Cancelled)
	require.Equal(t, fsm.StateIdle, result.State)
	require.Equal(t, RecordStatusCancelled, h.historian.last(t).Status)
	require.Empty(t, h.deliverer.deliveredTexts())
}

func TestRunEmptyTranscriptFails(t *testing.T) {
	runner := inference.RunnerFunc(func(context.Context, inference.Request) (string, error) {
		return "   ", nil
	})
	h := newHarness(t, runner, nil)

	results := h.start(context.Background(), Options{})
	h.waitRecording(t)
	h.stop(t)
	result := awaitResult(t, results)

	require.ErrorIs(t, result.Err, ErrEmptyTranscript)
	require.Equal(t, fsm.StateIdle, result.State)

	rec := h.historian.last(t)
	require.Equal(t, RecordStatusFailed, rec.Status)
	require.True(t, strings.HasPrefix(rec.Text, "[failed] "), "text %q lacks failure marker", rec.Text)
	require.Equal(t, "No speech detected", h.monitor.lastError)
	require.Empty(t, h.deliverer.deliveredTexts())
}

func TestRunTranscriptionFailure(t *testing.T) {
	runner := inference.RunnerFunc(func(context.Context, inference.Request) (string, error) {
		return "", errors.New("decode failed")
	})
	h := newHarness(t, runner, nil)

	results := h.start(context.Background(), Options{})
	h.waitRecording(t)
	h.stop(t)
	result := awaitResult(t, results)

	var phaseErr *PhaseError
	require.ErrorAs(t, result.Err, &phaseErr)
	require.Equal(t, "transcribe", phaseErr.Phase)
	require.Equal(t, "ggml-tiny.en", phaseErr.Model)
	require.Equal(t, RecordStatusFailed, h.historian.last(t).Status)
	require.Equal(t, "Transcription failed", h.monitor.lastError)
}

func TestRunEnhancementSuccess(t *testing.T) {
	h := newHarness(t, nil, func(s *config.Settings) {
		s.EnhancementEnabled = true
		s.EnhancementProvider = "groq"
		s.EnhancementModel = "llama-3.3-70b"
	})

	results := h.start(context.Background(), Options{})
	h.waitRecording(t)
	h.stop(t)
	result := awaitResult(t, results)

	require.NoError(t, result.Err)
	require.Equal(t, "hello world", result.Transcript)
	require.Equal(t, "enhanced text", result.Enhanced)
	require.Equal(t, []string{"enhanced text"}, h.deliverer.deliveredTexts())
	require.Equal(t, 1, h.monitor.enhancing)

	require.Equal(t, "groq", h.enhancer.meta.Provider)
	require.Equal(t, "llama-3.3-70b", h.enhancer.meta.Model)

	rec := h.historian.last(t)
	require.Equal(t, RecordStatusComplete, rec.Status)
	require.Equal(t, "enhanced text", rec.Enhanced)
	require.Equal(t, "llama-3.3-70b", rec.EnhancementModel)
	require.Empty(t, rec.EnhancementFailure)
}

func TestRunEnhancementFailureDeliversRawTranscript(t *testing.T) {
	h := newHarness(t, nil, func(s *config.Settings) {
		s.EnhancementEnabled = true
	})
	h.enhancer.err = errors.New("provider unavailable")

	results := h.start(context.Background(), Options{})
	h.waitRecording(t)
	h.stop(t)
	result := awaitResult(t, results)

	require.NoError(t, result.Err)
	require.Empty(t, result.Enhanced)
	require.Equal(t, []string{"hello world"}, h.deliverer.deliveredTexts())

	rec := h.historian.last(t)
	require.Equal(t, RecordStatusComplete, rec.Status)
	require.Empty(t, rec.Enhanced)
	require.Contains(t, rec.EnhancementFailure, "provider unavailable")
}

func TestRunCloudBackend(t *testing.T) {
	h := newHarness(t, nil, func(s *config.Settings) {
		s.TranscriptionModel = "openai-whisper-1"
		s.Language = "en"
	})

	results := h.start(context.Background(), Options{})
	h.waitRecording(t)
	h.stop(t)
	result := awaitResult(t, results)

	require.NoError(t, result.Err)
	require.Equal(t, "cloud transcript", result.Transcript)
	require.Equal(t, 1, h.cloud.calls)
	require.Equal(t, "openai", h.cloud.provider)
	require.Equal(t, "whisper-1", h.cloud.modelID)
	require.Equal(t, "en", h.cloud.language)
}

func TestRunAutoSendConfirms(t *testing.T) {
	h := newHarness(t, nil, nil)

	results := h.start(context.Background(), Options{AutoSend: true, ConfirmDelay: time.Millisecond})
	h.waitRecording(t)
	h.stop(t)
	result := awaitResult(t, results)

	require.NoError(t, result.Err)
	require.Equal(t, 1, h.deliverer.confirmCount())
}

func TestRunDeliveryFailure(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.deliverer.deliverErr = errors.New("clipboard helper missing")

	results := h.start(context.Background(), Options{})
	h.waitRecording(t)
	h.stop(t)
	result := awaitResult(t, results)

	var phaseErr *PhaseError
	require.ErrorAs(t, result.Err, &phaseErr)
	require.Equal(t, "deliver", phaseErr.Phase)
	require.Equal(t, RecordStatusFailed, h.historian.last(t).Status)
	require.Equal(t, "Output dispatch failed", h.monitor.lastError)
}

func TestHandleStatus(t *testing.T) {
	h := newHarness(t, nil, nil)

	resp := h.controller.Handle(context.Background(), ipc.Request{Command: ipc.CommandStatus})
	require.True(t, resp.OK)
	require.Equal(t, "idle", resp.State)

	results := h.start(context.Background(), Options{})
	h.waitRecording(t)

	resp = h.controller.Handle(context.Background(), ipc.Request{Command: ipc.CommandStatus})
	require.True(t, resp.OK)
	require.Equal(t, "recording", resp.State)

	h.stop(t)
	awaitResult(t, results)
}

func TestHandleRejectsStopWhenIdle(t *testing.T) {
	h := newHarness(t, nil, nil)

	resp := h.controller.Handle(context.Background(), ipc.Request{Command: ipc.CommandStop})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "cannot stop from state idle")
}

func TestHandleRejectsCancelWhenIdle(t *testing.T) {
	h := newHarness(t, nil, nil)

	resp := h.controller.Handle(context.Background(), ipc.Request{Command: ipc.CommandCancel})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "cannot cancel from state idle")
}

func TestHandleUnknownCommand(t *testing.T) {
	h := newHarness(t, nil, nil)

	resp := h.controller.Handle(context.Background(), ipc.Request{Command: "restart"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown command: restart")
}

func TestHandleToggleStopsRecording(t *testing.T) {
	h := newHarness(t, nil, nil)

	results := h.start(context.Background(), Options{})
	h.waitRecording(t)

	resp := h.controller.Handle(context.Background(), ipc.Request{Command: ipc.CommandToggle})
	require.True(t, resp.OK)

	result := awaitResult(t, results)
	require.NoError(t, result.Err)
	require.Equal(t, "hello world", result.Transcript)
}
