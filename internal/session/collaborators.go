package session

import (
	"context"
	"time"
)

// Recording is the finalized capture output consumed by the orchestrator.
type Recording struct {
	AudioPath string
	Duration  time.Duration
	Bytes     int64
	Device    string
}

// Recorder abstracts the audio capture collaborator.
type Recorder interface {
	Start(ctx context.Context, outputPath string) error
	Stop(ctx context.Context) (Recording, error)
	Cancel(ctx context.Context) error
}

// CloudTranscriber abstracts remote transcription for cloud backend kinds.
type CloudTranscriber interface {
	Transcribe(ctx context.Context, audioPath string, provider string, modelID string, endpoint string, language string) (string, error)
}

// EnhanceContext carries contextual metadata alongside the transcript.
type EnhanceContext struct {
	Provider string
	Model    string
	PromptID string
	Language string
	Duration time.Duration
}

// Enhancer abstracts the optional text enhancement collaborator.
type Enhancer interface {
	Enhance(ctx context.Context, text string, meta EnhanceContext) (string, error)
}

// Deliverer hands final text to the active text field, and optionally issues a
// synthetic confirmation keystroke.
type Deliverer interface {
	Deliver(ctx context.Context, text string) error
	Confirm(ctx context.Context) error
}

// DeliverFunc adapts a function to the Deliverer interface without confirm support.
type DeliverFunc func(context.Context, string) error

func (f DeliverFunc) Deliver(ctx context.Context, text string) error { return f(ctx, text) }

func (DeliverFunc) Confirm(context.Context) error { return nil }

// Record is the terminal session state handed to history persistence.
type Record struct {
	ID                  string        `json:"id"`
	StartedAt           time.Time     `json:"started_at"`
	AudioPath           string        `json:"audio_path,omitempty"`
	ModelName           string        `json:"model_name"`
	Provider            string        `json:"provider,omitempty"`
	PromptID            string        `json:"prompt_id,omitempty"`
	CaptureDuration     time.Duration `json:"capture_duration"`
	TranscribeDuration  time.Duration `json:"transcribe_duration"`
	EnhanceDuration     time.Duration `json:"enhance_duration"`
	Text                string        `json:"text"`
	Enhanced            string        `json:"enhanced,omitempty"`
	EnhancementFailure  string        `json:"enhancement_failure,omitempty"`
	EnhancementModel    string        `json:"enhancement_model,omitempty"`
	EnhancementProvider string        `json:"enhancement_provider,omitempty"`
	Status              string        `json:"status"`
}

// History record statuses.
const (
	RecordStatusPending   = "pending"
	RecordStatusComplete  = "complete"
	RecordStatusFailed    = "failed"
	RecordStatusCancelled = "cancelled"
)

// failureMarker prefixes the text of failed history records.
const failureMarker = "[failed] "

// Historian persists session history records.
type Historian interface {
	Record(ctx context.Context, rec Record) error
}

// HistorianFunc adapts a function to the Historian interface.
type HistorianFunc func(context.Context, Record) error

func (f HistorianFunc) Record(ctx context.Context, rec Record) error { return f(ctx, rec) }

// Monitor is the session-facing subset of progress presentation.
type Monitor interface {
	ShowRecording(context.Context)
	ShowTranscribing(context.Context)
	ShowEnhancing(context.Context)
	ShowError(context.Context, string)
	Hide(context.Context)
}

// noopMonitor preserves session flow when no monitor is wired.
type noopMonitor struct{}

func (noopMonitor) ShowRecording(context.Context)     {}
func (noopMonitor) ShowTranscribing(context.Context)  {}
func (noopMonitor) ShowEnhancing(context.Context)     {}
func (noopMonitor) ShowError(context.Context, string) {}
func (noopMonitor) Hide(context.Context)              {}
