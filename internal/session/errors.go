package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNoModelSelected indicates no usable transcription model is configured.
	// The session never starts.
	ErrNoModelSelected = errors.New("no transcription model selected")
	// ErrEmptyTranscript indicates stop completed but no usable speech was recognized.
	ErrEmptyTranscript = errors.New("no speech recognized; check microphone input or mute state")
	// ErrCancelled indicates the session was cancelled at a phase boundary.
	ErrCancelled = errors.New("session cancelled")
)

// PhaseError wraps a collaborator failure with the phase and model it occurred
// in, so persisted history records stay actionable.
type PhaseError struct {
	Phase string
	Model string
	Err   error
}

func (e *PhaseError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("%s (model=%s): %v", e.Phase, e.Model, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// wrapPhase attaches phase/model context to a collaborator error.
func wrapPhase(phase string, model string, err error) error {
	if err == nil {
		return nil
	}
	return &PhaseError{Phase: phase, Model: model, Err: err}
}
