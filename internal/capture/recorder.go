package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/tmm22/VoiceInk-sub006/internal/config"
	"github.com/tmm22/VoiceInk-sub006/internal/session"
)

// PulseRecorder adapts PulseAudio capture to the session Recorder contract.
// One recorder serves at most one active capture at a time.
type PulseRecorder struct {
	logger *slog.Logger
	store  *config.Store

	mu         sync.Mutex
	active     *recordStream
	outputPath string
}

// NewPulseRecorder builds a recorder that resolves devices from live settings.
func NewPulseRecorder(logger *slog.Logger, store *config.Store) *PulseRecorder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &PulseRecorder{logger: logger, store: store}
}

// Start selects an input device and begins streaming PCM into memory.
func (r *PulseRecorder) Start(ctx context.Context, outputPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return errors.New("capture already in progress")
	}

	settings, err := r.store.Get()
	if err != nil {
		return fmt.Errorf("read audio settings: %w", err)
	}

	selection, err := SelectDevice(ctx, settings.Audio.Input, settings.Audio.Fallback)
	if err != nil {
		return err
	}
	if selection.Warning != "" {
		r.logger.Warn("audio device fallback", "detail", selection.Warning)
	}

	stream, err := openStream(ctx, selection.Device)
	if err != nil {
		return err
	}

	r.active = stream
	r.outputPath = outputPath

	r.logger.Info("capture started",
		"device", selection.Device.ID,
		"fallback", selection.Fallback,
		"output", outputPath)
	return nil
}

// Stop finalizes the capture into a WAV file and reports recording metadata.
func (r *PulseRecorder) Stop(_ context.Context) (session.Recording, error) {
	stream, outputPath, err := r.take()
	if err != nil {
		return session.Recording{}, err
	}

	pcm := stream.stop()
	if err := WritePCM16WAV(outputPath, pcm, sampleRate, 1); err != nil {
		return session.Recording{}, err
	}

	recording := session.Recording{
		AudioPath: outputPath,
		Duration:  PCMDuration(int64(len(pcm)), sampleRate, 1),
		Bytes:     int64(len(pcm)),
		Device:    stream.device.ID,
	}

	r.logger.Info("capture stopped",
		"device", recording.Device,
		"bytes", recording.Bytes,
		"duration_ms", recording.Duration.Milliseconds())
	return recording, nil
}

// Cancel discards the in-flight capture and removes any partial output file.
func (r *PulseRecorder) Cancel(_ context.Context) error {
	stream, outputPath, err := r.take()
	if err != nil {
		return nil
	}

	stream.stop()
	if removeErr := os.Remove(outputPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		r.logger.Warn("remove cancelled capture file failed", "path", outputPath, "error", removeErr.Error())
	}

	r.logger.Info("capture cancelled", "device", stream.device.ID)
	return nil
}

// take detaches the active capture so Stop and Cancel are race-free.
func (r *PulseRecorder) take() (*recordStream, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		return nil, "", errors.New("no capture in progress")
	}
	stream := r.active
	outputPath := r.outputPath
	r.active = nil
	r.outputPath = ""
	return stream, outputPath, nil
}
