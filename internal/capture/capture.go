package capture

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// sampleRate is fixed at 16kHz mono s16, the input format the transcription
// backends expect; the session only ever consumes the finished WAV file.
const sampleRate = 16000

// recordStream owns one Pulse connection and accumulates raw PCM in memory
// until stopped. It is the pulse.NewWriter sink, so Write runs on the Pulse
// client's goroutine.
type recordStream struct {
	device Device
	client *pulse.Client
	stream *pulse.RecordStream

	mu      sync.Mutex
	pcm     []byte
	stopped bool

	done chan struct{}
}

// openStream connects to Pulse and starts recording from the selected device.
// Cancelling ctx stops the stream.
func openStream(ctx context.Context, selected Device) (*recordStream, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	rec := &recordStream{
		device: selected,
		client: client,
		done:   make(chan struct{}),
	}

	stream, err := client.NewRecord(
		pulse.NewWriter(rec, pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(sampleRate),
		pulse.RecordMediaName("voiceink dictation"),
	)
	if err != nil {
		rec.stop()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	rec.stream = stream
	stream.Start()

	go func() {
		select {
		case <-ctx.Done():
			rec.stop()
		case <-rec.done:
		}
	}()

	return rec, nil
}

// Write accepts one PCM buffer from Pulse. io.EOF ends the stream's writer
// after stop.
func (r *recordStream) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return 0, io.EOF
	}
	r.pcm = append(r.pcm, p...)
	return len(p), nil
}

// stop halts recording, releases the Pulse connection, and returns the
// captured PCM. Safe to call more than once.
func (r *recordStream) stop() []byte {
	r.mu.Lock()
	alreadyStopped := r.stopped
	r.stopped = true
	r.mu.Unlock()

	if !alreadyStopped {
		close(r.done)
		if r.stream != nil {
			r.stream.Stop()
			r.stream.Close()
		}
		if r.client != nil {
			r.client.Close()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]byte, len(r.pcm))
	copy(out, r.pcm)
	return out
}
