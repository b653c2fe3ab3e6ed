package capture

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordStreamAccumulatesPCM(t *testing.T) {
	rec := &recordStream{
		device: Device{ID: "mic-1"},
		done:   make(chan struct{}),
	}

	first := []byte{1, 2, 3, 4}
	second := []byte{5, 6}

	n, err := rec.Write(first)
	require.NoError(t, err)
	require.Equal(t, len(first), n)

	n, err = rec.Write(second)
	require.NoError(t, err)
	require.Equal(t, len(second), n)

	pcm := rec.stop()
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, pcm)
}

func TestRecordStreamWriteAfterStopReturnsEOF(t *testing.T) {
	rec := &recordStream{done: make(chan struct{})}

	_, err := rec.Write([]byte{1, 2})
	require.NoError(t, err)
	rec.stop()

	n, err := rec.Write([]byte{3, 4})
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, io.EOF)

	// Late writes never reach the captured PCM.
	require.Equal(t, []byte{1, 2}, rec.stop())
}

func TestRecordStreamStopIsIdempotent(t *testing.T) {
	rec := &recordStream{done: make(chan struct{})}
	_, err := rec.Write([]byte{9})
	require.NoError(t, err)

	require.Equal(t, []byte{9}, rec.stop())
	require.Equal(t, []byte{9}, rec.stop())

	select {
	case <-rec.done:
	default:
		t.Fatal("done channel still open after stop")
	}
}

func TestOpenStreamFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := openStream(context.Background(), Device{ID: "mic-1"})
	require.Error(t, err)
}
