package capture

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"
)

// WritePCM16WAV writes raw little-endian PCM bytes to path with a WAV header.
func WritePCM16WAV(path string, pcm []byte, rate int, channels int) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create wav %q: %w", path, err)
	}
	defer file.Close()

	if channels <= 0 {
		channels = 1
	}
	const bitsPerSample = 16
	byteRate := rate * channels * (bitsPerSample / 8)
	blockAlign := channels * (bitsPerSample / 8)

	header := make([]byte, 44)
	copy(header[0:4], []byte("RIFF"))
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], []byte("WAVE"))
	copy(header[12:16], []byte("fmt "))
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(rate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], []byte("data"))
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))

	if _, err := file.Write(header); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := file.Write(pcm); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return nil
}

// PCMDuration converts a PCM byte count to wall-clock audio duration.
func PCMDuration(bytes int64, rate int, channels int) time.Duration {
	if rate <= 0 || channels <= 0 || bytes <= 0 {
		return 0
	}
	samples := bytes / int64(2*channels)
	return time.Duration(samples) * time.Second / time.Duration(rate)
}
