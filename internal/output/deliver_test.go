package output

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tmm22/VoiceInk-sub006/internal/config"
)

func writeStdinCaptureScript(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "capture-stdin.sh")
	script := `#!/usr/bin/env bash
set -euo pipefail
cat > "$1"
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func writeFailScript(t *testing.T, message string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "fail.sh")
	script := "#!/usr/bin/env bash\nset -euo pipefail\necho \"" + message + "\" >&2\nexit 1\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func writeTouchScript(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "touch.sh")
	script := `#!/usr/bin/env bash
set -euo pipefail
touch "$1"
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func newOutputStore(t *testing.T, mutate func(*config.OutputSettings)) *config.Store {
	t.Helper()

	store := config.NewStore(filepath.Join(t.TempDir(), "config.json"))
	_, err := store.Update(func(s *config.Settings) {
		s.Output = config.OutputSettings{}
		mutate(&s.Output)
	})
	require.NoError(t, err)
	return store
}

func TestRunWithInputWritesStdin(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)
	outputPath := filepath.Join(t.TempDir(), "stdin.txt")

	err := runWithInput(context.Background(), []string{scriptPath, outputPath}, "hello from voiceink")
	require.NoError(t, err)

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	require.Equal(t, "hello from voiceink", string(data))
}

func TestRunWithInputRejectsEmptyArgv(t *testing.T) {
	err := runWithInput(context.Background(), nil, "payload")
	require.Error(t, err)
	require.Contains(t, err.Error(), "argv cannot be empty")
}

func TestDeliverWritesClipboardWhenPasteDisabled(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)
	clipboardPath := filepath.Join(t.TempDir(), "clipboard.txt")

	store := newOutputStore(t, func(out *config.OutputSettings) {
		out.ClipboardCmd = scriptPath + " " + clipboardPath
		out.PasteEnabled = false
	})

	deliverer := NewExecDeliverer(nil, store)
	require.NoError(t, deliverer.Deliver(context.Background(), "captured transcript"))

	data, err := os.ReadFile(clipboardPath)
	require.NoError(t, err)
	require.Equal(t, "captured transcript", string(data))
}

func TestDeliverSkipsEmptyText(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)
	clipboardPath := filepath.Join(t.TempDir(), "clipboard.txt")

	store := newOutputStore(t, func(out *config.OutputSettings) {
		out.ClipboardCmd = scriptPath + " " + clipboardPath
	})

	deliverer := NewExecDeliverer(nil, store)
	require.NoError(t, deliverer.Deliver(context.Background(), ""))
	require.NoFileExists(t, clipboardPath)
}

func TestDeliverClipboardFailureAborts(t *testing.T) {
	store := newOutputStore(t, func(out *config.OutputSettings) {
		out.ClipboardCmd = writeFailScript(t, "clipboard failed")
	})

	deliverer := NewExecDeliverer(nil, store)
	err := deliverer.Deliver(context.Background(), "captured transcript")
	require.Error(t, err)
	require.Contains(t, err.Error(), "set clipboard")
}

func TestDeliverPasteFailureIsNonFatal(t *testing.T) {
	clipboardScript := writeStdinCaptureScript(t)
	clipboardPath := filepath.Join(t.TempDir(), "clipboard.txt")

	store := newOutputStore(t, func(out *config.OutputSettings) {
		out.ClipboardCmd = clipboardScript + " " + clipboardPath
		out.PasteEnabled = true
		out.PasteCmd = writeFailScript(t, "paste failed")
	})

	deliverer := NewExecDeliverer(nil, store)
	require.NoError(t, deliverer.Deliver(context.Background(), "captured transcript"))

	data, err := os.ReadFile(clipboardPath)
	require.NoError(t, err)
	require.Equal(t, "captured transcript", string(data))
}

func TestDeliverDispatchesPaste(t *testing.T) {
	clipboardScript := writeStdinCaptureScript(t)
	clipboardPath := filepath.Join(t.TempDir(), "clipboard.txt")
	pasteScript := writeTouchScript(t)
	pasteMarker := filepath.Join(t.TempDir(), "pasted")

	store := newOutputStore(t, func(out *config.OutputSettings) {
		out.ClipboardCmd = clipboardScript + " " + clipboardPath
		out.PasteEnabled = true
		out.PasteCmd = pasteScript + " " + pasteMarker
	})

	deliverer := NewExecDeliverer(nil, store)
	require.NoError(t, deliverer.Deliver(context.Background(), "captured transcript"))
	require.FileExists(t, pasteMarker)
}

func TestConfirmNoCommandIsNoOp(t *testing.T) {
	store := newOutputStore(t, func(out *config.OutputSettings) {
		out.ClipboardCmd = "true"
		out.ConfirmCmd = ""
	})

	deliverer := NewExecDeliverer(nil, store)
	require.NoError(t, deliverer.Confirm(context.Background()))
}

func TestConfirmRunsConfiguredCommand(t *testing.T) {
	confirmScript := writeTouchScript(t)
	confirmMarker := filepath.Join(t.TempDir(), "confirmed")

	store := newOutputStore(t, func(out *config.OutputSettings) {
		out.ClipboardCmd = "true"
		out.ConfirmCmd = confirmScript + " " + confirmMarker
	})

	deliverer := NewExecDeliverer(nil, store)
	require.NoError(t, deliverer.Confirm(context.Background()))
	require.FileExists(t, confirmMarker)
}

func TestConfirmPropagatesFailure(t *testing.T) {
	store := newOutputStore(t, func(out *config.OutputSettings) {
		out.ClipboardCmd = "true"
		out.ConfirmCmd = writeFailScript(t, "confirm failed")
	})

	deliverer := NewExecDeliverer(nil, store)
	require.Error(t, deliverer.Confirm(context.Background()))
}
