package doctor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReportOK(t *testing.T) {
	require.True(t, Report{}.OK())
	require.True(t, Report{Checks: []Check{{Name: "a", Pass: true}}}.OK())
	require.False(t, Report{Checks: []Check{
		{Name: "a", Pass: true},
		{Name: "b", Pass: false},
	}}.OK())
}

func TestReportString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "config", Pass: true, Message: `loaded "/tmp/config.json"`},
		{Name: "model", Pass: false, Message: "no transcription model configured"},
	}}

	require.Equal(t,
		"[OK] config: loaded \"/tmp/config.json\"\n"+
			"[FAIL] model: no transcription model configured",
		report.String())
}

// installBinary drops an executable stub into a directory prepended to PATH.
func installBinary(t *testing.T, name string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
}

func TestCheckCommand(t *testing.T) {
	installBinary(t, "fake-clip")

	check := checkCommand("fake-clip --trim-newline", "output.clipboard_cmd")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "fake-clip")

	check = checkCommand("definitely-not-installed-anywhere", "output.clipboard_cmd")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "binary not found in PATH")

	check = checkCommand("", "output.clipboard_cmd")
	require.False(t, check.Pass)
	require.Equal(t, "command is empty", check.Message)

	check = checkCommand(`broken "unterminated`, "output.clipboard_cmd")
	require.False(t, check.Pass)
}

func TestCheckBinary(t *testing.T) {
	installBinary(t, "fake-busctl")

	check := checkBinary("fake-busctl", "desktop notifications use busctl")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "desktop notifications use busctl")

	check = checkBinary("missing-binary-xyz", "whatever")
	require.False(t, check.Pass)
}
