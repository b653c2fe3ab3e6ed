package overlay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectContextEnvironmentOverride(t *testing.T) {
	t.Setenv("VOICEINK_ACTIVE_APP", "  firefox  ")
	t.Setenv("VOICEINK_ACTIVE_URL", "https://docs.google.com")

	got := DetectContext(context.Background())
	require.Equal(t, "firefox", got.App)
	require.Equal(t, "https://docs.google.com", got.URL)
}

func TestDetectContextAppOnlyOverrideSkipsCompositor(t *testing.T) {
	t.Setenv("VOICEINK_ACTIVE_APP", "obsidian")
	t.Setenv("VOICEINK_ACTIVE_URL", "")

	got := DetectContext(context.Background())
	require.Equal(t, "obsidian", got.App)
	require.Empty(t, got.URL)
}

func TestDetectContextWithoutCompositor(t *testing.T) {
	t.Setenv("VOICEINK_ACTIVE_APP", "")
	t.Setenv("VOICEINK_ACTIVE_URL", "")
	t.Setenv("PATH", t.TempDir())

	got := DetectContext(context.Background())
	require.Empty(t, got.App)
	require.Empty(t, got.URL)
}
