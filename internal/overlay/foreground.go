package overlay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// activeWindow carries the compositor fields needed for rule matching.
type activeWindow struct {
	Class        string `json:"class"`
	InitialClass string `json:"initialClass"`
	Title        string `json:"title"`
}

// DetectContext resolves the foreground-application fingerprint. Explicit
// environment overrides win, so hotkey bindings on non-Hyprland desktops can
// still drive overlay rules; otherwise the compositor is queried directly.
func DetectContext(ctx context.Context) Context {
	result := Context{
		App: strings.TrimSpace(os.Getenv("VOICEINK_ACTIVE_APP")),
		URL: strings.TrimSpace(os.Getenv("VOICEINK_ACTIVE_URL")),
	}
	if result.App != "" || result.URL != "" {
		return result
	}

	window, err := queryActiveWindow(ctx)
	if err != nil {
		return result
	}

	result.App = window.Class
	if result.App == "" {
		result.App = window.InitialClass
	}
	// Browsers put the page URL or title in the window title; match URL rules
	// against it when no explicit URL is published.
	result.URL = window.Title
	return result
}

// queryActiveWindow fetches the focused window from the Hyprland CLI.
func queryActiveWindow(ctx context.Context) (activeWindow, error) {
	out, err := exec.CommandContext(ctx, "hyprctl", "-j", "activewindow").CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return activeWindow{}, fmt.Errorf("hyprctl activewindow failed: %w", err)
		}
		return activeWindow{}, fmt.Errorf("hyprctl activewindow failed: %w (%s)", err, trimmed)
	}

	var window activeWindow
	if err := json.Unmarshal(out, &window); err != nil {
		return activeWindow{}, fmt.Errorf("decode hyprctl activewindow json: %w", err)
	}
	window.Class = strings.TrimSpace(window.Class)
	window.InitialClass = strings.TrimSpace(window.InitialClass)
	window.Title = strings.TrimSpace(window.Title)
	return window, nil
}
