// Package doctor runs runtime readiness diagnostics for settings, output
// commands, audio capture, and the selected model.
package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/tmm22/VoiceInk-sub006/internal/capture"
	"github.com/tmm22/VoiceInk-sub006/internal/config"
	"github.com/tmm22/VoiceInk-sub006/internal/model"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment and configuration checks.
func Run(ctx context.Context, settings config.Settings, configPath string, registry *model.Registry) Report {
	checks := []Check{{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", configPath),
	}}

	checks = append(checks, checkCommand(settings.Output.ClipboardCmd, "output.clipboard_cmd"))
	if settings.Output.PasteEnabled && settings.Output.PasteCmd != "" {
		checks = append(checks, checkCommand(settings.Output.PasteCmd, "output.paste_cmd"))
	}
	if settings.Output.ConfirmCmd != "" {
		checks = append(checks, checkCommand(settings.Output.ConfirmCmd, "output.confirm_cmd"))
	}

	if settings.Indicator.Enable {
		checks = append(checks, checkBinary("busctl", "desktop notifications use busctl"))
	}

	checks = append(checks, checkAudioSelection(ctx, settings))
	checks = append(checks, checkSelectedModel(settings, registry))

	return Report{Checks: checks}
}

// checkCommand validates that a configured command string parses and resolves.
func checkCommand(command string, name string) Check {
	argv, err := config.ParseArgv(command)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live device selection to surface fallback issues.
func checkAudioSelection(ctx context.Context, settings config.Settings) Check {
	selection, err := capture.SelectDevice(ctx, settings.Audio.Input, settings.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkSelectedModel verifies the configured transcription model is usable.
func checkSelectedModel(settings config.Settings, registry *model.Registry) Check {
	name := strings.TrimSpace(settings.TranscriptionModel)
	if name == "" {
		return Check{Name: "model", Pass: false, Message: "no transcription model configured"}
	}

	desc, ok := registry.Get(name)
	if !ok {
		return Check{Name: "model", Pass: false, Message: fmt.Sprintf("unknown model %q", name)}
	}

	availability := registry.Availability(name)
	if !availability.Usable() {
		return Check{Name: "model", Pass: false, Message: fmt.Sprintf("%q is %s", name, availability.String())}
	}

	if desc.Kind.Local() && desc.Kind != model.BackendNative {
		if c := checkBinary("whisper-cli", "local transcription engine"); !c.Pass {
			return Check{Name: "model", Pass: false, Message: c.Message}
		}
	}
	return Check{Name: "model", Pass: true, Message: fmt.Sprintf("%q is %s", name, availability.String())}
}
