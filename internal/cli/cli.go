// Package cli parses voiceink command-line arguments.
package cli

import (
	"fmt"
	"strings"
)

// Command identifies one top-level voiceink action.
type Command string

const (
	CommandToggle   Command = "toggle"
	CommandStop     Command = "stop"
	CommandCancel   Command = "cancel"
	CommandStatus   Command = "status"
	CommandModels   Command = "models"
	CommandDownload Command = "download"
	CommandDelete   Command = "delete"
	CommandDevices  Command = "devices"
	CommandHistory  Command = "history"
	CommandDoctor   Command = "doctor"
	CommandVersion  Command = "version"
)

// Parsed is the result of argument parsing.
type Parsed struct {
	Command    Command
	ConfigPath string
	ModelName  string
	ShowHelp   bool
}

var commands = map[Command]bool{
	CommandToggle:   true,
	CommandStop:     true,
	CommandCancel:   true,
	CommandStatus:   true,
	CommandModels:   true,
	CommandDownload: true,
	CommandDelete:   true,
	CommandDevices:  true,
	CommandHistory:  true,
	CommandDoctor:   true,
	CommandVersion:  true,
}

// commandsWithModelArg take exactly one model-name positional argument.
var commandsWithModelArg = map[Command]bool{
	CommandDownload: true,
	CommandDelete:   true,
}

// Parse interprets args (without the program name). No command defaults to
// toggle, matching the push-to-talk hotkey binding.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandToggle}
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-h" || arg == "--help" || arg == "help":
			parsed.ShowHelp = true
			return parsed, nil
		case arg == "--config":
			if i+1 >= len(args) {
				return Parsed{}, fmt.Errorf("--config requires a path argument")
			}
			i++
			parsed.ConfigPath = args[i]
		case strings.HasPrefix(arg, "--config="):
			value := strings.TrimPrefix(arg, "--config=")
			if value == "" {
				return Parsed{}, fmt.Errorf("--config requires a path argument")
			}
			parsed.ConfigPath = value
		case strings.HasPrefix(arg, "-"):
			return Parsed{}, fmt.Errorf("unknown flag %q", arg)
		default:
			positional = append(positional, arg)
		}
	}

	if len(positional) == 0 {
		return parsed, nil
	}

	command := Command(positional[0])
	if !commands[command] {
		return Parsed{}, fmt.Errorf("unknown command %q", positional[0])
	}
	parsed.Command = command
	positional = positional[1:]

	if commandsWithModelArg[command] {
		if len(positional) != 1 {
			return Parsed{}, fmt.Errorf("%s requires exactly one model name", command)
		}
		parsed.ModelName = positional[0]
		return parsed, nil
	}

	if len(positional) > 0 {
		return Parsed{}, fmt.Errorf("unexpected argument %q", positional[0])
	}
	return parsed, nil
}

// HelpText returns usage text for the named binary.
func HelpText(binary string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Usage: %s [command] [flags]\n\n", binary)
	b.WriteString("Commands:\n")
	b.WriteString("  toggle            start a dictation session, or stop the active one (default)\n")
	b.WriteString("  stop              stop the active session and transcribe\n")
	b.WriteString("  cancel            cancel the active session, discarding audio\n")
	b.WriteString("  status            print the active session state\n")
	b.WriteString("  models            list known models and their availability\n")
	b.WriteString("  download <model>  download one model's assets\n")
	b.WriteString("  delete <model>    delete one model's downloaded assets\n")
	b.WriteString("  devices           list audio input devices\n")
	b.WriteString("  history           print recent session records\n")
	b.WriteString("  doctor            run environment readiness checks\n")
	b.WriteString("  version           print version information\n")
	b.WriteString("\nFlags:\n")
	b.WriteString("  --config <path>   settings file path (default: XDG config directory)\n")
	b.WriteString("  -h, --help        show this help\n")
	return b.String()
}
