// Package app wires the voiceink subsystems together and dispatches CLI
// commands, forwarding session control to an existing owner over IPC when one
// is already running.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tmm22/VoiceInk-sub006/internal/capture"
	"github.com/tmm22/VoiceInk-sub006/internal/cli"
	"github.com/tmm22/VoiceInk-sub006/internal/cloud"
	"github.com/tmm22/VoiceInk-sub006/internal/config"
	"github.com/tmm22/VoiceInk-sub006/internal/doctor"
	"github.com/tmm22/VoiceInk-sub006/internal/history"
	"github.com/tmm22/VoiceInk-sub006/internal/indicator"
	"github.com/tmm22/VoiceInk-sub006/internal/inference"
	"github.com/tmm22/VoiceInk-sub006/internal/ipc"
	"github.com/tmm22/VoiceInk-sub006/internal/logging"
	"github.com/tmm22/VoiceInk-sub006/internal/model"
	"github.com/tmm22/VoiceInk-sub006/internal/output"
	"github.com/tmm22/VoiceInk-sub006/internal/overlay"
	"github.com/tmm22/VoiceInk-sub006/internal/session"
	"github.com/tmm22/VoiceInk-sub006/internal/version"
)

// Runner carries command output streams and an optional logger override.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// Execute runs one CLI invocation and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("voiceink"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("voiceink"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	// API keys may live in a local .env alongside the shell environment.
	_ = godotenv.Load()

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	configPath, err := config.ResolvePath(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	store := config.NewStore(configPath)
	settings, err := store.Load()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load settings failed", "path", configPath, "error", err.Error())
		return 1
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", configPath,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStop:
		return r.forwardOrFail(ctx, ipc.CommandStop)
	case cli.CommandCancel:
		return r.forwardOrFail(ctx, ipc.CommandCancel)
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandHistory:
		return r.commandHistory(ctx)
	case cli.CommandModels:
		return r.commandModels(settings, logger)
	case cli.CommandDownload:
		return r.commandDownload(ctx, settings, logger, parsed.ModelName)
	case cli.CommandDelete:
		return r.commandDelete(settings, logger, parsed.ModelName)
	case cli.CommandDoctor:
		return r.commandDoctor(ctx, settings, configPath, logger)
	case cli.CommandToggle:
		return r.commandToggle(ctx, store, settings, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// buildRegistry assembles the model registry from settings and environment.
func buildRegistry(settings config.Settings, logger *slog.Logger) (*model.Registry, error) {
	modelDir, err := config.ResolveModelDir(settings.ModelDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(modelDir, 0o700); err != nil {
		return nil, fmt.Errorf("create model directory: %w", err)
	}

	env := model.Environment{
		ModelDir:    modelDir,
		Credentials: config.NewCredentials(),
		// No OS speech recognizer is wired on this platform; the native
		// catalog entry surfaces as unavailable instead of failing at load.
		NativeSupported: func() bool { return false },
	}
	engine := model.NewExecEngine("whisper-cli")
	downloader := model.NewDownloader(modelDir, nil)
	return model.NewRegistry(logger, env, engine, downloader), nil
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := capture.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		fmt.Fprintf(r.Stdout, "%s id=%s | description=%q | state=%s | available=%t | muted=%t\n",
			defaultMark, device.ID, device.Description, device.State, device.Available, device.Muted)
	}
	return 0
}

func (r Runner) commandModels(settings config.Settings, logger *slog.Logger) int {
	registry, err := buildRegistry(settings, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	selected := strings.TrimSpace(settings.TranscriptionModel)
	for _, desc := range registry.ListAll() {
		mark := " "
		if desc.Name == selected {
			mark = "*"
		}
		availability := registry.Availability(desc.Name)
		fmt.Fprintf(r.Stdout, "%s %-24s %-8s %s\n", mark, desc.Name, desc.Kind, availability.String())
	}
	return 0
}

func (r Runner) commandDownload(ctx context.Context, settings config.Settings, logger *slog.Logger, name string) int {
	registry, err := buildRegistry(settings, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	lastPercent := -1
	err = registry.Download(ctx, name, func(progress float64) {
		percent := int(progress * 100)
		if percent != lastPercent {
			lastPercent = percent
			fmt.Fprintf(r.Stdout, "\rdownloading %s: %3d%%", name, percent)
		}
	})
	fmt.Fprintln(r.Stdout)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Fprintf(r.Stdout, "downloaded %s\n", name)
	return 0
}

func (r Runner) commandDelete(settings config.Settings, logger *slog.Logger, name string) int {
	registry, err := buildRegistry(settings, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if err := registry.Delete(name); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(r.Stdout, "deleted %s\n", name)
	return 0
}

func (r Runner) commandHistory(ctx context.Context) int {
	path, err := history.ResolvePath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	records, err := history.NewStore(path).List(ctx, 20)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(records) == 0 {
		fmt.Fprintln(r.Stdout, "no history")
		return 0
	}

	for _, rec := range records {
		text := rec.Text
		if rec.Enhanced != "" {
			text = rec.Enhanced
		}
		fmt.Fprintf(r.Stdout, "%s  %-9s  %-20s  %s  %s\n",
			rec.StartedAt.Format(time.RFC3339),
			rec.Status,
			rec.ModelName,
			formatDuration(rec.CaptureDuration),
			strings.TrimSpace(text))
	}
	return 0
}

func (r Runner) commandDoctor(ctx context.Context, settings config.Settings, configPath string, logger *slog.Logger) int {
	registry, err := buildRegistry(settings, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	report := doctor.Run(ctx, settings, configPath, registry)
	fmt.Fprintln(r.Stdout, report.String())
	if report.OK() {
		return 0
	}
	return 1
}

func (r Runner) commandStatus(ctx context.Context) int {
	resp, handled, err := tryForward(ctx, ipc.ResolveSocketPath(), ipc.CommandStatus)
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		fmt.Fprintln(r.Stdout, resp.State)
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command ipc.Command) int {
	resp, handled, err := tryForward(ctx, ipc.ResolveSocketPath(), command)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no active voiceink session")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func (r Runner) commandToggle(ctx context.Context, store *config.Store, settings config.Settings, logger *slog.Logger) int {
	socketPath := ipc.ResolveSocketPath()

	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandToggle)
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.Message != "" {
			fmt.Fprintln(r.Stdout, resp.Message)
		}
		return 0
	}

	listener, err := ipc.Acquire(ctx, socketPath)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			resp, _, forwardErr := tryForward(ctx, socketPath, ipc.CommandToggle)
			if forwardErr != nil {
				fmt.Fprintf(r.Stderr, "error: %v\n", forwardErr)
				return 1
			}
			if resp.Message != "" {
				fmt.Fprintln(r.Stdout, resp.Message)
			}
			return 0
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer ipc.Release(listener, socketPath)

	registry, err := buildRegistry(settings, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	coordinator := inference.NewCoordinator(logger, inference.RunnerFunc(
		func(runCtx context.Context, req inference.Request) (string, error) {
			return registry.Transcribe(runCtx, req.Model, req.AudioPath, req.Language)
		}))

	overlayPath, err := overlay.ResolvePath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	overlays, err := overlay.NewManager(logger, store, overlayPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer overlays.Close()

	historyPath, err := history.ResolvePath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	credentials := config.NewCredentials()
	controller := session.NewController(
		logger,
		store,
		registry,
		coordinator,
		capture.NewPulseRecorder(logger, store),
		&cloudTranscriber{client: cloud.NewTranscriptionClient(), credentials: credentials},
		&cloudEnhancer{client: cloud.NewEnhancementClient(), credentials: credentials},
		output.NewExecDeliverer(logger, store),
		history.NewStore(historyPath),
		indicator.New(settings.Indicator, logger),
	)

	opts := r.applyOverlay(ctx, logger, overlays, settings)
	defer func() {
		if err := overlays.End(); err != nil {
			logger.Warn("end overlay session failed", "error", err.Error())
		}
	}()

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	result := controller.Run(ctx, opts)
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	logSessionResult(logger, result)

	if result.Cancelled {
		fmt.Fprintln(r.Stdout, "cancelled")
		return 0
	}
	if result.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}
	if strings.TrimSpace(result.Transcript) != "" {
		fmt.Fprintln(r.Stdout, strings.TrimSpace(result.Transcript))
	}
	return 0
}

// applyOverlay begins an overlay session when a configured rule matches the
// foreground application context.
func (r Runner) applyOverlay(ctx context.Context, logger *slog.Logger, overlays *overlay.Manager, settings config.Settings) session.Options {
	opts := session.Options{}
	if len(settings.Overlays) == 0 {
		return opts
	}

	detectCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	triggerCtx := overlay.DetectContext(detectCtx)
	if triggerCtx.App == "" && triggerCtx.URL == "" {
		return opts
	}

	rule, matched := overlay.Match(settings.Overlays, triggerCtx)
	if !matched {
		return opts
	}

	sess, err := overlays.Begin(rule)
	if err != nil {
		logger.Warn("begin overlay session failed", "rule", rule.Name, "error", err.Error())
		return opts
	}

	logger.Info("overlay rule matched", "rule", rule.Name, "id", sess.ID, "auto_send", sess.AutoSend)
	opts.AutoSend = sess.AutoSend
	return opts
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"state", result.State,
		"cancelled", result.Cancelled,
		"model", result.ModelName,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"audio_device", result.AudioDevice,
		"bytes_captured", result.BytesCaptured,
		"transcribe_ms", result.TranscribeDuration.Milliseconds(),
		"enhance_ms", result.EnhanceDuration.Milliseconds(),
		"transcript_length", len(result.Transcript),
	}

	if result.Err != nil {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}

func tryForward(ctx context.Context, socketPath string, command ipc.Command) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, command, 220*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) || isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
