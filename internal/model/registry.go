package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnknownModel indicates the named descriptor is not registered.
	ErrUnknownModel = errors.New("unknown model")
	// ErrNotDownloaded indicates a local model has no on-disk assets yet.
	ErrNotDownloaded = errors.New("model is not downloaded")
	// ErrNotLoadable indicates the backend kind has no load lifecycle.
	ErrNotLoadable = errors.New("backend kind is not loadable")
)

// Registry is the single source of truth for which transcription capabilities
// exist and whether each is currently usable. It owns the download lifecycle
// and enforces the one-loaded-at-a-time invariant for exclusive engines.
type Registry struct {
	logger     *slog.Logger
	env        Environment
	engine     Engine
	downloader *Downloader

	mu          sync.Mutex
	descriptors map[string]Descriptor
	downloading map[string]float64
	loadedName  string
	loading     *loadState
}

// loadState tracks one in-flight engine load so concurrent callers asking for
// the same model share a single outcome instead of tripping the exclusive
// guard. err is written before done is closed.
type loadState struct {
	name string
	err  error
	done chan struct{}
}

// NewRegistry builds a registry over the predefined catalog.
func NewRegistry(logger *slog.Logger, env Environment, engine Engine, downloader *Downloader) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	descriptors := make(map[string]Descriptor)
	for _, d := range Catalog() {
		descriptors[d.Name] = d
	}

	return &Registry{
		logger:      logger,
		env:         env,
		engine:      engine,
		downloader:  downloader,
		descriptors: descriptors,
		downloading: make(map[string]float64),
	}
}

// ListAll returns every known descriptor, ordered by category then name.
func (r *Registry) ListAll() []Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind.order() != out[j].Kind.order() {
			return out[i].Kind.order() < out[j].Kind.order()
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Get returns one descriptor by name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.descriptors[name]
	return d, ok
}

// AddCustom registers a user-configured descriptor. Re-adding the same name
// replaces the prior entry rather than duplicating it.
func (r *Registry) AddCustom(d Descriptor) error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("custom model name must not be empty")
	}
	if _, ok := CapabilityFor(d.Kind); !ok {
		return fmt.Errorf("unsupported backend kind %q", d.Kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors[d.Name] = d
	return nil
}

// Availability derives the current status of one descriptor.
func (r *Registry) Availability(name string) Availability {
	r.mu.Lock()
	desc, ok := r.descriptors[name]
	loaded := r.loadedName == name
	progress, inFlight := r.downloading[name]
	r.mu.Unlock()

	if !ok {
		return Availability{State: StateUnavailable, Reason: "unknown model"}
	}
	if loaded {
		return Availability{State: StateLoaded}
	}
	if inFlight {
		return Availability{State: StateDownloading, Progress: progress}
	}

	capability, ok := CapabilityFor(desc.Kind)
	if !ok {
		return Availability{State: StateUnavailable, Reason: "unsupported backend kind"}
	}
	return capability.Check(desc, r.env)
}

// IsAvailable reports whether the named model can serve a session now.
func (r *Registry) IsAvailable(name string) bool {
	return r.Availability(name).Usable()
}

// Download streams model assets into the managed directory, publishing
// monotonic progress through the callback and via Availability.
func (r *Registry) Download(ctx context.Context, name string, report func(float64)) error {
	desc, _, err := r.downloadable(name)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if _, inFlight := r.downloading[name]; inFlight {
		r.mu.Unlock()
		return &DownloadError{Model: name, Err: errors.New("download already in progress")}
	}
	r.downloading[name] = 0
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.downloading, name)
		r.mu.Unlock()
	}()

	err = r.downloader.Download(ctx, desc, func(fraction float64) {
		r.mu.Lock()
		r.downloading[name] = fraction
		r.mu.Unlock()
		if report != nil {
			report(fraction)
		}
	})
	if err != nil {
		r.logger.Error("model download failed", "model", name, "error", err.Error())
		return err
	}

	r.logger.Info("model downloaded", "model", name)
	return nil
}

// Load makes a local model the engine's active model. For exclusive-access
// kinds it refuses to load a second descriptor until Unload.
func (r *Registry) Load(ctx context.Context, name string) error {
	desc, capability, err := r.loadable(name)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.loadedName == name {
		r.mu.Unlock()
		return nil
	}
	if st := r.loading; st != nil {
		r.mu.Unlock()
		if st.name != name {
			return fmt.Errorf("%w: %s", ErrAlreadyLoaded, st.name)
		}
		// Another caller is loading this model already; share its outcome.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-st.done:
			return st.err
		}
	}
	if r.loadedName != "" && capability.ExclusiveAccess {
		loaded := r.loadedName
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyLoaded, loaded)
	}
	st := &loadState{name: name, done: make(chan struct{})}
	r.loading = st
	r.mu.Unlock()

	st.err = r.runLoad(ctx, name, desc)

	r.mu.Lock()
	if st.err == nil {
		r.loadedName = name
	}
	r.loading = nil
	r.mu.Unlock()
	close(st.done)

	if st.err != nil {
		return st.err
	}
	r.logger.Info("model loaded", "model", name)
	return nil
}

func (r *Registry) runLoad(ctx context.Context, name string, desc Descriptor) error {
	if !checkOnDisk(desc, r.env).Usable() {
		return fmt.Errorf("load %s: %w", name, ErrNotDownloaded)
	}
	if err := r.engine.Load(ctx, filepath.Join(r.env.ModelDir, desc.FileName)); err != nil {
		if errors.Is(err, ErrAlreadyLoaded) {
			return err
		}
		return fmt.Errorf("%w: %s: %v", ErrLoadFailed, name, err)
	}
	return nil
}

// Unload releases the engine's active model, if any.
func (r *Registry) Unload() error {
	r.mu.Lock()
	name := r.loadedName
	r.loadedName = ""
	r.mu.Unlock()

	if name == "" {
		return nil
	}
	if err := r.engine.Unload(); err != nil {
		return fmt.Errorf("unload %s: %w", name, err)
	}
	r.logger.Info("model unloaded", "model", name)
	return nil
}

// LoadedModel reports the currently loaded descriptor name, if any.
func (r *Registry) LoadedModel() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadedName
}

// Delete removes on-disk assets, unloading the model first when it is active.
// Availability reverts to NotDownloaded; the caller decides selection fallback.
func (r *Registry) Delete(name string) error {
	desc, _, err := r.downloadable(name)
	if err != nil {
		return err
	}

	if r.LoadedModel() == name {
		if err := r.Unload(); err != nil {
			return err
		}
	}

	if err := r.downloader.Remove(desc); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	r.logger.Info("model deleted", "model", name)
	return nil
}

// Transcribe runs one local inference pass after ensuring the model is loaded.
// Callers must serialize through the inference coordinator.
func (r *Registry) Transcribe(ctx context.Context, name string, audioPath string, language string) (string, error) {
	desc, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	if !desc.Kind.Local() {
		return "", fmt.Errorf("model %s is not a local backend", name)
	}

	if r.LoadedModel() != name {
		if r.LoadedModel() != "" {
			if err := r.Unload(); err != nil {
				return "", err
			}
		}
		if err := r.Load(ctx, name); err != nil {
			return "", err
		}
	}

	return r.engine.Transcribe(ctx, audioPath, language)
}

// Refresh re-derives on-disk state. It never duplicates descriptors and keeps
// any loaded selection whose assets are still present.
func (r *Registry) Refresh() {
	r.mu.Lock()
	loaded := r.loadedName
	var desc Descriptor
	ok := false
	if loaded != "" {
		desc, ok = r.descriptors[loaded]
	}
	r.mu.Unlock()

	if loaded == "" || !ok {
		return
	}
	if desc.Kind.Local() && desc.FileName != "" && !checkOnDisk(desc, r.env).Usable() {
		r.logger.Warn("loaded model assets missing; unloading", "model", loaded)
		_ = r.Unload()
	}
}

// downloadable resolves a descriptor whose kind supports downloads.
func (r *Registry) downloadable(name string) (Descriptor, Capability, error) {
	desc, ok := r.Get(name)
	if !ok {
		return Descriptor{}, Capability{}, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	capability, ok := CapabilityFor(desc.Kind)
	if !ok || !capability.RequiresDownload {
		return Descriptor{}, Capability{}, fmt.Errorf("model %s (%s) has no download lifecycle", name, desc.Kind)
	}
	return desc, capability, nil
}

// loadable resolves a descriptor whose kind supports engine loading.
func (r *Registry) loadable(name string) (Descriptor, Capability, error) {
	desc, ok := r.Get(name)
	if !ok {
		return Descriptor{}, Capability{}, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	capability, ok := CapabilityFor(desc.Kind)
	if !ok || !capability.RequiresDownload {
		return Descriptor{}, Capability{}, fmt.Errorf("%w: %s", ErrNotLoadable, name)
	}
	return desc, capability, nil
}
