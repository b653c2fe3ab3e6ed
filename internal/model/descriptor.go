// Package model tracks transcription backends: which exist, whether each is
// usable, and the download/load/unload lifecycle of local engines.
package model

import "fmt"

// BackendKind is the closed set of transcription capability categories.
type BackendKind string

const (
	// BackendLocal is a downloadable binary model run by the exclusive-access
	// native engine.
	BackendLocal BackendKind = "local"
	// BackendNeural is the alternative local neural engine; its models ship as
	// a weights file plus a tokenizer asset.
	BackendNeural BackendKind = "neural"
	// BackendNative is the OS-provided recognizer.
	BackendNative BackendKind = "native"
	// BackendCloud is a hosted provider selected by descriptor metadata.
	BackendCloud BackendKind = "cloud"
	// BackendCustom is a user-configured OpenAI-compatible endpoint.
	BackendCustom BackendKind = "custom"
)

// Local reports whether the kind runs through the local inference engine.
func (k BackendKind) Local() bool {
	return k == BackendLocal || k == BackendNeural || k == BackendNative
}

// order positions kinds for stable category-then-name listing.
func (k BackendKind) order() int {
	switch k {
	case BackendLocal:
		return 0
	case BackendNeural:
		return 1
	case BackendNative:
		return 2
	case BackendCloud:
		return 3
	case BackendCustom:
		return 4
	default:
		return 5
	}
}

// Descriptor is the immutable identity of one transcription capability.
// Registry entries never mutate identity, only derived availability.
type Descriptor struct {
	Name         string
	DisplayName  string
	Kind         BackendKind
	Multilingual bool
	Languages    map[string]string

	// Downloadable kinds.
	FileName     string
	URL          string
	SizeBytes    int64
	TokenizerURL string

	// Cloud kinds.
	Provider string
	ModelID  string
	Endpoint string
}

// TokenizerFileName derives the on-disk tokenizer asset name.
func (d Descriptor) TokenizerFileName() string {
	if d.TokenizerURL == "" {
		return ""
	}
	return d.Name + "-tokenizer.json"
}

// State enumerates derived per-descriptor availability.
type State string

const (
	StateNotDownloaded State = "not_downloaded"
	StateDownloading   State = "downloading"
	StateDownloaded    State = "downloaded"
	StateLoaded        State = "loaded"
	StateUnavailable   State = "unavailable"
)

// Availability is the registry-derived status of one descriptor.
type Availability struct {
	State    State
	Progress float64
	Reason   string
}

// Usable reports whether the descriptor can serve a transcription right now.
func (a Availability) Usable() bool {
	return a.State == StateDownloaded || a.State == StateLoaded
}

func (a Availability) String() string {
	switch a.State {
	case StateDownloading:
		return fmt.Sprintf("downloading (%.0f%%)", a.Progress*100)
	case StateUnavailable:
		if a.Reason != "" {
			return fmt.Sprintf("unavailable (%s)", a.Reason)
		}
		return "unavailable"
	default:
		return string(a.State)
	}
}
