package model

import (
	"os"
	"path/filepath"

	"github.com/tmm22/VoiceInk-sub006/internal/config"
)

// Environment carries the collaborator state availability checks read from.
type Environment struct {
	ModelDir        string
	Credentials     config.Credentials
	NativeSupported func() bool
}

// Capability describes how one backend kind is provisioned and checked.
type Capability struct {
	RequiresDownload bool
	RequiresAPIKey   bool
	// ExclusiveAccess marks kinds whose loaded engine instance tolerates only
	// one logical caller; the registry enforces one-loaded-at-a-time for them.
	ExclusiveAccess bool
	Check           func(Descriptor, Environment) Availability
}

// capabilities is the static table mapping each backend kind to its
// availability rule and credential requirement.
var capabilities = map[BackendKind]Capability{
	BackendLocal: {
		RequiresDownload: true,
		ExclusiveAccess:  true,
		Check:            checkOnDisk,
	},
	BackendNeural: {
		RequiresDownload: true,
		ExclusiveAccess:  true,
		Check:            checkOnDisk,
	},
	BackendNative: {
		Check: func(_ Descriptor, env Environment) Availability {
			if env.NativeSupported != nil && !env.NativeSupported() {
				return Availability{State: StateUnavailable, Reason: "platform speech recognition not supported"}
			}
			return Availability{State: StateDownloaded}
		},
	},
	BackendCloud: {
		RequiresAPIKey: true,
		Check:          checkCredential,
	},
	BackendCustom: {
		RequiresAPIKey: true,
		Check: func(d Descriptor, env Environment) Availability {
			if d.Endpoint == "" {
				return Availability{State: StateUnavailable, Reason: "endpoint not configured"}
			}
			return checkCredential(d, env)
		},
	},
}

// CapabilityFor returns the capability entry for one backend kind.
func CapabilityFor(kind BackendKind) (Capability, bool) {
	c, ok := capabilities[kind]
	return c, ok
}

// checkOnDisk derives availability from managed-directory asset presence.
func checkOnDisk(d Descriptor, env Environment) Availability {
	path := filepath.Join(env.ModelDir, d.FileName)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return Availability{State: StateNotDownloaded}
	}
	if tok := d.TokenizerFileName(); tok != "" {
		if _, err := os.Stat(filepath.Join(env.ModelDir, tok)); err != nil {
			return Availability{State: StateNotDownloaded}
		}
	}
	return Availability{State: StateDownloaded}
}

// checkCredential derives availability from credential presence.
func checkCredential(d Descriptor, env Environment) Availability {
	if !env.Credentials.HasAPIKey(d.Provider) {
		return Availability{State: StateUnavailable, Reason: "missing API key for " + d.Provider}
	}
	return Availability{State: StateDownloaded}
}
