// Package config persists and resolves voiceink runtime settings.
package config

// Selection is the operational settings bundle subject to contextual overlays.
// The overlay manager snapshots and restores exactly these fields.
type Selection struct {
	TranscriptionModel  string `json:"transcription_model"`
	Language            string `json:"language"`
	EnhancementEnabled  bool   `json:"enhancement_enabled"`
	EnhancementProvider string `json:"enhancement_provider"`
	EnhancementModel    string `json:"enhancement_model"`
	PromptID            string `json:"prompt_id"`
}

// Settings is the fully materialized runtime configuration used by voiceink.
type Settings struct {
	Selection

	ModelDir            string             `json:"model_dir,omitempty"`
	CloudTimeoutSeconds int                `json:"cloud_timeout_seconds"`
	Audio               AudioSettings      `json:"audio"`
	Transcript          TranscriptSettings `json:"transcript"`
	Output              OutputSettings     `json:"output"`
	Indicator           IndicatorSettings  `json:"indicator"`
	Overlays            []OverlayRule      `json:"overlays,omitempty"`
}

// AudioSettings controls preferred and fallback input-source selection.
type AudioSettings struct {
	Input    string `json:"input"`
	Fallback string `json:"fallback"`
}

// TranscriptSettings controls deterministic transcript post-processing.
type TranscriptSettings struct {
	TrailingSpace       bool              `json:"trailing_space"`
	CapitalizeSentences bool              `json:"capitalize_sentences"`
	Replacements        map[string]string `json:"replacements,omitempty"`
}

// OutputSettings controls transcript delivery side effects.
type OutputSettings struct {
	ClipboardCmd string `json:"clipboard_cmd"`
	PasteEnabled bool   `json:"paste_enabled"`
	PasteCmd     string `json:"paste_cmd,omitempty"`
	ConfirmCmd   string `json:"confirm_cmd,omitempty"`
}

// IndicatorSettings controls desktop notifications and audio cues.
type IndicatorSettings struct {
	Enable      bool   `json:"enable"`
	SoundEnable bool   `json:"sound_enable"`
	AppName     string `json:"app_name,omitempty"`
}

// OverlayRule binds a contextual trigger to a transient settings substitution.
type OverlayRule struct {
	Name     string    `json:"name"`
	AppMatch string    `json:"app_match,omitempty"`
	URLMatch string    `json:"url_match,omitempty"`
	AutoSend bool      `json:"auto_send"`
	Apply    Selection `json:"apply"`
}
