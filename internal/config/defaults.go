package config

// Default returns the canonical runtime settings used when no file is present.
func Default() Settings {
	return Settings{
		Selection: Selection{
			TranscriptionModel:  "ggml-base.en",
			Language:            "en",
			EnhancementEnabled:  false,
			EnhancementProvider: "openai",
			EnhancementModel:    "gpt-4o-mini",
		},
		CloudTimeoutSeconds: 30,
		Audio: AudioSettings{
			Input:    "default",
			Fallback: "default",
		},
		Transcript: TranscriptSettings{
			TrailingSpace:       true,
			CapitalizeSentences: true,
		},
		Output: OutputSettings{
			ClipboardCmd: "wl-copy --trim-newline",
			PasteEnabled: true,
			PasteCmd:     "wtype -M ctrl -P v -p v -m ctrl",
			ConfirmCmd:   "wtype -P return -p return",
		},
		Indicator: IndicatorSettings{
			Enable:      true,
			SoundEnable: true,
		},
	}
}
