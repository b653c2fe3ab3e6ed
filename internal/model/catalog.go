package model

// englishOnly and coreLanguages keep supported-language maps compact for the
// bundled catalog; cloud descriptors accept any code their provider supports.
var englishOnly = map[string]string{"en": "English"}

var coreLanguages = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"ja": "Japanese",
	"zh": "Chinese",
	"ko": "Korean",
	"hi": "Hindi",
}

// Catalog returns the predefined descriptor set. User-imported and custom
// endpoint descriptors are added dynamically on top of these.
func Catalog() []Descriptor {
	return []Descriptor{
		{
			Name:        "ggml-tiny.en",
			DisplayName: "Tiny (English)",
			Kind:        BackendLocal,
			Languages:   englishOnly,
			FileName:    "ggml-tiny.en.bin",
			URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.en.bin",
			SizeBytes:   77_700_000,
		},
		{
			Name:         "ggml-base",
			DisplayName:  "Base (Multilingual)",
			Kind:         BackendLocal,
			Multilingual: true,
			Languages:    coreLanguages,
			FileName:     "ggml-base.bin",
			URL:          "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin",
			SizeBytes:    148_000_000,
		},
		{
			Name:        "ggml-base.en",
			DisplayName: "Base (English)",
			Kind:        BackendLocal,
			Languages:   englishOnly,
			FileName:    "ggml-base.en.bin",
			URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.en.bin",
			SizeBytes:   148_000_000,
		},
		{
			Name:         "ggml-small",
			DisplayName:  "Small (Multilingual)",
			Kind:         BackendLocal,
			Multilingual: true,
			Languages:    coreLanguages,
			FileName:     "ggml-small.bin",
			URL:          "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin",
			SizeBytes:    488_000_000,
		},
		{
			Name:         "ggml-large-v3-turbo",
			DisplayName:  "Large v3 Turbo",
			Kind:         BackendLocal,
			Multilingual: true,
			Languages:    coreLanguages,
			FileName:     "ggml-large-v3-turbo.bin",
			URL:          "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3-turbo.bin",
			SizeBytes:    1_620_000_000,
		},
		{
			Name:         "parakeet-tdt-0.6b",
			DisplayName:  "Parakeet TDT 0.6B",
			Kind:         BackendNeural,
			Multilingual: false,
			Languages:    englishOnly,
			FileName:     "parakeet-tdt-0.6b.bin",
			URL:          "https://huggingface.co/nvidia/parakeet-tdt-0.6b/resolve/main/model.bin",
			TokenizerURL: "https://huggingface.co/nvidia/parakeet-tdt-0.6b/resolve/main/tokenizer.json",
			SizeBytes:    640_000_000,
		},
		{
			Name:         "native-dictation",
			DisplayName:  "System Speech Recognition",
			Kind:         BackendNative,
			Multilingual: true,
			Languages:    coreLanguages,
		},
		{
			Name:         "groq-whisper-large-v3",
			DisplayName:  "Groq Whisper Large v3",
			Kind:         BackendCloud,
			Multilingual: true,
			Languages:    coreLanguages,
			Provider:     "groq",
			ModelID:      "whisper-large-v3",
		},
		{
			Name:         "openai-whisper-1",
			DisplayName:  "OpenAI Whisper",
			Kind:         BackendCloud,
			Multilingual: true,
			Languages:    coreLanguages,
			Provider:     "openai",
			ModelID:      "whisper-1",
		},
		{
			Name:         "deepgram-nova-3",
			DisplayName:  "Deepgram Nova 3",
			Kind:         BackendCloud,
			Multilingual: true,
			Languages:    coreLanguages,
			Provider:     "deepgram",
			ModelID:      "nova-3",
		},
		{
			Name:         "elevenlabs-scribe-v1",
			DisplayName:  "ElevenLabs Scribe v1",
			Kind:         BackendCloud,
			Multilingual: true,
			Languages:    coreLanguages,
			Provider:     "elevenlabs",
			ModelID:      "scribe_v1",
		},
		{
			Name:         "mistral-voxtral-mini",
			DisplayName:  "Mistral Voxtral Mini",
			Kind:         BackendCloud,
			Multilingual: true,
			Languages:    coreLanguages,
			Provider:     "mistral",
			ModelID:      "voxtral-mini-latest",
		},
	}
}
