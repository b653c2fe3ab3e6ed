// Package transcript applies deterministic post-processing to recognized text.
package transcript

import "strings"

// Options controls transcript normalization behavior.
type Options struct {
	TrailingSpace       bool
	CapitalizeSentences bool
	Replacements        map[string]string
}

// PostProcess normalizes raw recognizer output into the canonical transcript:
// whitespace collapse, custom vocabulary replacement, then sentence casing.
// The result is deterministic for a given input and options.
func PostProcess(raw string, opts Options) string {
	normalized := strings.Join(strings.Fields(raw), " ")
	if normalized == "" {
		return ""
	}

	normalized = ApplyReplacements(normalized, opts.Replacements)

	if opts.CapitalizeSentences {
		normalized = capitalizeSentences(normalized)
	}

	if opts.TrailingSpace {
		return normalized + " "
	}
	return normalized
}
