package transcript

import (
	"regexp"
	"sort"
	"strings"
)

// ApplyReplacements substitutes custom vocabulary terms case-insensitively on
// word boundaries. Longer source terms win so multi-word phrases are not
// clobbered by their prefixes.
func ApplyReplacements(text string, replacements map[string]string) string {
	if len(replacements) == 0 {
		return text
	}

	terms := make([]string, 0, len(replacements))
	for term := range replacements {
		if strings.TrimSpace(term) != "" {
			terms = append(terms, term)
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})

	for _, term := range terms {
		pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
		if err != nil {
			continue
		}
		text = pattern.ReplaceAllString(text, replacements[term])
	}
	return text
}
