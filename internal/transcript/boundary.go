package transcript

import (
	"strings"
	"unicode"
)

// nonTerminalAbbreviations are tokens whose trailing period usually does not
// end a sentence.
var nonTerminalAbbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "sr": {}, "jr": {},
	"st": {}, "vs": {}, "etc": {}, "inc": {}, "ltd": {}, "co": {}, "corp": {},
	"approx": {}, "dept": {}, "est": {}, "fig": {}, "no": {}, "vol": {},
	"e.g": {}, "i.e": {}, "a.m": {}, "p.m": {},
}

func isNonTerminalAbbreviation(token string) bool {
	_, ok := nonTerminalAbbreviations[token]
	return ok
}

// isSentenceBoundaryPeriod classifies whether the period at idx ends a
// sentence, rejecting decimals, dotted tokens, and known abbreviations.
func isSentenceBoundaryPeriod(runes []rune, idx int) bool {
	if idx < 0 || idx >= len(runes) || runes[idx] != '.' {
		return false
	}

	if isDecimalPeriod(runes, idx) {
		return false
	}
	if isEmbeddedPeriodToken(runes, idx) {
		return false
	}

	token := strings.ToLower(tokenBeforePeriod(runes, idx))
	if token == "" {
		return true
	}
	return !isNonTerminalAbbreviation(token)
}

func isDecimalPeriod(runes []rune, idx int) bool {
	if idx <= 0 || idx+1 >= len(runes) {
		return false
	}
	return unicode.IsDigit(runes[idx-1]) && unicode.IsDigit(runes[idx+1])
}

// isEmbeddedPeriodToken rejects periods inside tokens like v1.2 or example.com.
func isEmbeddedPeriodToken(runes []rune, idx int) bool {
	if idx+1 >= len(runes) {
		return false
	}
	next := runes[idx+1]
	return unicode.IsLetter(next) || unicode.IsDigit(next) || next == '.'
}

// tokenBeforePeriod extracts the dotted word ending at idx, without the final period.
func tokenBeforePeriod(runes []rune, idx int) string {
	start := idx
	for start > 0 {
		r := runes[start-1]
		if unicode.IsLetter(r) || r == '.' {
			start--
			continue
		}
		break
	}
	if start == idx {
		return ""
	}
	return strings.TrimSuffix(string(runes[start:idx]), ".")
}
