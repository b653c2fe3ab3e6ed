package overlay

import (
	"strings"

	"github.com/tmm22/VoiceInk-sub006/internal/config"
)

// Context is the foreground-application fingerprint matched against rules.
type Context struct {
	App string
	URL string
}

// Match returns the first rule whose patterns all match the context.
// A rule with no patterns never matches.
func Match(rules []config.OverlayRule, ctx Context) (config.OverlayRule, bool) {
	for _, rule := range rules {
		if ruleMatches(rule, ctx) {
			return rule, true
		}
	}
	return config.OverlayRule{}, false
}

func ruleMatches(rule config.OverlayRule, ctx Context) bool {
	if rule.AppMatch == "" && rule.URLMatch == "" {
		return false
	}
	if rule.AppMatch != "" && !containsFold(ctx.App, rule.AppMatch) {
		return false
	}
	if rule.URLMatch != "" && !containsFold(ctx.URL, rule.URLMatch) {
		return false
	}
	return true
}

func containsFold(haystack string, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
