package crawl

import "strings"

// blockMarkers are substrings typical of anti-bot interstitial pages.
var blockMarkers = []string{
	"forbidden",
	"access denied",
	"blocked",
	"captcha",
	"cloudflare",
}

// LooksBlocked reports whether fetched text is likely a bot-block page. This
// is a heuristic gate; false positives and negatives are accepted.
func LooksBlocked(text string) bool {
	lowered := strings.ToLower(text)
	for _, marker := range blockMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
