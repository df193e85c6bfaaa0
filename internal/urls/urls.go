// Package urls provides URL detection for incoming chat messages.
// It is deliberately independent of any Telegram types so the matching
// logic can be tested without a live connection.
package urls

import (
	"regexp"
	"strings"
)

// urlPattern matches the first http(s) URL embedded anywhere in free-form text.
var urlPattern = regexp.MustCompile(`https?://\S+`)

// Extract returns the first HTTP or HTTPS URL found in text.
// The second return value reports whether a URL was found.
func Extract(text string) (string, bool) {
	match := urlPattern.FindString(text)
	if match == "" {
		return "", false
	}

	// Chat clients often glue trailing punctuation onto pasted links.
	match = strings.TrimRight(match, ".,;:!?)>]}\"'")
	if strings.HasSuffix(match, "://") {
		return "", false
	}

	return match, true
}
