package remote

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

var (
	cdataOpenPattern  = regexp.MustCompile(`<!\[CDATA\[`)
	cdataClosePattern = regexp.MustCompile(`\]\]>`)
	enNoteOpenPattern = regexp.MustCompile(`<en-note[^>]*>`)
	enMediaPattern    = regexp.MustCompile(`<en-media[^>]*/>`)

	stripPolicy = bluemonday.StrictPolicy()
)

// StripENML renders an ENML document to plain text for search and
// preview. Embedded media references are dropped; entities are decoded.
// Empty or absent content renders to the empty string, never an error.
func StripENML(enml string) string {
	if enml == "" {
		return ""
	}
	text := cdataOpenPattern.ReplaceAllString(enml, "")
	text = cdataClosePattern.ReplaceAllString(text, "")
	text = enNoteOpenPattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "</en-note>", "")
	text = enMediaPattern.ReplaceAllString(text, "")
	text = stripPolicy.Sanitize(text)
	return strings.TrimSpace(html.UnescapeString(text))
}

// TimeFromMillis converts the remote service's millisecond epoch
// timestamps to UTC. Zero means unset and yields the zero time.
func TimeFromMillis(millis int64) time.Time {
	if millis <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(millis).UTC()
}
