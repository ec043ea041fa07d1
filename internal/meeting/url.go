package meeting

import (
	"net/url"
	"regexp"
	"strings"

	"sunny/internal/services"
	"sunny/internal/sessions"
)

var (
	zoomPattern = regexp.MustCompile(`zoom\.us/j/(\d+)`)
	meetPattern = regexp.MustCompile(`meet\.google\.com/([a-z]{3}-[a-z]{4}-[a-z]{3})`)
)

// Ref identifies a joinable meeting extracted from a URL.
type Ref struct {
	Platform  sessions.Platform
	MeetingID string
	Passcode  string
	URL       string
}

// ParseURL detects the meeting platform and extracts the meeting identifier.
// Unrecognized URLs are rejected with an invalid_url classification.
func ParseURL(raw string) (Ref, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Ref{}, services.Wrap(services.KindInvalidURL, "join", "meeting URL is empty", nil)
	}

	if match := zoomPattern.FindStringSubmatch(trimmed); match != nil {
		ref := Ref{Platform: sessions.PlatformZoom, MeetingID: match[1], URL: trimmed}
		if parsed, err := url.Parse(trimmed); err == nil {
			ref.Passcode = parsed.Query().Get("pwd")
		}
		return ref, nil
	}
	if match := meetPattern.FindStringSubmatch(trimmed); match != nil {
		return Ref{Platform: sessions.PlatformGoogleMeet, MeetingID: match[1], URL: trimmed}, nil
	}
	return Ref{}, services.Wrap(services.KindInvalidURL, "join", "unsupported meeting URL: "+trimmed, nil)
}
