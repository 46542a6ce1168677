package resolver

import (
	"net/url"
	"strings"
)

// IsYouTubeURL reports whether the URL points at YouTube (youtube.com or
// youtu.be, any subdomain).
func IsYouTubeURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Host)
	return host == "youtu.be" || host == "youtube.com" ||
		strings.HasSuffix(host, ".youtube.com") || strings.HasSuffix(host, ".youtu.be")
}

// ExtractVideoID pulls the 11-char video id out of the common YouTube URL
// forms: watch?v=, youtu.be/, /shorts/, /embed/ and /live/. Returns "" when
// no id can be found.
func ExtractVideoID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Host)

	if host == "youtu.be" || strings.HasSuffix(host, ".youtu.be") {
		seg := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)[0]
		return seg
	}
	if host != "youtube.com" && !strings.HasSuffix(host, ".youtube.com") {
		return ""
	}

	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segments) >= 2 {
		switch segments[0] {
		case "shorts", "embed", "live":
			return segments[1]
		}
	}
	return u.Query().Get("v")
}
