package util

import (
	"net/http"
	"strings"
)

// StripCodeFences removes a surrounding markdown code fence from a model
// reply, e.g. "```json\n{...}\n```" -> "{...}". Replies without a fence pass
// through unchanged.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop an optional language tag on the opening fence line.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		first := strings.TrimSpace(s[:i])
		if first == "" || !strings.ContainsAny(first, "{[") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// SniffMime guesses the MIME type of an image blob from its magic bytes.
func SniffMime(data []byte) string {
	return http.DetectContentType(data)
}
