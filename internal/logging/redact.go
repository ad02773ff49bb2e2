package logging

import (
	"net/url"
	"regexp"
	"strings"
)

// Query parameters that carry credentials in feed URLs.
var sensitiveParams = []string{
	"token",
	"key",
	"secret",
	"password",
	"pass",
	"auth",
	"signature",
	"sig",
}

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bearer\s+([a-zA-Z0-9._~+/=-]{8,})`),
	regexp.MustCompile(`(?i)(password|passwd|token|secret)\s*[=:]\s*["']?[^\s"'&]+["']?`),
}

// RedactedValue is the replacement for sensitive values.
const RedactedValue = "[REDACTED]"

// Redact replaces credential-looking fragments in s.
func Redact(s string) string {
	result := s
	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllString(result, RedactedValue)
	}
	return result
}

// RedactURL strips userinfo and credential-like query parameters so a feed
// URL can be logged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return RedactedValue
	}
	if u.User != nil {
		u.User = url.User(RedactedValue)
	}

	q := u.Query()
	changed := false
	for name := range q {
		lower := strings.ToLower(name)
		for _, p := range sensitiveParams {
			if strings.Contains(lower, p) {
				q.Set(name, RedactedValue)
				changed = true
				break
			}
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}

	return u.String()
}
