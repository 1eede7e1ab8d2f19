package logging

import (
	"log/slog"
	"net/url"
	"strings"
)

// Redacted replaces sensitive values in log output.
const Redacted = "REDACTED"

// sensitiveSubstrings mark a parameter or attribute name as secret when
// contained in it. "key" is matched exactly because the YouTube Data API
// passes its credential as ?key=.
var (
	sensitiveSubstrings = []string{"apikey", "api_key", "password", "secret", "token", "authorization"}
	sensitiveExact      = []string{"key"}
)

// Sensitive reports whether a parameter or attribute name carries a
// credential.
func Sensitive(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range sensitiveExact {
		if lower == s {
			return true
		}
	}
	for _, p := range sensitiveSubstrings {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// ScrubQuery redacts sensitive values in a raw query string, leaving the
// parameter order and everything else intact.
func ScrubQuery(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	for i, part := range parts {
		name, _, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		decoded, err := url.QueryUnescape(name)
		if err != nil {
			decoded = name
		}
		if Sensitive(decoded) {
			parts[i] = name + "=" + Redacted
		}
	}
	return strings.Join(parts, "&")
}

// ScrubURL redacts credentials in a URL's query string and userinfo.
func ScrubURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.User != nil {
		u.User = url.User(Redacted)
	}
	u.RawQuery = ScrubQuery(u.RawQuery)
	return u.String()
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString && Sensitive(a.Key) && a.Value.String() != "" {
		return slog.String(a.Key, Redacted)
	}
	if a.Key == "url" && a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, ScrubURL(a.Value.String()))
	}
	return a
}
