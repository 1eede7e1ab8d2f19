package match

import (
	"strconv"
	"strings"
)

// DefaultTrackDuration is used when a track's duration is missing or malformed.
const DefaultTrackDuration = 180

// maxTrackDuration bounds parsed durations; longer values are treated as malformed.
const maxTrackDuration = 24 * 60 * 60

// ParseDuration converts "MM:SS" (or "H:MM:SS") into seconds. Anything it
// cannot read yields DefaultTrackDuration.
func ParseDuration(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultTrackDuration
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return DefaultTrackDuration
	}

	total := 0
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > maxTrackDuration {
			return DefaultTrackDuration
		}
		if i > 0 && n >= 60 {
			return DefaultTrackDuration
		}
		total = total*60 + n
		if total > maxTrackDuration {
			return DefaultTrackDuration
		}
	}
	if total == 0 {
		return DefaultTrackDuration
	}
	return total
}
