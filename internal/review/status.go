package review

import "fmt"

// Status is the human decision state of a track match. Any status can be
// set from any other; there is no terminal state.
type Status string

// Track statuses.
const (
	StatusPending     Status = "pending"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusNeedsReview Status = "needs_review"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusNeedsReview:
		return true
	}
	return false
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid status %q", s)
	}
	return st, nil
}

// CanApproveRelease reports whether every one of the first trackCount tracks
// is either approved by a human or sits in the top bucket. It is evaluated
// from the current match set each time and never cached.
func CanApproveRelease(matches []TrackMatch, trackCount int) bool {
	if trackCount <= 0 {
		return false
	}
	ok := make(map[int]bool, trackCount)
	for _, m := range matches {
		if m.TrackIndex < 0 || m.TrackIndex >= trackCount {
			continue
		}
		if m.Status == StatusApproved || BucketFor(m.Confidence) == BucketTop {
			ok[m.TrackIndex] = true
		}
	}
	return len(ok) == trackCount
}
