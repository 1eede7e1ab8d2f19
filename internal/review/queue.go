package review

// QueueItem is a stored match annotated for the review screen.
type QueueItem struct {
	TrackMatch
	Bucket      Bucket `json:"bucket"`
	Preselected bool   `json:"preselected"`
}

// Queue is the review view of one release.
type Queue struct {
	ReleaseID   int            `json:"release_id"`
	TrackCount  int            `json:"track_count"`
	Items       []QueueItem    `json:"items"`
	Counts      map[Bucket]int `json:"counts"`
	HiddenCount int            `json:"hidden_count"`
	ShowHidden  bool           `json:"show_hidden"`
	CanApprove  bool           `json:"can_approve"`
}

// BuildQueue groups matches for review. Matches in the hide bucket are left
// out of Items unless showHidden is set, but they are always counted.
func BuildQueue(releaseID int, matches []TrackMatch, trackCount int, showHidden bool) Queue {
	q := Queue{
		ReleaseID:  releaseID,
		TrackCount: trackCount,
		Items:      []QueueItem{},
		Counts:     map[Bucket]int{BucketTop: 0, BucketFast: 0, BucketReview: 0, BucketHide: 0},
		ShowHidden: showHidden,
		CanApprove: CanApproveRelease(matches, trackCount),
	}

	for _, m := range matches {
		b := m.Bucket()
		q.Counts[b]++
		if b == BucketHide {
			q.HiddenCount++
			if !showHidden {
				continue
			}
		}
		q.Items = append(q.Items, QueueItem{
			TrackMatch:  m,
			Bucket:      b,
			Preselected: b == BucketTop || b == BucketFast,
		})
	}
	return q
}
