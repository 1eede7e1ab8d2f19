package review

import "math"

// Bucket is a human review tier derived from a 0-1 confidence.
type Bucket string

// Review buckets.
const (
	BucketTop    Bucket = "top"
	BucketFast   Bucket = "fast"
	BucketReview Bucket = "review"
	BucketHide   Bucket = "hide"
)

// Bucket thresholds on the 0-1 scale.
const (
	TopThreshold    = 0.92
	FastThreshold   = 0.85
	ReviewThreshold = 0.65
)

// ToUnitScale converts an engine confidence (0-100) to the 0-1 scale used
// for storage and review buckets. It is the only place that conversion
// happens.
func ToUnitScale(score int) float64 {
	return float64(min(max(score, 0), 100)) / 100
}

// ToPercentScale converts a stored 0-1 confidence back to the engine's
// 0-100 scale.
func ToPercentScale(confidence float64) int {
	return min(max(int(math.Round(confidence*100)), 0), 100)
}

// BucketFor classifies a 0-1 confidence into a review bucket.
func BucketFor(confidence float64) Bucket {
	switch {
	case confidence >= TopThreshold:
		return BucketTop
	case confidence >= FastThreshold:
		return BucketFast
	case confidence >= ReviewThreshold:
		return BucketReview
	default:
		return BucketHide
	}
}

// BucketForScore classifies an engine confidence (0-100).
func BucketForScore(score int) Bucket {
	return BucketFor(ToUnitScale(score))
}
