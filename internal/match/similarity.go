package match

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// normalize lowercases s and collapses runs of whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// StringSimilarity scores two titles (or artist names) from 0 to 100. Edit
// distance on the base names is blended with mix compatibility so that an
// identical title in a conflicting mix never scores as a perfect match.
func StringSimilarity(a, b string) int {
	infoA := ExtractMixInfo(a)
	infoB := ExtractMixInfo(b)

	if normalize(a) == normalize(b) {
		return 100
	}

	mix := MixCompatibility(infoA.MixType, infoB.MixType)
	baseA := normalize(infoA.BaseName)
	baseB := normalize(infoB.BaseName)

	if baseA == baseB {
		return clampScore(roundDiv(95*80+mix*20, 100))
	}

	return clampScore(roundDiv(levenshteinScore(baseA, baseB)*75+mix*25, 100))
}

// levenshteinScore is the normalized edit-distance similarity of a and b.
func levenshteinScore(a, b string) int {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 100
	}
	dist := edlib.LevenshteinDistance(a, b)
	return int(math.Round(float64(maxLen-dist) / float64(maxLen) * 100))
}

// DurationSimilarity scores two durations in seconds by banding their delta.
func DurationSimilarity(a, b int) int {
	delta := a - b
	if delta < 0 {
		delta = -delta
	}
	switch {
	case delta <= 2:
		return 100
	case delta <= 5:
		return 80
	case delta <= 10:
		return 60
	case delta <= 30:
		return 40
	default:
		return 20
	}
}

// roundDiv divides a non-negative numerator by d, rounding halves up.
func roundDiv(n, d int) int {
	return (n + d/2) / d
}

func clampScore(v int) int {
	return min(max(v, 0), 100)
}
