package match

// Scoring constants.
const (
	TrustBoost         = 15
	HighThreshold      = 85
	MediumThreshold    = 65
	TrustedAcceptFloor = 65
	SearchAcceptFloor  = 50

	mixConflictCeiling = HighThreshold - 1

	titleWeight    = 40
	artistWeight   = 35
	durationWeight = 25
)

// MatchConfidence combines title, artist and duration similarity into a
// single 0-100 score. Trusted sources get a fixed boost. A candidate whose
// mix type conflicts with the track's never reaches the high class.
func MatchConfidence(trackTitle, trackArtist string, trackDuration int, candTitle, candArtist string, candDuration int, trusted bool) int {
	title := StringSimilarity(trackTitle, candTitle)
	artist := StringSimilarity(trackArtist, candArtist)
	duration := DurationSimilarity(trackDuration, candDuration)

	score := roundDiv(title*titleWeight+artist*artistWeight+duration*durationWeight, 100)
	if trusted {
		score = min(100, score+TrustBoost)
	}

	if MixesIncompatible(ExtractMixInfo(trackTitle).MixType, ExtractMixInfo(candTitle).MixType) {
		score = min(score, mixConflictCeiling)
	}
	return clampScore(score)
}

// Classify maps a 0-100 confidence to the engine's internal triage class.
func Classify(score int) Classification {
	switch {
	case score >= HighThreshold:
		return ClassHigh
	case score >= MediumThreshold:
		return ClassMedium
	default:
		return ClassLow
	}
}
