package provider

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// artistPrefixThreshold is the Jaro-Winkler similarity above which the part
// of a video title before a dash separator is taken to be the artist.
const artistPrefixThreshold = 0.88

var (
	titleNoiseRe = regexp.MustCompile(`(?i)\s*[\(\[]\s*(official\s+)?(music\s+video|video|audio|lyric\s+video|lyrics?|visuali[sz]er|hq|hd|4k)\s*[\)\]]`)
	artistNumRe  = regexp.MustCompile(`\s*\(\d+\)$`)
	titleSeps    = []string{" - ", " \u2013 ", " \u2014 ", " | "}
	channelTails = []string{" - Topic", "VEVO", " Official"}
)

// foldKey lowercases s, strips diacritics and collapses whitespace so that
// "Beyoncé" and "beyonce" compare equal.
func foldKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// ArtistSimilarity returns the Jaro-Winkler similarity (0-1) of two artist
// names after folding case and accents.
func ArtistSimilarity(a, b string) float64 {
	fa, fb := foldKey(a), foldKey(b)
	if fa == "" || fb == "" {
		return 0
	}
	return strutil.Similarity(fa, fb, metrics.NewJaroWinkler())
}

// CleanTitle strips upload noise such as "(Official Video)" from a video or
// search result title, and drops a leading "Artist - " when the prefix
// resembles artist. Mix annotations like "(Dub Mix)" are kept.
func CleanTitle(title, artist string) string {
	title = titleNoiseRe.ReplaceAllString(title, "")

	if artist != "" {
		for _, sep := range titleSeps {
			prefix, rest, ok := strings.Cut(title, sep)
			if !ok {
				continue
			}
			if ArtistSimilarity(prefix, artist) >= artistPrefixThreshold && strings.TrimSpace(rest) != "" {
				title = rest
			}
			break
		}
	}

	return strings.Join(strings.Fields(title), " ")
}

// CleanArtistName removes Discogs disambiguation ("Artist (2)") and name
// variation markers ("Artist*") as well as common channel suffixes.
func CleanArtistName(name string) string {
	name = strings.TrimSpace(name)
	name = artistNumRe.ReplaceAllString(name, "")
	name = strings.TrimSuffix(name, "*")
	for _, tail := range channelTails {
		if trimmed := strings.TrimSuffix(name, tail); trimmed != "" {
			name = trimmed
		}
	}
	return strings.TrimSpace(name)
}
