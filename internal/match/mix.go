package match

import (
	"regexp"
	"strings"
)

// Canonical mix types.
const (
	MixOriginal     = "original"
	MixRadio        = "radio"
	MixExtended     = "extended"
	MixDub          = "dub"
	MixRemix        = "remix"
	MixInstrumental = "instrumental"
	MixAccapella    = "accapella"
	MixBeats        = "beats"
	MixClean        = "clean"
	MixDirty        = "dirty"
	MixLive         = "live"
)

// MixInfo is a title split into its base name and mix annotation.
type MixInfo struct {
	BaseName   string `json:"baseName"`
	MixType    string `json:"mixType"`
	Confidence int    `json:"confidence"`
}

// mixSynonyms maps each canonical mix type to the annotations that denote it.
// Lookups are exact on the lowercased, trimmed group content.
var mixSynonyms = []struct {
	mixType  string
	synonyms []string
}{
	{MixOriginal, []string{"original", "original mix", "original version", "album version", "lp version"}},
	{MixRadio, []string{"radio", "radio edit", "radio mix", "radio version", "edit", "single version", "single edit", "7\"", "7\" version", "7 inch", "short version"}},
	{MixExtended, []string{"extended", "extended mix", "extended version", "12\"", "12\" version", "12 inch", "club mix", "club version", "full length", "long version"}},
	{MixDub, []string{"dub", "dub mix", "dub version", "version dub"}},
	{MixRemix, []string{"remix", "rmx", "re-mix", "remixed", "rework", "re-edit"}},
	{MixInstrumental, []string{"instrumental", "instrumental mix", "instrumental version", "inst", "inst."}},
	{MixAccapella, []string{"accapella", "acapella", "a capella", "a cappella", "acappella", "vocal only"}},
	{MixBeats, []string{"beats", "bonus beats", "beat mix", "drum mix"}},
	{MixClean, []string{"clean", "clean version", "clean edit", "censored"}},
	{MixDirty, []string{"dirty", "dirty version", "explicit", "explicit version", "uncensored"}},
	{MixLive, []string{"live", "live version", "live mix", "live recording"}},
}

var mixGroupRe = regexp.MustCompile(`\(([^()]*)\)|\[([^\[\]]*)\]`)

// lookupMixType returns the canonical type for an annotation, if known.
func lookupMixType(tag string) (string, bool) {
	for _, entry := range mixSynonyms {
		for _, s := range entry.synonyms {
			if s == tag {
				return entry.mixType, true
			}
		}
	}
	return "", false
}

// ExtractMixInfo splits a track title into a base name and a mix type.
// Titles without a bracketed annotation are treated as the original mix.
func ExtractMixInfo(title string) MixInfo {
	if strings.TrimSpace(title) == "" {
		return MixInfo{BaseName: "", MixType: MixOriginal, Confidence: 50}
	}

	groups := mixGroupRe.FindAllStringSubmatchIndex(title, -1)
	if len(groups) == 0 {
		return MixInfo{BaseName: strings.TrimSpace(title), MixType: MixOriginal, Confidence: 90}
	}

	for _, g := range groups {
		tag := strings.ToLower(strings.TrimSpace(groupContent(title, g)))
		if mixType, ok := lookupMixType(tag); ok {
			return MixInfo{BaseName: removeSpan(title, g[0], g[1]), MixType: mixType, Confidence: 95}
		}
	}

	last := groups[len(groups)-1]
	return MixInfo{
		BaseName:   removeSpan(title, last[0], last[1]),
		MixType:    strings.ToLower(strings.TrimSpace(groupContent(title, last))),
		Confidence: 70,
	}
}

func groupContent(title string, g []int) string {
	if g[2] >= 0 {
		return title[g[2]:g[3]]
	}
	return title[g[4]:g[5]]
}

func removeSpan(title string, start, end int) string {
	return strings.Join(strings.Fields(title[:start]+" "+title[end:]), " ")
}

type mixPair struct{ a, b string }

var incompatibleMixes = []mixPair{
	{MixRadio, MixDub},
	{MixRadio, MixInstrumental},
	{MixRadio, MixRemix},
	{MixRadio, MixExtended},
	{MixDub, MixExtended},
	{MixDub, MixRemix},
	{MixInstrumental, MixExtended},
	{MixInstrumental, MixRemix},
	{MixRemix, MixExtended},
	{MixAccapella, MixInstrumental},
	{MixBeats, MixRadio},
	{MixClean, MixDirty},
	{MixLive, MixRadio},
	{MixLive, MixDub},
}

// relatedMixes are distinct types that usually describe the same recording.
// clean/dirty is also listed in incompatibleMixes, which is checked first.
var relatedMixes = []struct {
	pair  mixPair
	score int
}{
	{mixPair{MixDub, MixInstrumental}, 90},
	{mixPair{MixClean, MixDirty}, 85},
}

func (p mixPair) matches(a, b string) bool {
	return (p.a == a && p.b == b) || (p.a == b && p.b == a)
}

// MixesIncompatible reports whether two mix types are a known conflicting pair.
func MixesIncompatible(a, b string) bool {
	for _, p := range incompatibleMixes {
		if p.matches(a, b) {
			return true
		}
	}
	return false
}

func isOriginal(mixType string) bool {
	return mixType == "" || mixType == MixOriginal
}

// MixCompatibility scores how interchangeable two mix types are, from 0 to 100.
func MixCompatibility(a, b string) int {
	switch {
	case a == b:
		return 100
	case isOriginal(a) && isOriginal(b):
		return 95
	case MixesIncompatible(a, b):
		return 20
	case isOriginal(a) || isOriginal(b):
		return 75
	}
	for _, r := range relatedMixes {
		if r.pair.matches(a, b) {
			return r.score
		}
	}
	return 25
}
