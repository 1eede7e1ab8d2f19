package match

import "regexp"

// PlatformYouTube is the platform tag for YouTube-hosted candidates.
const PlatformYouTube = "youtube"

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[?&]v=([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`/embed/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`/v/([A-Za-z0-9_-]{11})`),
}

// ExtractVideoID pulls the video identifier out of a watch, embed, short or
// legacy /v/ URL. It returns false when no known shape matches.
func ExtractVideoID(uri string) (string, bool) {
	for _, re := range videoIDPatterns {
		if m := re.FindStringSubmatch(uri); m != nil {
			return m[1], true
		}
	}
	return "", false
}
