package discogs

// Discogs API response types.

// ReleaseDetail is the full release response from /releases/{id}.
type ReleaseDetail struct {
	ID        int         `json:"id"`
	Title     string      `json:"title"`
	Year      int         `json:"year"`
	Artists   []ArtistRef `json:"artists"`
	Tracklist []TrackItem `json:"tracklist"`
	Videos    []VideoItem `json:"videos"`
}

// ArtistRef is an artist credit on a release or track.
type ArtistRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	ANV  string `json:"anv"`
	Join string `json:"join"`
}

// TrackItem is one row of a tracklist. Headings and index rows carry no
// playable track of their own; index rows hold sub-tracks.
type TrackItem struct {
	Position  string      `json:"position"`
	Type      string      `json:"type_"`
	Title     string      `json:"title"`
	Duration  string      `json:"duration"`
	Artists   []ArtistRef `json:"artists"`
	SubTracks []TrackItem `json:"sub_tracks"`
}

// VideoItem is a video linked from a release page.
type VideoItem struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Duration    int    `json:"duration"`
	Embed       bool   `json:"embed"`
}
