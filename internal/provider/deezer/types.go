package deezer

// searchResponse is the JSON response from the Deezer track search endpoint.
type searchResponse struct {
	Data  []trackResult `json:"data"`
	Total int           `json:"total"`
	Next  string        `json:"next,omitempty"`
	Error *apiError     `json:"error,omitempty"`
}

// trackResult is a single track entry from a Deezer search.
type trackResult struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Link     string    `json:"link"`
	Duration int       `json:"duration"`
	Preview  string    `json:"preview"`
	Artist   artistRef `json:"artist"`
	Type     string    `json:"type"`
}

type artistRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// apiError is returned in a 200 response body when Deezer rejects a request,
// for example when the query quota is exceeded (code 4).
type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
