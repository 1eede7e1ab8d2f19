package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/sydlexius/needledrop/internal/event"
)

// Discord embed colors per event.
const (
	colorBlue   = 3447003
	colorOrange = 15105570
	colorGreen  = 3066993
	colorGrey   = 9807270
)

// formatPayload returns the request body and content-type for a webhook delivery.
func formatPayload(w *Webhook, e event.Event) ([]byte, string) {
	switch w.Type {
	case TypeDiscord:
		return formatDiscord(e)
	case TypeSlack:
		return formatSlack(e)
	default:
		return formatGeneric(e)
	}
}

func formatGeneric(e event.Event) ([]byte, string) {
	payload := map[string]any{
		"event":      string(e.Type),
		"release_id": e.ReleaseID,
		"timestamp":  e.Timestamp,
		"data":       e.Data,
	}
	body, _ := json.Marshal(payload)
	return body, "application/json"
}

func formatDiscord(e event.Event) ([]byte, string) {
	payload := map[string]any{
		"embeds": []map[string]any{
			{
				"title":       title(e),
				"description": describe(e),
				"color":       color(e.Type),
				"timestamp":   e.Timestamp.Format("2006-01-02T15:04:05Z"),
			},
		},
	}
	body, _ := json.Marshal(payload)
	return body, "application/json"
}

func formatSlack(e event.Event) ([]byte, string) {
	payload := map[string]any{
		"text": fmt.Sprintf("*%s*\n%s", title(e), describe(e)),
	}
	body, _ := json.Marshal(payload)
	return body, "application/json"
}

func title(e event.Event) string {
	if e.ReleaseID > 0 {
		return fmt.Sprintf("Needledrop: %s (release %d)", e.Type, e.ReleaseID)
	}
	return fmt.Sprintf("Needledrop: %s", e.Type)
}

func color(t event.Type) int {
	switch t {
	case event.ReviewNeeded:
		return colorOrange
	case event.ReleaseApprovable:
		return colorGreen
	case event.TrackDecided:
		return colorGrey
	default:
		return colorBlue
	}
}

// describe renders a one-line human summary. Known event shapes get a
// sentence; anything else falls back to the raw data.
func describe(e event.Event) string {
	if e.Data == nil {
		return string(e.Type)
	}
	if msg, ok := e.Data["message"].(string); ok {
		return msg
	}
	switch e.Type {
	case event.MatchCompleted:
		if matched, ok := e.Data["total_matched"]; ok {
			return fmt.Sprintf("Matched %v of %v tracks", matched, e.Data["processed_tracks"])
		}
	case event.ReviewNeeded:
		if n, ok := e.Data["review_count"]; ok {
			return fmt.Sprintf("%v tracks need manual review", n)
		}
	case event.TrackDecided:
		if status, ok := e.Data["status"]; ok {
			return fmt.Sprintf("Track %v marked %v", e.Data["track_index"], status)
		}
	}
	b, _ := json.Marshal(e.Data)
	return string(b)
}
