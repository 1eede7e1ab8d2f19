package webhook

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/sydlexius/needledrop/internal/event"
)

// ErrNotFound is returned when no webhook has the requested ID.
var ErrNotFound = errors.New("webhook not found")

// Webhook is an endpoint notified about release matching events.
type Webhook struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	URL       string       `json:"url"`
	Type      string       `json:"type"`
	Events    []event.Type `json:"events"`
	Enabled   bool         `json:"enabled"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Webhook types.
const (
	TypeGeneric = "generic"
	TypeDiscord = "discord"
	TypeSlack   = "slack"
)

// Validate checks the fields a caller supplies. It defaults the type to
// generic and rewrites Events into the bus order with duplicates removed.
func (w *Webhook) Validate() error {
	w.Name = strings.TrimSpace(w.Name)
	if w.Name == "" {
		return fmt.Errorf("name is required")
	}
	if w.URL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(w.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be an absolute http(s) URL")
	}
	switch w.Type {
	case "":
		w.Type = TypeGeneric
	case TypeGeneric, TypeDiscord, TypeSlack:
	default:
		return fmt.Errorf("unknown webhook type %q", w.Type)
	}

	events, err := normalizeEvents(w.Events)
	if err != nil {
		return err
	}
	w.Events = events
	return nil
}

// normalizeEvents rejects unknown or missing subscriptions and returns them
// in event.AllTypes order.
func normalizeEvents(in []event.Type) ([]event.Type, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("at least one event is required (one of %s)", knownEvents())
	}
	for _, t := range in {
		if !t.Valid() {
			return nil, fmt.Errorf("unknown event %q (want one of %s)", t, knownEvents())
		}
	}
	out := make([]event.Type, 0, len(in))
	for _, t := range event.AllTypes() {
		if slices.Contains(in, t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func knownEvents() string {
	names := make([]string, 0, len(event.AllTypes()))
	for _, t := range event.AllTypes() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

// Subscribed reports whether the webhook wants events of type t.
func (w *Webhook) Subscribed(t event.Type) bool {
	return slices.Contains(w.Events, t)
}
