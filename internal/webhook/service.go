package webhook

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/needledrop/internal/event"
)

// timeLayout is fixed-width so stored timestamps sort correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const webhookColumns = `id, name, url, type, events, enabled, created_at, updated_at`

// Service stores the webhooks the dispatcher delivers release events to.
type Service struct {
	db *sql.DB
}

// NewService creates a webhook service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Create validates w, assigns it an ID and stores it.
func (s *Service) Create(ctx context.Context, w *Webhook) error {
	if err := w.Validate(); err != nil {
		return err
	}
	events, err := encodeEvents(w.Events)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	w.ID = uuid.New().String()
	w.CreatedAt, w.UpdatedAt = now, now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO webhooks (`+webhookColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, w.ID, w.Name, w.URL, w.Type, events, w.Enabled, now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("inserting webhook %q: %w", w.Name, err)
	}
	return nil
}

// GetByID returns a webhook, or ErrNotFound.
func (s *Service) GetByID(ctx context.Context, id string) (*Webhook, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE id = ?`, id)
	w, err := scanWebhook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return w, err
}

// List returns all webhooks ordered by name.
func (s *Service) List(ctx context.Context) ([]Webhook, error) {
	return s.query(ctx, `SELECT `+webhookColumns+` FROM webhooks ORDER BY name, id`)
}

// ListByEvent returns the enabled webhooks subscribed to t. The subscription
// match runs in SQLite against the stored event list.
func (s *Service) ListByEvent(ctx context.Context, t event.Type) ([]Webhook, error) {
	return s.query(ctx, `
		SELECT `+webhookColumns+` FROM webhooks
		WHERE enabled = 1
		  AND EXISTS (SELECT 1 FROM json_each(webhooks.events) WHERE json_each.value = ?)
		ORDER BY name, id
	`, string(t))
}

// Update overwrites the caller-editable fields of an existing webhook.
func (s *Service) Update(ctx context.Context, w *Webhook) error {
	if err := w.Validate(); err != nil {
		return err
	}
	events, err := encodeEvents(w.Events)
	if err != nil {
		return err
	}
	w.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE webhooks SET name = ?, url = ?, type = ?, events = ?, enabled = ?, updated_at = ?
		WHERE id = ?
	`, w.Name, w.URL, w.Type, events, w.Enabled, w.UpdatedAt.Format(timeLayout), w.ID)
	if err != nil {
		return fmt.Errorf("updating webhook %s: %w", w.ID, err)
	}
	return requireRow(result)
}

// Delete removes a webhook.
func (s *Service) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM webhooks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting webhook %s: %w", id, err)
	}
	return requireRow(result)
}

func (s *Service) query(ctx context.Context, q string, args ...any) ([]Webhook, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing webhooks: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	hooks := []Webhook{}
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		hooks = append(hooks, *w)
	}
	return hooks, rows.Err()
}

func requireRow(result sql.Result) error {
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeEvents(events []event.Type) (string, error) {
	b, err := json.Marshal(events)
	if err != nil {
		return "", fmt.Errorf("encoding events: %w", err)
	}
	return string(b), nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanWebhook(sc scanner) (*Webhook, error) {
	var w Webhook
	var events, createdAt, updatedAt string

	if err := sc.Scan(&w.ID, &w.Name, &w.URL, &w.Type, &events, &w.Enabled, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning webhook: %w", err)
	}

	// Rows keep only types the bus still publishes.
	var stored []event.Type
	_ = json.Unmarshal([]byte(events), &stored)
	w.Events = []event.Type{}
	for _, t := range stored {
		if t.Valid() {
			w.Events = append(w.Events, t)
		}
	}
	w.CreatedAt = parseTime(createdAt)
	w.UpdatedAt = parseTime(updatedAt)
	return &w, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
