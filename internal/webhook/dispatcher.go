package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sydlexius/needledrop/internal/event"
)

const (
	maxRetries     = 3
	requestTimeout = 10 * time.Second
	defaultBackoff = time.Second
)

// Dispatcher sends events to matching webhooks.
type Dispatcher struct {
	service    *Service
	httpClient *http.Client
	logger     *slog.Logger
	backoff    time.Duration
	wg         sync.WaitGroup
}

// NewDispatcher creates a webhook dispatcher.
func NewDispatcher(service *Service, logger *slog.Logger) *Dispatcher {
	return NewDispatcherWithHTTPClient(service, &http.Client{Timeout: requestTimeout}, logger)
}

// NewDispatcherWithHTTPClient creates a dispatcher with a custom HTTP client (for testing).
func NewDispatcherWithHTTPClient(service *Service, httpClient *http.Client, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		service:    service,
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "webhook-dispatcher")),
		backoff:    defaultBackoff,
	}
}

// Register subscribes the dispatcher to every event on the bus.
func (d *Dispatcher) Register(bus *event.Bus) {
	bus.SubscribeAll(d.HandleEvent)
}

// HandleEvent is an event.Handler that dispatches the event to all matching webhooks.
func (d *Dispatcher) HandleEvent(e event.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	webhooks, err := d.service.ListByEvent(ctx, e.Type)
	if err != nil {
		d.logger.Error("listing webhooks for event",
			slog.String("type", string(e.Type)),
			slog.Any("error", err))
		return
	}

	for i := range webhooks {
		w := webhooks[i]
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deliver(w, e)
		}()
	}
}

// Wait blocks until all in-flight deliveries have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Test sends a synthetic event to one webhook without retries.
func (d *Dispatcher) Test(ctx context.Context, w *Webhook) error {
	e := event.Event{
		Type:      event.MatchCompleted,
		Timestamp: time.Now().UTC(),
		Data:      map[string]any{"message": "Test notification from needledrop"},
	}
	body, contentType := formatPayload(w, e)
	return d.send(ctx, w.URL, body, contentType)
}

func (d *Dispatcher) deliver(w Webhook, e event.Event) {
	body, contentType := formatPayload(&w, e)

	var lastErr error
	for attempt := range maxRetries {
		if attempt > 0 {
			time.Sleep(d.backoff * time.Duration(1<<uint(attempt-1)))
		}

		lastErr = d.send(context.Background(), w.URL, body, contentType)
		if lastErr == nil {
			d.logger.Debug("webhook delivered",
				slog.String("webhook", w.Name),
				slog.String("event", string(e.Type)),
				slog.Int("attempt", attempt+1),
			)
			return
		}

		d.logger.Warn("webhook delivery failed",
			slog.String("webhook", w.Name),
			slog.String("event", string(e.Type)),
			slog.Int("attempt", attempt+1),
			slog.Any("error", lastErr),
		)
	}

	d.logger.Error("webhook delivery exhausted retries",
		slog.String("webhook", w.Name),
		slog.String("event", string(e.Type)),
		slog.Any("error", lastErr),
	)
}

func (d *Dispatcher) send(ctx context.Context, url string, body []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "Needledrop-Webhook/1.0")

	resp, err := d.httpClient.Do(req) //nolint:gosec // URL is operator-configured
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()        //nolint:errcheck
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
