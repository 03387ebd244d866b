// Package notify delivers zone transition events to an external webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fenceline/zonewatch/internal/config"
)

// EventType identifies the kind of transition.
type EventType string

const (
	EventEnter       EventType = "enter"
	EventExit        EventType = "exit"
	EventUnavailable EventType = "unavailable"
)

// Event is one zone transition, posted as JSON to the webhook.
type Event struct {
	Type      EventType `json:"type"`
	Zone      string    `json:"zone"`
	Entity    string    `json:"entity"`
	Lat       *float64  `json:"lat,omitempty"`
	Lon       *float64  `json:"lon,omitempty"`
	DistanceM *float64  `json:"distance_m,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier posts transition events to a webhook, rate limited. A Notifier
// with no webhook URL is valid and drops everything silently, so callers
// never need a nil check.
type Notifier struct {
	webhookURL string
	limiter    *rate.Limiter
	client     *http.Client
}

// New creates a Notifier from config.
func New(cfg config.NotifyConfig) *Notifier {
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 10
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Notifier{
		webhookURL: cfg.WebhookURL,
		limiter:    rate.NewLimiter(rate.Limit(perSec), burst),
		client:     &http.Client{Timeout: timeout},
	}
}

// Send posts one event. Events over the rate limit are dropped with a
// warning rather than queued: transitions are snapshots, and a stale one is
// worse than a missing one.
func (n *Notifier) Send(ctx context.Context, ev Event) error {
	if n.webhookURL == "" {
		return nil
	}

	if !n.limiter.Allow() {
		zap.L().Warn("notify: rate limit exceeded, dropping event",
			zap.String("type", string(ev.Type)),
			zap.String("zone", ev.Zone),
			zap.String("entity", ev.Entity),
		)
		return nil
	}

	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "notify: marshal event")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "notify: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: post event")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return eris.New(fmt.Sprintf("notify: webhook returned %d", resp.StatusCode))
	}

	zap.L().Debug("notify: event sent",
		zap.String("type", string(ev.Type)),
		zap.String("zone", ev.Zone),
		zap.String("entity", ev.Entity),
	)
	return nil
}
