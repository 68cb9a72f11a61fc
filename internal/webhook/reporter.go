// Package webhook implements the Webhook Reporter (C7): a fire-and-forget
// JSON POST to the WMS on every inbound state mutation (spec §4.7).
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

const requestTimeout = 10 * time.Second

// Event is the JSON body posted to the configured webhook URL.
type Event struct {
	ShuttleID  string  `json:"shuttle_id"`
	Message    string  `json:"message"`
	Status     string  `json:"status"`
	ErrorCode  string  `json:"error_code,omitempty"`
	ExternalID string  `json:"external_id,omitempty"`
	Timestamp  float64 `json:"timestamp"`
}

// Reporter posts Events to a WMS webhook URL. The zero value with an empty
// URL is valid and simply drops every event, matching the spec's "no
// webhook URL configured" case.
type Reporter struct {
	URL    string
	Client *http.Client
	Logger *slog.Logger
}

// New builds a Reporter. An empty url disables delivery entirely.
func New(url string, logger *slog.Logger) *Reporter {
	return &Reporter{
		URL:    url,
		Client: &http.Client{Timeout: requestTimeout},
		Logger: logger,
	}
}

// Report posts evt asynchronously and returns immediately; delivery
// failures are logged but never propagated, so a flaky WMS
// endpoint can never block the inbound message path (spec §4.7). Delivery
// deliberately runs on its own timeout rather than the caller's context, so
// a cancelled inbound request can never cut a report short mid-flight.
// Failures are not counted: Reporter holds no metrics.Recorder and never
// calls WebhookDeliveryResult.
func (r *Reporter) Report(evt Event) {
	if r.URL == "" {
		return
	}
	go r.deliver(evt)
}

func (r *Reporter) deliver(evt Event) {
	body, err := json.Marshal(evt)
	if err != nil {
		r.Logger.Error("failed to marshal webhook event", "shuttle", evt.ShuttleID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		r.Logger.Error("failed to build webhook request", "shuttle", evt.ShuttleID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		r.Logger.Warn("webhook delivery failed", "shuttle", evt.ShuttleID, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.Logger.Warn("webhook delivery rejected", "shuttle", evt.ShuttleID, "status", resp.StatusCode)
	}
}
