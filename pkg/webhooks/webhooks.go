package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/depgraph/pkg/dependencies"
	"github.com/platinummonkey/depgraph/pkg/scheduler"
)

// EventType represents the type of webhook event
type EventType string

const (
	EventGraphRefreshed EventType = "graph.refreshed"
	EventCyclesDetected EventType = "graph.cycles_detected"
)

// Payload formats
const (
	FormatJSON  = "json"
	FormatSlack = "slack"
)

// Event is the body of a JSON delivery
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Report    *scheduler.Report `json:"report"`
}

// Webhook is a delivery target. An empty Events list subscribes to every
// event type.
type Webhook struct {
	URL    string      `json:"url" yaml:"url"`
	Events []EventType `json:"events,omitempty" yaml:"events"`
	Secret string      `json:"-" yaml:"secret"`
	Format string      `json:"format,omitempty" yaml:"format"`
}

func (w Webhook) subscribed(t EventType) bool {
	return len(w.Events) == 0 || slices.Contains(w.Events, t)
}

// Notifier posts refresh reports to webhooks. It satisfies scheduler.Notifier.
type Notifier struct {
	webhooks   []Webhook
	client     *http.Client
	retry      *RetryPolicy
	deliveries *DeliveryLogStore
	log        *logrus.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewNotifier creates a notifier for webhooks
func NewNotifier(webhooks []Webhook, retry RetryConfig, log *logrus.Logger) (*Notifier, error) {
	if log == nil {
		log = logrus.New()
	}
	for _, w := range webhooks {
		if w.URL == "" {
			return nil, fmt.Errorf("webhook URL is required")
		}
		switch w.Format {
		case "", FormatJSON, FormatSlack:
		default:
			return nil, fmt.Errorf("invalid webhook format %q for %s", w.Format, w.URL)
		}
	}

	return &Notifier{
		webhooks:   webhooks,
		client:     &http.Client{Timeout: 10 * time.Second},
		retry:      NewRetryPolicy(retry),
		deliveries: NewDeliveryLogStore(1000),
		log:        log,
		sleep:      sleepContext,
	}, nil
}

// Deliveries returns the delivery log
func (n *Notifier) Deliveries() *DeliveryLogStore {
	return n.deliveries
}

// Notify sends report to every subscribed webhook. A report with
// cross-repository cycles is a cycles_detected event; any other report is
// a refreshed event.
func (n *Notifier) Notify(ctx context.Context, report *scheduler.Report) error {
	event := &Event{
		ID:        uuid.NewString(),
		Type:      EventGraphRefreshed,
		Timestamp: time.Now().UTC(),
		Report:    report,
	}
	if report.Cycles[dependencies.SeverityHigh] > 0 {
		event.Type = EventCyclesDetected
	}

	var errs []error
	for _, w := range n.webhooks {
		if !w.subscribed(event.Type) {
			continue
		}
		if err := n.deliver(ctx, w, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// deliver retries one webhook with exponential backoff until it succeeds,
// the policy gives up or ctx ends
func (n *Notifier) deliver(ctx context.Context, w Webhook, event *Event) error {
	payload, err := n.payload(w, event)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	n.deliveries.Add(DeliveryLog{
		ID:          id,
		EventID:     event.ID,
		EventType:   event.Type,
		WorkspaceID: event.Report.WorkspaceID,
		URL:         w.URL,
		Status:      DeliveryStatusPending,
		CreatedAt:   time.Now(),
	})

	for attempts := 1; ; attempts++ {
		start := time.Now()
		status, sendErr := n.send(ctx, w, event, payload)
		n.deliveries.Update(id, func(l *DeliveryLog) {
			l.Attempts = attempts
			l.StatusCode = status
			l.Duration = time.Since(start)
		})

		if sendErr == nil {
			n.complete(id, DeliveryStatusSuccess, "")
			return nil
		}
		if !n.retry.ShouldRetry(attempts, sendErr) {
			n.complete(id, DeliveryStatusFailed, sendErr.Error())
			n.log.WithError(sendErr).WithFields(logrus.Fields{
				"url":       w.URL,
				"event":     event.Type,
				"workspace": event.Report.WorkspaceID,
				"attempts":  attempts,
			}).Error("Webhook delivery failed")
			return fmt.Errorf("webhook %s: %w", w.URL, sendErr)
		}

		delay := n.retry.NextRetryDelay(attempts)
		n.deliveries.Update(id, func(l *DeliveryLog) {
			l.Status = DeliveryStatusRetrying
			l.ErrorMessage = sendErr.Error()
		})
		n.log.WithError(sendErr).Debugf("Retrying webhook %s in %s", w.URL, delay)
		if err := n.sleep(ctx, delay); err != nil {
			n.complete(id, DeliveryStatusFailed, err.Error())
			return fmt.Errorf("webhook %s: %w", w.URL, err)
		}
	}
}

func (n *Notifier) complete(id string, status DeliveryStatus, message string) {
	now := time.Now()
	n.deliveries.Update(id, func(l *DeliveryLog) {
		l.Status = status
		l.ErrorMessage = message
		l.CompletedAt = &now
	})
}

func (n *Notifier) payload(w Webhook, event *Event) ([]byte, error) {
	var body interface{} = event
	if w.Format == FormatSlack {
		body = FormatSlackMessage(event)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return payload, nil
}

// send posts payload once and returns the response status
func (n *Notifier) send(ctx context.Context, w Webhook, event *Event, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, &permanentError{fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Depgraph-Event", string(event.Type))
	req.Header.Set("X-Depgraph-Event-ID", event.ID)
	if w.Secret != "" {
		req.Header.Set("X-Depgraph-Signature", generateSignature(payload, w.Secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("webhook returned status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return resp.StatusCode, &permanentError{err}
		}
		return resp.StatusCode, err
	}
	return resp.StatusCode, nil
}

// VerifySignature verifies the webhook signature
func VerifySignature(payload []byte, signature, secret string) bool {
	expected := generateSignature(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// generateSignature generates HMAC-SHA256 signature
func generateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
