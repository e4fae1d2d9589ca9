package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/depgraph/pkg/dependencies"
	"github.com/platinummonkey/depgraph/pkg/scheduler"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testReport(highCycles int) *scheduler.Report {
	return &scheduler.Report{
		WorkspaceID: "platform",
		RunID:       "run-1",
		GeneratedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Summary: dependencies.GraphSummary{
			TotalRepositories: 3,
			TotalDependencies: 7,
			CrossRepoLinks:    2,
		},
		Cycles: map[dependencies.CycleSeverity]int{
			dependencies.SeverityLow:    1,
			dependencies.SeverityMedium: 0,
			dependencies.SeverityHigh:   highCycles,
		},
	}
}

type received struct {
	headers http.Header
	body    []byte
}

// receiver answers with statuses in order, repeating the last one
func receiver(t *testing.T, statuses ...int) (*httptest.Server, func() []received) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []received
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls = append(calls, received{headers: r.Header.Clone(), body: body})
		i := min(len(calls), len(statuses)) - 1
		mu.Unlock()
		w.WriteHeader(statuses[i])
	}))
	t.Cleanup(srv.Close)
	return srv, func() []received {
		mu.Lock()
		defer mu.Unlock()
		return append([]received(nil), calls...)
	}
}

func newTestNotifier(t *testing.T, hooks []Webhook, retry RetryConfig) (*Notifier, *[]time.Duration) {
	t.Helper()
	n, err := NewNotifier(hooks, retry, quietLogger())
	require.NoError(t, err)

	var delays []time.Duration
	n.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return n, &delays
}

func TestNotifier_DeliversSignedEvent(t *testing.T) {
	srv, calls := receiver(t, http.StatusOK)
	n, _ := newTestNotifier(t, []Webhook{{URL: srv.URL, Secret: "s3cret"}}, DefaultRetryConfig())

	require.NoError(t, n.Notify(context.Background(), testReport(2)))

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, "application/json", got[0].headers.Get("Content-Type"))
	assert.Equal(t, string(EventCyclesDetected), got[0].headers.Get("X-Depgraph-Event"))
	assert.True(t, VerifySignature(got[0].body, got[0].headers.Get("X-Depgraph-Signature"), "s3cret"))
	assert.False(t, VerifySignature(got[0].body, got[0].headers.Get("X-Depgraph-Signature"), "other"))

	var event Event
	require.NoError(t, json.Unmarshal(got[0].body, &event))
	assert.Equal(t, EventCyclesDetected, event.Type)
	assert.Equal(t, got[0].headers.Get("X-Depgraph-Event-ID"), event.ID)
	assert.Equal(t, "platform", event.Report.WorkspaceID)
	assert.Equal(t, 2, event.Report.Cycles[dependencies.SeverityHigh])

	deliveries := n.Deliveries().Recent(0)
	require.Len(t, deliveries, 1)
	assert.Equal(t, DeliveryStatusSuccess, deliveries[0].Status)
	assert.Equal(t, 1, deliveries[0].Attempts)
	assert.Equal(t, http.StatusOK, deliveries[0].StatusCode)
	assert.Equal(t, "platform", deliveries[0].WorkspaceID)
	assert.NotNil(t, deliveries[0].CompletedAt)
}

func TestNotifier_Unsigned(t *testing.T) {
	srv, calls := receiver(t, http.StatusNoContent)
	n, _ := newTestNotifier(t, []Webhook{{URL: srv.URL}}, DefaultRetryConfig())

	require.NoError(t, n.Notify(context.Background(), testReport(0)))
	got := calls()
	require.Len(t, got, 1)
	assert.Empty(t, got[0].headers.Get("X-Depgraph-Signature"))
	assert.Equal(t, string(EventGraphRefreshed), got[0].headers.Get("X-Depgraph-Event"))
}

func TestNotifier_Subscriptions(t *testing.T) {
	all, allCalls := receiver(t, http.StatusOK)
	cyclesOnly, cyclesCalls := receiver(t, http.StatusOK)
	n, _ := newTestNotifier(t, []Webhook{
		{URL: all.URL},
		{URL: cyclesOnly.URL, Events: []EventType{EventCyclesDetected}},
	}, DefaultRetryConfig())

	require.NoError(t, n.Notify(context.Background(), testReport(0)))
	assert.Len(t, allCalls(), 1)
	assert.Empty(t, cyclesCalls())

	require.NoError(t, n.Notify(context.Background(), testReport(1)))
	assert.Len(t, allCalls(), 2)
	assert.Len(t, cyclesCalls(), 1)
}

func TestNotifier_RetriesWithBackoff(t *testing.T) {
	srv, calls := receiver(t, http.StatusInternalServerError, http.StatusTooManyRequests, http.StatusOK)
	n, delays := newTestNotifier(t, []Webhook{{URL: srv.URL}}, DefaultRetryConfig())

	require.NoError(t, n.Notify(context.Background(), testReport(0)))
	assert.Len(t, calls(), 3)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *delays)

	deliveries := n.Deliveries().Recent(0)
	require.Len(t, deliveries, 1)
	assert.Equal(t, DeliveryStatusSuccess, deliveries[0].Status)
	assert.Equal(t, 3, deliveries[0].Attempts)
}

func TestNotifier_Failures(t *testing.T) {
	tests := []struct {
		name         string
		statuses     []int
		wantAttempts int
	}{
		{"client error is not retried", []int{http.StatusBadRequest}, 1},
		{"gives up after max attempts", []int{http.StatusServiceUnavailable}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := receiver(t, tt.statuses...)
			n, _ := newTestNotifier(t, []Webhook{{URL: srv.URL}}, RetryConfig{MaxAttempts: 3})

			err := n.Notify(context.Background(), testReport(0))
			require.Error(t, err)
			assert.Contains(t, err.Error(), srv.URL)
			assert.Len(t, calls(), tt.wantAttempts)

			deliveries := n.Deliveries().Recent(0)
			require.Len(t, deliveries, 1)
			assert.Equal(t, DeliveryStatusFailed, deliveries[0].Status)
			assert.Equal(t, tt.wantAttempts, deliveries[0].Attempts)
			assert.Contains(t, deliveries[0].ErrorMessage, "webhook returned status")
		})
	}
}

func TestNotifier_CancelledWhileWaiting(t *testing.T) {
	srv, calls := receiver(t, http.StatusBadGateway)
	n, _ := newTestNotifier(t, []Webhook{{URL: srv.URL}}, DefaultRetryConfig())

	ctx, cancel := context.WithCancel(context.Background())
	n.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	err := n.Notify(ctx, testReport(0))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, calls(), 1)
}

func TestNotifier_SlackFormat(t *testing.T) {
	srv, calls := receiver(t, http.StatusOK)
	n, _ := newTestNotifier(t, []Webhook{{URL: srv.URL, Format: FormatSlack}}, DefaultRetryConfig())

	report := testReport(1)
	report.Failures = []dependencies.FetchFailure{{Repository: "acme/gone", Error: "manifest not found"}}
	require.NoError(t, n.Notify(context.Background(), report))

	got := calls()
	require.Len(t, got, 1)
	var msg SlackMessage
	require.NoError(t, json.Unmarshal(got[0].body, &msg))
	assert.Equal(t, "Cross-repository dependency cycles detected: platform", msg.Text)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "danger", msg.Attachments[0].Color)

	fields := make(map[string]string)
	for _, f := range msg.Attachments[0].Fields {
		fields[f.Title] = f.Value
	}
	assert.Equal(t, "1 high, 0 medium, 1 low", fields["Cycles"])
	assert.Equal(t, "3", fields["Repositories"])
	assert.Equal(t, "1", fields["Skipped repositories"])
}

func TestNewNotifier_Validation(t *testing.T) {
	_, err := NewNotifier([]Webhook{{}}, DefaultRetryConfig(), nil)
	assert.ErrorContains(t, err, "URL is required")

	_, err = NewNotifier([]Webhook{{URL: "http://example.com", Format: "teams"}}, DefaultRetryConfig(), nil)
	assert.ErrorContains(t, err, "invalid webhook format")

	n, err := NewNotifier(nil, RetryConfig{}, nil)
	require.NoError(t, err)
	assert.NoError(t, n.Notify(context.Background(), testReport(1)))
}
