package scheduler

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/depgraph/pkg/dependencies"
	"github.com/platinummonkey/depgraph/pkg/httputil"
	"github.com/platinummonkey/depgraph/pkg/observability"
	"github.com/platinummonkey/depgraph/pkg/workspace"
)

// Store lists and loads workspaces. FileStore and PostgresStore implement it.
type Store interface {
	workspace.Store
	ListWorkspaceIDs(ctx context.Context) ([]string, error)
}

// Notifier is told about every stored report
type Notifier interface {
	Notify(ctx context.Context, report *Report) error
}

// Report is the outcome of the last scheduled analysis of a workspace
type Report struct {
	WorkspaceID string                             `json:"workspaceId"`
	RunID       string                             `json:"runId"`
	GeneratedAt time.Time                          `json:"generatedAt"`
	Summary     dependencies.GraphSummary          `json:"summary"`
	Cycles      map[dependencies.CycleSeverity]int `json:"cycles"`
	Failures    []dependencies.FetchFailure        `json:"failures"`
}

// Refresher rebuilds and analyzes every workspace on a cron schedule
type Refresher struct {
	store    Store
	builder  *dependencies.Builder
	opts     dependencies.BuildOptions
	log      *logrus.Logger
	metrics  *observability.Metrics
	notifier Notifier

	cron    *cron.Cron
	timeout time.Duration

	mu      sync.RWMutex
	reports map[string]*Report
}

// NewRefresher creates a refresher building graphs with opts
func NewRefresher(store Store, builder *dependencies.Builder, opts dependencies.BuildOptions, log *logrus.Logger) *Refresher {
	if log == nil {
		log = logrus.New()
	}
	return &Refresher{
		store:   store,
		builder: builder,
		opts:    opts,
		log:     log,
		timeout: 5 * time.Minute,
		reports: make(map[string]*Report),
	}
}

// SetMetrics publishes cycle counts per workspace and severity
func (r *Refresher) SetMetrics(metrics *observability.Metrics) {
	r.metrics = metrics
}

// SetNotifier sends each new report to n. Notification failures are logged
// and do not fail the refresh.
func (r *Refresher) SetNotifier(n Notifier) {
	r.notifier = n
}

// SetTimeout bounds each scheduled run
func (r *Refresher) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		r.timeout = timeout
	}
}

// Start schedules RefreshAll with a cron spec such as "@every 15m"
func (r *Refresher) Start(spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.RefreshAll(ctx); err != nil {
			r.log.WithError(err).Error("Scheduled refresh failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	r.cron = c
	c.Start()
	r.log.Infof("Refreshing workspaces on schedule %s", spec)
	return nil
}

// Stop stops the schedule and waits for a running refresh to finish
func (r *Refresher) Stop(ctx context.Context) error {
	if r.cron == nil {
		return nil
	}
	select {
	case <-r.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RefreshAll analyzes every workspace in the store. A workspace that cannot
// be loaded is logged and skipped.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	ids, err := r.store.ListWorkspaceIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list workspaces: %w", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := r.Refresh(ctx, id); err != nil {
			r.log.WithError(err).Warnf("Skipping workspace %s", id)
		}
	}
	return nil
}

// Refresh builds and analyzes one workspace and stores the report
func (r *Refresher) Refresh(ctx context.Context, id string) (*Report, error) {
	ws, err := r.store.GetWorkspace(ctx, id)
	if err != nil {
		return nil, err
	}

	result := r.builder.BuildDependencyGraph(ctx, ws.ID, ws.Repositories, r.opts)
	analyzer := dependencies.NewGraphAnalyzer(result.Graph)

	cycles := map[dependencies.CycleSeverity]int{
		dependencies.SeverityLow:    0,
		dependencies.SeverityMedium: 0,
		dependencies.SeverityHigh:   0,
	}
	for _, c := range analyzer.DetectCycles() {
		cycles[c.Severity]++
	}

	report := &Report{
		WorkspaceID: ws.ID,
		RunID:       result.RunID,
		GeneratedAt: result.Graph.Metadata.GeneratedAt,
		Summary:     analyzer.GenerateSummary(),
		Cycles:      cycles,
		Failures:    result.Failures,
	}

	if r.metrics != nil {
		for severity, n := range cycles {
			r.metrics.GraphCycles.WithLabelValues(ws.ID, string(severity)).Set(float64(n))
		}
	}
	if cycles[dependencies.SeverityHigh] > 0 {
		r.log.WithFields(logrus.Fields{
			"workspace": ws.ID,
			"run_id":    result.RunID,
		}).Warnf("Workspace has %d cross-repository cycles", cycles[dependencies.SeverityHigh])
	}

	r.mu.Lock()
	r.reports[ws.ID] = report
	r.mu.Unlock()

	if r.notifier != nil {
		if err := r.notifier.Notify(ctx, report); err != nil {
			r.log.WithError(err).Warnf("Failed to notify about workspace %s", ws.ID)
		}
	}
	return report, nil
}

// Report returns the last report of a workspace
func (r *Refresher) Report(id string) (*Report, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	report, ok := r.reports[id]
	return report, ok
}

// Reports returns the last report of every refreshed workspace, sorted by id
func (r *Refresher) Reports() []*Report {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Report, 0, len(r.reports))
	for _, report := range r.reports {
		out = append(out, report)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkspaceID < out[j].WorkspaceID })
	return out
}

// RegisterRoutes exposes the stored reports
func (r *Refresher) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/reports", r.listReports).Methods("GET")
	router.HandleFunc("/reports/{id}", r.getReport).Methods("GET")
}

func (r *Refresher) listReports(w http.ResponseWriter, req *http.Request) {
	reports := r.Reports()
	httputil.WriteSuccess(w, map[string]interface{}{
		"reports": reports,
		"count":   len(reports),
	})
}

func (r *Refresher) getReport(w http.ResponseWriter, req *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, req, "id")
	if !ok {
		return
	}
	report, found := r.Report(id)
	if !found {
		httputil.WriteNotFoundError(w, fmt.Sprintf("no report for workspace %s", id))
		return
	}
	httputil.WriteSuccess(w, report)
}
