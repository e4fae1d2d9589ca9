package webhooks

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/depgraph/pkg/httputil"
)

// DeliveryStatus represents the status of a webhook delivery
type DeliveryStatus string

const (
	DeliveryStatusPending  DeliveryStatus = "pending"
	DeliveryStatusSuccess  DeliveryStatus = "success"
	DeliveryStatusFailed   DeliveryStatus = "failed"
	DeliveryStatusRetrying DeliveryStatus = "retrying"
)

// DeliveryLog records the delivery of one event to one webhook
type DeliveryLog struct {
	ID           string         `json:"id"`
	EventID      string         `json:"event_id"`
	EventType    EventType      `json:"event_type"`
	WorkspaceID  string         `json:"workspace_id"`
	URL          string         `json:"url"`
	Status       DeliveryStatus `json:"status"`
	StatusCode   int            `json:"status_code,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Attempts     int            `json:"attempts"`
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	Duration     time.Duration  `json:"duration,omitempty"`
}

// DeliveryStats summarizes the retained delivery logs
type DeliveryStats struct {
	Total       int     `json:"total"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	Retrying    int     `json:"retrying"`
	SuccessRate float64 `json:"success_rate"`
}

// DeliveryLogStore keeps the most recent delivery logs in memory
type DeliveryLogStore struct {
	mutex   sync.RWMutex
	logs    map[string]*DeliveryLog
	order   []string
	maxLogs int
}

// NewDeliveryLogStore creates a store retaining at most maxLogs entries
func NewDeliveryLogStore(maxLogs int) *DeliveryLogStore {
	if maxLogs <= 0 {
		maxLogs = 1000
	}
	return &DeliveryLogStore{
		logs:    make(map[string]*DeliveryLog),
		maxLogs: maxLogs,
	}
}

// Add stores a copy of log, evicting the oldest entry when full
func (s *DeliveryLogStore) Add(log DeliveryLog) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.order) >= s.maxLogs {
		delete(s.logs, s.order[0])
		s.order = s.order[1:]
	}
	s.logs[log.ID] = &log
	s.order = append(s.order, log.ID)
}

// Update applies fn to the stored log with id, if it is still retained
func (s *DeliveryLogStore) Update(id string, fn func(*DeliveryLog)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if log, ok := s.logs[id]; ok {
		fn(log)
	}
}

// Get returns a copy of the log with id
func (s *DeliveryLogStore) Get(id string) (DeliveryLog, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	log, ok := s.logs[id]
	if !ok {
		return DeliveryLog{}, false
	}
	return *log, true
}

// Recent returns up to limit logs, newest first. A limit of zero or less
// returns every retained log.
func (s *DeliveryLogStore) Recent(limit int) []DeliveryLog {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	n := len(s.order)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]DeliveryLog, 0, n)
	for i := len(s.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, *s.logs[s.order[i]])
	}
	return out
}

// Stats counts the retained logs by status
func (s *DeliveryLogStore) Stats() DeliveryStats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var stats DeliveryStats
	for _, log := range s.logs {
		stats.Total++
		switch log.Status {
		case DeliveryStatusSuccess:
			stats.Successful++
		case DeliveryStatusFailed:
			stats.Failed++
		case DeliveryStatusRetrying:
			stats.Retrying++
		}
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Successful) / float64(stats.Total)
	}
	return stats
}

// RegisterRoutes exposes the delivery log
func (s *DeliveryLogStore) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/webhooks/deliveries", s.listDeliveries).Methods("GET")
}

// listDeliveries handles GET /webhooks/deliveries?limit=
func (s *DeliveryLogStore) listDeliveries(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", 50)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"deliveries": s.Recent(limit),
		"stats":      s.Stats(),
	})
}
