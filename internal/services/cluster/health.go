package cluster

import (
	"encoding/json"
	"net/http"
	"sync"
)

// CheckFunc reports an unhealthy dependency by returning an error.
type CheckFunc func() error

// HealthAggregator exposes several named checks behind one HTTP endpoint.
type HealthAggregator struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
	stats  map[string]func() any
}

func NewHealthAggregator() *HealthAggregator {
	return &HealthAggregator{
		checks: make(map[string]CheckFunc),
		stats:  make(map[string]func() any),
	}
}

func (h *HealthAggregator) AddCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// AddStat adds an informational value to healthy responses.
func (h *HealthAggregator) AddStat(name string, stat func() any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stats[name] = stat
}

// Handler answers 200 with the stats when every check passes and 503 with the
// failing checks otherwise.
func (h *HealthAggregator) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.mu.RLock()
		defer h.mu.RUnlock()

		failures := make(map[string]string)
		for name, check := range h.checks {
			if err := check(); err != nil {
				failures[name] = err.Error()
			}
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if len(failures) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(failures)
			return
		}

		body := map[string]any{"status": "healthy"}
		for name, stat := range h.stats {
			body[name] = stat()
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(body)
	}
}
