// Package metrics keeps aggregate request counters for the status resource.
package metrics

import (
	"sync"
	"time"
)

// Service counts requests, errors and timings since process start.
type Service struct {
	mu             sync.Mutex
	startedAt      time.Time
	totalRequests  int64
	totalErrors    int64
	byMethod       map[string]int64
	byAgent        map[string]int64
	errorsByMethod map[string]int64
	errorsByAgent  map[string]int64
	totalLatency   time.Duration
}

// New creates an empty metrics service.
func New() *Service {
	return &Service{
		startedAt:      time.Now(),
		byMethod:       make(map[string]int64),
		byAgent:        make(map[string]int64),
		errorsByMethod: make(map[string]int64),
		errorsByAgent:  make(map[string]int64),
	}
}

// RecordRequest counts one handled request with its latency.
func (s *Service) RecordRequest(agentID, method string, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRequests++
	s.byMethod[method]++
	if agentID != "" {
		s.byAgent[agentID]++
	}
	s.totalLatency += latency
}

// RecordError counts one failed request.
func (s *Service) RecordError(agentID, method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalErrors++
	s.errorsByMethod[method]++
	if agentID != "" {
		s.errorsByAgent[agentID]++
	}
}

// Snapshot returns a copy of the current counters.
func (s *Service) Snapshot() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	byMethod := copyCounts(s.byMethod)
	byAgent := copyCounts(s.byAgent)
	errorsByMethod := copyCounts(s.errorsByMethod)
	errorsByAgent := copyCounts(s.errorsByAgent)

	var avgLatencyMs float64
	if s.totalRequests > 0 {
		avgLatencyMs = float64(s.totalLatency.Milliseconds()) / float64(s.totalRequests)
	}

	return map[string]interface{}{
		"uptimeSeconds":   int64(time.Since(s.startedAt).Seconds()),
		"totalRequests":   s.totalRequests,
		"totalErrors":     s.totalErrors,
		"requestsByType":  byMethod,
		"requestsByAgent": byAgent,
		"errorsByType":    errorsByMethod,
		"errorsByAgent":   errorsByAgent,
		"avgLatencyMs":    avgLatencyMs,
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
