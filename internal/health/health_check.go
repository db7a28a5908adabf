package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/devrev/catalogd/internal/model"
	"github.com/devrev/catalogd/internal/service"
	"github.com/devrev/catalogd/internal/util/workerpool"
	"go.uber.org/zap"
)

// SessionLister exposes the live sessions whose status is aggregated
type SessionLister interface {
	Sessions() []*service.Session
}

// PoolStatter exposes worker pool statistics
type PoolStatter interface {
	Stats() workerpool.Stats
}

// HealthChecker performs health checks for the catalog service
type HealthChecker struct {
	sessions    SessionLister
	pool        PoolStatter
	interval    time.Duration
	logger      *zap.Logger
	mu          sync.RWMutex
	lastCheck   time.Time
	status      model.Status
	sessionsN   int
	checks      map[string]CheckResult
	readinessOK bool
	draining    bool
}

// CheckResult represents the result of a health check
type CheckResult struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthCheckConfig holds configuration for health checks
type HealthCheckConfig struct {
	Interval time.Duration
}

// Report is the body of the /health response
type Report struct {
	Healthy   bool                   `json:"healthy"`
	Status    model.Status           `json:"status"`
	Sessions  int                    `json:"sessions"`
	Checks    map[string]CheckResult `json:"checks"`
	CheckedAt time.Time              `json:"checked_at"`
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(cfg *HealthCheckConfig, sessions SessionLister, pool PoolStatter, logger *zap.Logger) *HealthChecker {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	h := &HealthChecker{
		sessions:    sessions,
		pool:        pool,
		interval:    interval,
		logger:      logger,
		checks:      make(map[string]CheckResult),
		readinessOK: true,
		status:      model.StatusOK,
	}
	h.RunChecks()
	return h
}

// Start runs the checks periodically until ctx is done
func (h *HealthChecker) Start(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.RunChecks()
		case <-ctx.Done():
			h.logger.Info("Health checker stopped")
			return
		}
	}
}

// RunChecks evaluates every check and updates the cached report
func (h *HealthChecker) RunChecks() {
	sessions := h.sessions.Sessions()
	status := model.StatusOK
	for _, s := range sessions {
		status = status.Worse(s.Status())
	}

	results := []CheckResult{
		h.checkSessions(sessions),
		h.checkWorkerPool(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastCheck = time.Now()
	h.status = status
	h.sessionsN = len(sessions)

	ready := !h.draining
	for _, r := range results {
		h.checks[r.Name] = r
		if r.Status == "critical" {
			ready = false
		}
	}
	h.readinessOK = ready

	h.logger.Debug("Health check completed",
		zap.String("status", string(h.status)),
		zap.Int("sessions", h.sessionsN),
		zap.Bool("readiness", h.readinessOK))
}

// checkSessions counts sessions that are not fully healthy
func (h *HealthChecker) checkSessions(sessions []*service.Session) CheckResult {
	var degraded, failed int
	for _, s := range sessions {
		switch s.Status() {
		case model.StatusDegraded:
			degraded++
		case model.StatusError:
			failed++
		}
	}

	result := CheckResult{
		Name:      "sessions",
		Status:    "healthy",
		Message:   fmt.Sprintf("%d sessions, %d degraded, %d failed", len(sessions), degraded, failed),
		Timestamp: time.Now(),
	}
	if degraded+failed > 0 {
		result.Status = "warning"
	}
	return result
}

// checkWorkerPool reports queue saturation of the fetch pool
func (h *HealthChecker) checkWorkerPool() CheckResult {
	stats := h.pool.Stats()
	usage := stats.QueueUtilization()

	result := CheckResult{
		Name:      "worker_pool",
		Status:    "healthy",
		Message:   fmt.Sprintf("Queue usage: %.2f%% (%d/%d), rejected: %d", usage, stats.Queued, stats.QueueSize, stats.Rejected),
		Timestamp: time.Now(),
	}
	switch {
	case usage >= 100:
		result.Status = "critical"
	case usage > 90:
		result.Status = "warning"
	}
	return result
}

// IsReady returns whether the service can take traffic
func (h *HealthChecker) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.readinessOK
}

// Status returns the worst status across all sessions at the last check
func (h *HealthChecker) Status() model.Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// Report returns a copy of the last check results
func (h *HealthChecker) Report() Report {
	h.mu.RLock()
	defer h.mu.RUnlock()

	checks := make(map[string]CheckResult, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}
	return Report{
		Healthy:   true,
		Status:    h.status,
		Sessions:  h.sessionsN,
		Checks:    checks,
		CheckedAt: h.lastCheck,
	}
}

// SetDraining marks the service as shutting down so readiness fails
func (h *HealthChecker) SetDraining() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.draining = true
	h.readinessOK = false
}

// LivenessHandler handles GET /health
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(h.Report())
}

// ReadinessHandler handles GET /ready
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ready := h.IsReady()

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"ready":  ready,
		"status": h.Status(),
	})
}
