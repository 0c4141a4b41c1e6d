package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	redisclient "vega/internal/adapters/redis"
	"vega/internal/services/position"
	"vega/internal/services/snapshot"
	"vega/internal/workers"
	"vega/pkg/logger"
)

// Handler provides health check endpoints
type Handler struct {
	log         *logger.Logger
	redis       *redisclient.Client // nil when running on the in-process backend
	store       *snapshot.Store
	tracker     *position.Tracker
	scanner     workers.WorkerWithHealth
	startTime   time.Time
	serviceName string
	version     string
}

func New(
	log *logger.Logger,
	redis *redisclient.Client,
	store *snapshot.Store,
	tracker *position.Tracker,
	scanner workers.WorkerWithHealth,
	serviceName, version string,
) *Handler {
	return &Handler{
		log:         log,
		redis:       redis,
		store:       store,
		tracker:     tracker,
		scanner:     scanner,
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                     `json:"status"` // "healthy" or "unhealthy"
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Uptime    string                     `json:"uptime"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks"`
	Scanner   ScannerStatus              `json:"scanner"`
	Snapshots SnapshotStatus             `json:"snapshots"`
	Position  PositionStatus             `json:"position"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// ScannerStatus summarizes the scan worker's recent activity
type ScannerStatus struct {
	LastRun    string `json:"last_run"`
	RunCount   int64  `json:"run_count"`
	ErrorCount int64  `json:"error_count"`
	LastError  string `json:"last_error,omitempty"`
}

// SnapshotStatus summarizes open-interest history warmup
type SnapshotStatus struct {
	Count          int     `json:"count"`
	ElapsedMinutes float64 `json:"elapsed_minutes"`
	WarmedUp5m     bool    `json:"warmed_up_5m"`
	WarmedUp15m    bool    `json:"warmed_up_15m"`
}

// PositionStatus summarizes the tracker state
type PositionStatus struct {
	Active bool `json:"active"`
	Closed int  `json:"closed_today"`
}

// HandleLiveness returns 200 OK if the process is running
func (h *Handler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// HandleHealth returns detailed health status including all checks
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]ComponentHealth)
	allHealthy := true

	redisHealth := h.checkRedis(ctx)
	checks["snapshot_backend"] = redisHealth
	if redisHealth.Status == "unhealthy" {
		allHealthy = false
	}

	stats := h.store.Stats(ctx)
	scannerHealth := h.scanner.Health()

	status := HealthStatus{
		Status:    "healthy",
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    checks,
		Scanner: ScannerStatus{
			LastRun:    scannerHealth.LastRun.Format(time.RFC3339),
			RunCount:   scannerHealth.RunCount,
			ErrorCount: scannerHealth.ErrorCount,
		},
		Snapshots: SnapshotStatus{
			Count:          stats.SnapshotCount,
			ElapsedMinutes: stats.ElapsedMinutes,
			WarmedUp5m:     stats.WarmedUp5m,
			WarmedUp15m:    stats.WarmedUp15m,
		},
		Position: PositionStatus{
			Active: h.tracker.HasActive(),
			Closed: len(h.tracker.Closed()),
		},
	}
	if scannerHealth.LastError != nil {
		status.Scanner.LastError = scannerHealth.LastError.Error()
	}

	statusCode := http.StatusOK
	if !allHealthy {
		status.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
		h.log.Warnw("Health check failed", "checks", checks)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		h.log.Errorw("Failed to encode health response", "error", err)
	}
}

func (h *Handler) checkRedis(ctx context.Context) ComponentHealth {
	if h.redis == nil {
		return ComponentHealth{Status: "in-process"}
	}

	start := time.Now()
	if err := h.redis.Health(ctx); err != nil {
		return ComponentHealth{Status: "unhealthy", Error: err.Error()}
	}
	return ComponentHealth{
		Status:       "healthy",
		ResponseTime: time.Since(start).String(),
	}
}
