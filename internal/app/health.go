package app

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tonkeeper/apicapture/internal"
)

// HealthChecker is implemented by every sink storage.
type HealthChecker interface {
	HealthCheck() error
}

// HealthManager tracks whether the collector's storage is reachable.
type HealthManager struct {
	healthy atomic.Bool
}

func NewHealthManager() *HealthManager {
	return &HealthManager{}
}

// UpdateHealthStatus checks storage health and updates metrics
func (h *HealthManager) UpdateHealthStatus(storage HealthChecker) {
	healthy := storage.HealthCheck() == nil
	h.healthy.Store(healthy)

	var status float64
	if healthy {
		status = 1
	}
	HealthMetric.Set(status)
	ReadyMetric.Set(status)
}

// StartHealthMonitoring checks storage every interval until stop is closed.
func (h *HealthManager) StartHealthMonitoring(storage HealthChecker, interval time.Duration, stop <-chan struct{}) {
	h.UpdateHealthStatus(storage)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.UpdateHealthStatus(storage)
		}
	}
}

func (h *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Build-Commit", internal.VersionRevision)

	if !h.healthy.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := fmt.Fprintf(w, `{"status":"unhealthy"}`+"\n"); err != nil {
			log.Errorf("health response write error: %v", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprintf(w, `{"status":"ok"}`+"\n"); err != nil {
		log.Errorf("health response write error: %v", err)
	}
}

func VersionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Build-Commit", internal.VersionRevision)

	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprintf(w, `{"version":"%s"}`+"\n", internal.VersionRevision); err != nil {
		log.Errorf("version response write error: %v", err)
	}
}
