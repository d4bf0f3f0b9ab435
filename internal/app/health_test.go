package app

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type stubChecker struct {
	err error
}

func (s stubChecker) HealthCheck() error {
	return s.err
}

func TestHealthManager_HealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		checker    HealthChecker
		wantStatus int
		wantBody   string
	}{
		{name: "healthy storage", checker: stubChecker{}, wantStatus: http.StatusOK, wantBody: `{"status":"ok"}`},
		{name: "unhealthy storage", checker: stubChecker{err: errors.New("down")}, wantStatus: http.StatusServiceUnavailable, wantBody: `{"status":"unhealthy"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthManager()
			h.UpdateHealthStatus(tt.checker)

			rec := httptest.NewRecorder()
			h.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if strings.TrimSpace(rec.Body.String()) != tt.wantBody {
				t.Errorf("expected body %s, got %s", tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestHealthManager_StartHealthMonitoringStops(t *testing.T) {
	h := NewHealthManager()
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		h.StartHealthMonitoring(stubChecker{}, time.Millisecond, stop)
		close(done)
	}()
	close(stop)
	<-done

	if !h.healthy.Load() {
		t.Error("expected initial health check to mark the manager healthy")
	}
}
