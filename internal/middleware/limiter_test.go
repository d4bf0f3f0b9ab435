package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tonkeeper/apicapture/internal/utils"
)

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", nil)
	req.RemoteAddr = addr
	return req
}

func TestConnectionsLimiter_LeaseConnection(t *testing.T) {
	extractor, err := utils.NewRealIPExtractor([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("failed to create extractor: %v", err)
	}
	limiter := NewConnectionLimiter(2, extractor)

	release1, err := limiter.LeaseConnection(requestFrom("192.0.2.1:1000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	release2, err := limiter.LeaseConnection(requestFrom("192.0.2.1:1001"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := limiter.LeaseConnection(requestFrom("192.0.2.1:1002")); err == nil {
		t.Error("expected third lease from the same IP to fail")
	}

	release, err := limiter.LeaseConnection(requestFrom("192.0.2.2:1000"))
	if err != nil {
		t.Errorf("expected another IP to get its own slots, got %v", err)
	} else {
		release()
	}

	release1()
	release3, err := limiter.LeaseConnection(requestFrom("192.0.2.1:1003"))
	if err != nil {
		t.Errorf("expected lease after release to succeed, got %v", err)
	}

	release2()
	release3()
	if len(limiter.connections) != 0 {
		t.Errorf("expected all slots to be freed, got %v", limiter.connections)
	}
}
