package capture_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/sirupsen/logrus"
)

// CollectorMock is an in-process collector that records every accepted batch.
type CollectorMock struct {
	Server *httptest.Server

	mu             sync.RWMutex
	receivedEvents []map[string]interface{}
	requests       int
	failEvery      int
}

// NewCollectorMock starts a mock that answers 503 to every failEvery-th
// request, or never when failEvery is zero.
func NewCollectorMock(failEvery int) *CollectorMock {
	mock := &CollectorMock{failEvery: failEvery}

	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Path != "/api/v1/events" && r.URL.Path != "/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			logrus.Errorf("collector mock: failed to read body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var batch struct {
			Events []map[string]interface{} `json:"events"`
		}
		if err := json.Unmarshal(body, &batch); err != nil {
			logrus.Errorf("collector mock: failed to unmarshal batch: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		mock.mu.Lock()
		mock.requests++
		if mock.failEvery > 0 && mock.requests%mock.failEvery == 0 {
			mock.mu.Unlock()
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		mock.receivedEvents = append(mock.receivedEvents, batch.Events...)
		mock.mu.Unlock()

		w.WriteHeader(http.StatusAccepted)
	}))

	return mock
}

func (m *CollectorMock) URL() string {
	return m.Server.URL
}

func (m *CollectorMock) Close() {
	m.Server.Close()
}

func (m *CollectorMock) GetEvents() []map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]map[string]interface{}(nil), m.receivedEvents...)
}

func (m *CollectorMock) GetEventCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.receivedEvents)
}
