// Package ingest serves the batch endpoint of the reference collector.
package ingest

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"github.com/tonkeeper/apicapture/internal/sink"
	"github.com/tonkeeper/apicapture/internal/utils"
)

var (
	receivedEventsMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collectord_events_received_total",
		Help: "The total number of events accepted by the collector",
	})
	acceptedBatchesMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collectord_batches_accepted_total",
		Help: "The total number of batches accepted by the collector",
	})
	rejectedBatchesMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collectord_batches_rejected_total",
		Help: "The total number of rejected batches, by reason",
	}, []string{"reason"})
)

type eventsRequest struct {
	Events []json.RawMessage `json:"events"`
}

type statsResponse struct {
	Count int64 `json:"count"`
}

type handler struct {
	storage sink.Storage
}

func NewHandler(s sink.Storage) *handler {
	return &handler{storage: s}
}

// EventsHandler accepts a {"events":[...]} batch and stores it.
func (h *handler) EventsHandler(c echo.Context) error {
	log := logrus.WithField("prefix", "EventsHandler")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		rejectedBatchesMetric.WithLabelValues("read").Inc()
		return c.JSON(utils.HttpResError("failed to read body", http.StatusBadRequest))
	}

	var req eventsRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		rejectedBatchesMetric.WithLabelValues("malformed").Inc()
		log.WithError(err).Debug("malformed batch")
		return c.JSON(utils.HttpResError("malformed batch", http.StatusBadRequest))
	}
	if req.Events == nil {
		rejectedBatchesMetric.WithLabelValues("missing_events").Inc()
		return c.JSON(utils.HttpResError("param \"events\" not present", http.StatusBadRequest))
	}

	if err := h.storage.Store(c.Request().Context(), req.Events); err != nil {
		rejectedBatchesMetric.WithLabelValues("storage").Inc()
		log.WithError(err).Error("failed to store batch")
		return c.JSON(utils.HttpResError("storage unavailable", http.StatusServiceUnavailable))
	}

	acceptedBatchesMetric.Inc()
	receivedEventsMetric.Add(float64(len(req.Events)))
	log.WithField("events", len(req.Events)).Debug("batch stored")
	return c.JSON(http.StatusAccepted, utils.HttpResAccepted())
}

// StatsHandler reports how many events the storage holds.
func (h *handler) StatsHandler(c echo.Context) error {
	count, err := h.storage.Count(c.Request().Context())
	if err != nil {
		logrus.WithField("prefix", "StatsHandler").WithError(err).Error("failed to count events")
		return c.JSON(utils.HttpResError("storage unavailable", http.StatusServiceUnavailable))
	}
	return c.JSON(http.StatusOK, statsResponse{Count: count})
}
