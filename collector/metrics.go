package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	dropReasonCapacity       = "capacity"
	dropReasonRetryExhausted = "retry_exhausted"
	dropReasonEncode         = "encode"
)

var (
	queueLengthMetric = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "apicapture_queue_length",
		Help: "The current number of events waiting to be sent",
	}, []string{"collector"})
	enqueuedMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apicapture_events_enqueued_total",
		Help: "The total number of events accepted into the queue",
	}, []string{"collector"})
	sampledOutMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apicapture_events_sampled_out_total",
		Help: "The total number of events rejected by the sampler",
	}, []string{"collector"})
	droppedMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apicapture_events_dropped_total",
		Help: "The total number of events lost, by reason",
	}, []string{"collector", "reason"})
	batchesSentMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apicapture_batches_sent_total",
		Help: "The total number of batches delivered",
	}, []string{"collector"})
	batchFailuresMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apicapture_batch_failures_total",
		Help: "The total number of failed batch deliveries",
	}, []string{"collector"})
	flushSkippedMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apicapture_flush_skipped_total",
		Help: "The total number of flush triggers ignored because a flush was in flight",
	}, []string{"collector"})
)

type collectorMetrics struct {
	queueLength    prometheus.Gauge
	enqueued       prometheus.Counter
	sampledOut     prometheus.Counter
	droppedFull    prometheus.Counter
	droppedRetry   prometheus.Counter
	droppedEncode  prometheus.Counter
	batchesSent    prometheus.Counter
	batchFailures  prometheus.Counter
	flushesSkipped prometheus.Counter
}

func newCollectorMetrics(name string) collectorMetrics {
	return collectorMetrics{
		queueLength:    queueLengthMetric.WithLabelValues(name),
		enqueued:       enqueuedMetric.WithLabelValues(name),
		sampledOut:     sampledOutMetric.WithLabelValues(name),
		droppedFull:    droppedMetric.WithLabelValues(name, dropReasonCapacity),
		droppedRetry:   droppedMetric.WithLabelValues(name, dropReasonRetryExhausted),
		droppedEncode:  droppedMetric.WithLabelValues(name, dropReasonEncode),
		batchesSent:    batchesSentMetric.WithLabelValues(name),
		batchFailures:  batchFailuresMetric.WithLabelValues(name),
		flushesSkipped: flushSkippedMetric.WithLabelValues(name),
	}
}
