package app

import (
	client_prometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tonkeeper/apicapture/internal"
)

var (
	TokenUsageMetric = promauto.NewCounterVec(client_prometheus.CounterOpts{
		Name: "collectord_token_usage",
	}, []string{"token"})

	HealthMetric = client_prometheus.NewGauge(client_prometheus.GaugeOpts{
		Name: "collectord_health_status",
		Help: "Health status of the collector (1 = healthy, 0 = unhealthy)",
	})

	ReadyMetric = client_prometheus.NewGauge(client_prometheus.GaugeOpts{
		Name: "collectord_ready_status",
		Help: "Ready status of the collector (1 = ready, 0 = not ready)",
	})

	VersionMetric = client_prometheus.NewGaugeVec(client_prometheus.GaugeOpts{
		Name: "collectord_version_info",
		Help: "Version information of the collector",
	}, []string{"version"})
)

// InitMetrics registers the health gauges and sets version info
func InitMetrics() {
	client_prometheus.MustRegister(HealthMetric)
	client_prometheus.MustRegister(ReadyMetric)
	client_prometheus.MustRegister(VersionMetric)
	VersionMetric.WithLabelValues(internal.VersionRevision).Set(1)
}
