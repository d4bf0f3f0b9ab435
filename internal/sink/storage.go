// Package sink persists event batches received by the reference collector.
package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tonkeeper/apicapture/internal/config"
)

var storedEventsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "collectord_events_stored_total",
	Help: "The total number of events persisted, by storage backend",
}, []string{"storage"})

type Storage interface {
	// Store persists events in order. A batch is stored entirely or not at all.
	Store(ctx context.Context, events []json.RawMessage) error
	Count(ctx context.Context) (int64, error)
	HealthCheck() error
}

func NewStorage(storageType string, uri string) (Storage, error) {
	switch storageType {
	case "valkey", "redis":
		return NewValkeyStorage(uri, config.Config.ValkeyKey, int64(config.Config.SinkMaxEvents))
	case "postgres":
		return NewPgStorage(uri)
	case "memory":
		return NewMemStorage(config.Config.SinkMaxEvents), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
