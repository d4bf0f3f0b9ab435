package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// ValkeyStorage appends events to a capped list.
type ValkeyStorage struct {
	client    redis.UniversalClient
	key       string
	maxEvents int64
}

func NewValkeyStorage(valkeyURI string, key string, maxEvents int64) (*ValkeyStorage, error) {
	log := log.WithField("prefix", "NewValkeyStorage")

	opts, err := redis.ParseURL(strings.TrimSpace(valkeyURI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse URI: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}

	log.Info("Successfully connected to Valkey")
	return newValkeyStorage(client, key, maxEvents), nil
}

func newValkeyStorage(client redis.UniversalClient, key string, maxEvents int64) *ValkeyStorage {
	return &ValkeyStorage{
		client:    client,
		key:       key,
		maxEvents: maxEvents,
	}
}

func (s *ValkeyStorage) Store(ctx context.Context, events []json.RawMessage) error {
	if len(events) == 0 {
		return nil
	}

	values := make([]interface{}, len(events))
	for i, e := range events {
		values[i] = []byte(e)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, s.key, values...)
		if s.maxEvents > 0 {
			pipe.LTrim(ctx, s.key, -s.maxEvents, -1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store %d events: %w", len(events), err)
	}

	storedEventsMetric.WithLabelValues("valkey").Add(float64(len(events)))
	return nil
}

// Count returns the number of retained events.
func (s *ValkeyStorage) Count(ctx context.Context) (int64, error) {
	n, err := s.client.LLen(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

func (s *ValkeyStorage) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("valkey health check failed: %w", err)
	}
	return nil
}
