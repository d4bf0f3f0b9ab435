package sink

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/tonkeeper/apicapture/internal/config"
)

// PgStorage inserts events into apicapture.events.
type PgStorage struct {
	postgres *pgxpool.Pool
}

//go:embed migrations/*.sql
var fs embed.FS

func MigrateDb(postgresURI string) error {
	log := logrus.WithField("prefix", "MigrateDb")
	d, err := iofs.New(fs, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", d, postgresURI)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("DB is up to date")
		return nil
	} else if err != nil {
		return err
	}
	log.Info("DB updated successfully")
	return nil
}

// configurePoolSettings applies the POSTGRES_* pool settings to the parsed URI.
// See https://pkg.go.dev/github.com/jackc/pgx/v4/pgxpool#ParseConfig
func configurePoolSettings(postgresURI string) (*pgxpool.Config, error) {
	log := logrus.WithField("prefix", "configurePoolSettings")

	poolConfig, err := pgxpool.ParseConfig(postgresURI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres URI: %w", err)
	}

	poolConfig.MaxConns = config.Config.PostgresMaxConns
	poolConfig.MinConns = config.Config.PostgresMinConns

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"PostgresMaxConnLifetime", config.Config.PostgresMaxConnLifetime, &poolConfig.MaxConnLifetime},
		{"PostgresMaxConnLifetimeJitter", config.Config.PostgresMaxConnLifetimeJitter, &poolConfig.MaxConnLifetimeJitter},
		{"PostgresMaxConnIdleTime", config.Config.PostgresMaxConnIdleTime, &poolConfig.MaxConnIdleTime},
		{"PostgresHealthCheckPeriod", config.Config.PostgresHealthCheckPeriod, &poolConfig.HealthCheckPeriod},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			log.Warnf("Invalid %s '%s', using default", d.name, d.value)
			continue
		}
		*d.dst = parsed
	}

	poolConfig.LazyConnect = config.Config.PostgresLazyConnect

	return poolConfig, nil
}

func NewPgStorage(postgresURI string) (*PgStorage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := configurePoolSettings(postgresURI)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	if err := MigrateDb(postgresURI); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return &PgStorage{postgres: pool}, nil
}

func (s *PgStorage) Store(ctx context.Context, events []json.RawMessage) error {
	if len(events) == 0 {
		return nil
	}

	err := s.postgres.BeginFunc(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, e := range events {
			batch.Queue(`INSERT INTO apicapture.events (event) VALUES ($1)`, string(e))
		}
		results := tx.SendBatch(ctx, batch)
		for range events {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return err
			}
		}
		return results.Close()
	})
	if err != nil {
		return fmt.Errorf("failed to store %d events: %w", len(events), err)
	}

	storedEventsMetric.WithLabelValues("postgres").Add(float64(len(events)))
	return nil
}

func (s *PgStorage) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.postgres.QueryRow(ctx, `SELECT count(*) FROM apicapture.events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

func (s *PgStorage) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var result int
	if err := s.postgres.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
		logrus.WithField("prefix", "PgStorage.HealthCheck").Errorf("database health check failed: %v", err)
		return err
	}
	return nil
}
