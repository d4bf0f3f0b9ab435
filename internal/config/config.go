package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/sirupsen/logrus"
	"github.com/tonkeeper/apicapture/collector"
)

var Config = struct {
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	Port         int    `env:"PORT" envDefault:"7071"`
	MetricsPort  int    `env:"METRICS_PORT" envDefault:"9103"`
	PprofEnabled bool   `env:"PPROF_ENABLED" envDefault:"false"`
	CorsEnable   bool   `env:"CORS_ENABLE"`

	// Demo app outbound target
	UpstreamURL string `env:"UPSTREAM_URL" envDefault:"https://httpbin.org/get"`

	// Capture settings. Zero numeric values keep the preset selected by COLLECTOR_TARGET.
	CaptureEnabled     bool     `env:"CAPTURE_ENABLED" envDefault:"true"`
	CaptureDebug       bool     `env:"CAPTURE_DEBUG" envDefault:"false"`
	CollectorName      string   `env:"COLLECTOR_NAME" envDefault:"default"`
	CollectorURL       string   `env:"COLLECTOR_URL"`
	CollectorTarget    string   `env:"COLLECTOR_TARGET" envDefault:"server"` // server or client
	BatchSize          int      `env:"BATCH_SIZE"`
	FlushIntervalMs    int      `env:"FLUSH_INTERVAL_MS"`
	MaxQueueSize       int      `env:"MAX_QUEUE_SIZE"`
	SampleRate         float64  `env:"SAMPLE_RATE" envDefault:"1"`
	MaxAttempts        int      `env:"MAX_ATTEMPTS" envDefault:"0"`
	CaptureURLPatterns []string `env:"CAPTURE_URL_PATTERNS" envDefault:"/api/"`
	MaxBodySize        int64    `env:"MAX_BODY_SIZE" envDefault:"1048576"` // 1 MB

	// NTP settings for event timestamps
	NTPEnabled      bool     `env:"NTP_ENABLED" envDefault:"false"`
	NTPServers      []string `env:"NTP_SERVERS" envDefault:"time.google.com,time.cloudflare.com,pool.ntp.org"`
	NTPSyncInterval int      `env:"NTP_SYNC_INTERVAL" envDefault:"300"`
	NTPQueryTimeout int      `env:"NTP_QUERY_TIMEOUT" envDefault:"5"`

	// Reference collector settings
	Storage               string   `env:"STORAGE" envDefault:"memory"` // memory, valkey or postgres
	SinkMaxEvents         int      `env:"SINK_MAX_EVENTS" envDefault:"100000"`
	IngestBodyLimit       string   `env:"INGEST_BODY_LIMIT" envDefault:"10M"`
	RPSLimit              int      `env:"RPS_LIMIT" envDefault:"10"`
	RateLimitsByPassToken []string `env:"RATE_LIMITS_BY_PASS_TOKEN"`
	ConnectionsLimit      int      `env:"CONNECTIONS_LIMIT" envDefault:"50"`
	TrustedProxyRanges    []string `env:"TRUSTED_PROXY_RANGES" envDefault:"0.0.0.0/0"`

	// PostgreSQL related settings
	PostgresURI                   string `env:"POSTGRES_URI"`
	PostgresMaxConns              int32  `env:"POSTGRES_MAX_CONNS" envDefault:"25"`
	PostgresMinConns              int32  `env:"POSTGRES_MIN_CONNS" envDefault:"0"`
	PostgresMaxConnLifetime       string `env:"POSTGRES_MAX_CONN_LIFETIME" envDefault:"1h"`
	PostgresMaxConnLifetimeJitter string `env:"POSTGRES_MAX_CONN_LIFETIME_JITTER" envDefault:"10m"`
	PostgresMaxConnIdleTime       string `env:"POSTGRES_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	PostgresHealthCheckPeriod     string `env:"POSTGRES_HEALTH_CHECK_PERIOD" envDefault:"1m"`
	PostgresLazyConnect           bool   `env:"POSTGRES_LAZY_CONNECT" envDefault:"false"`

	// Valkey related settings
	ValkeyURI string `env:"VALKEY_URI"`
	ValkeyKey string `env:"VALKEY_KEY" envDefault:"apicapture:events"`
}{}

func LoadConfig() {
	if err := env.Parse(&Config); err != nil {
		log.Fatalf("config parsing failed: %v\n", err)
	}

	level, err := logrus.ParseLevel(strings.ToLower(Config.LogLevel))
	if err != nil {
		log.Printf("Invalid LOG_LEVEL '%s', using default 'info'. Valid levels: panic, fatal, error, warn, info, debug, trace", Config.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// CaptureConfig builds the collector settings from the preset named by
// COLLECTOR_TARGET with the explicitly set values applied on top.
func CaptureConfig() (collector.Config, error) {
	var cfg collector.Config
	switch strings.ToLower(Config.CollectorTarget) {
	case "server", "":
		cfg = collector.ServerDefaults()
	case "client":
		cfg = collector.ClientDefaults()
	default:
		return collector.Config{}, fmt.Errorf("unsupported COLLECTOR_TARGET: %s", Config.CollectorTarget)
	}

	if Config.CollectorName != "" {
		cfg.Name = Config.CollectorName
	}
	if Config.CollectorURL != "" {
		cfg.CollectorURL = Config.CollectorURL
	}
	if Config.BatchSize > 0 {
		cfg.BatchSize = Config.BatchSize
	}
	if Config.FlushIntervalMs > 0 {
		cfg.FlushInterval = time.Duration(Config.FlushIntervalMs) * time.Millisecond
	}
	if Config.MaxQueueSize > 0 {
		cfg.MaxQueueSize = Config.MaxQueueSize
	}
	cfg.SampleRate = Config.SampleRate
	cfg.MaxAttempts = Config.MaxAttempts
	cfg.Debug = Config.CaptureDebug

	if !Config.CaptureEnabled {
		cfg.Sender = collector.NoopSender{}
	}

	if err := cfg.Validate(); err != nil {
		return collector.Config{}, err
	}
	return cfg, nil
}
