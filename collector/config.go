package collector

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// TargetServer is the path suffix used by server-side capture.
	TargetServer = "/api/v1/events"
	// TargetClient posts straight to the collector URL.
	TargetClient = ""

	DefaultCollectorURL = "http://localhost:7071"

	// DefaultSendTimeout bounds a single batch POST, so a hung collector
	// cannot hold the flush guard forever.
	DefaultSendTimeout = 30 * time.Second

	defaultName = "default"
)

// Config holds the collector settings. It is copied by New and never changed afterwards.
type Config struct {
	// Name labels the collector's metrics and log entries.
	Name string

	CollectorURL  string
	Target        string
	BatchSize     int
	FlushInterval time.Duration
	MaxQueueSize  int
	SampleRate    float64

	// MaxAttempts bounds delivery attempts per event. Zero retries forever.
	MaxAttempts int

	// Debug logs internal operations. It has no behavioral effect.
	Debug bool

	HTTPClient *http.Client
	Sender     Sender
	Sampler    Sampler
}

// ServerDefaults returns the settings used by server-side capture.
func ServerDefaults() Config {
	return Config{
		Name:          defaultName,
		CollectorURL:  DefaultCollectorURL,
		Target:        TargetServer,
		BatchSize:     100,
		FlushInterval: 60 * time.Second,
		MaxQueueSize:  10000,
		SampleRate:    1.0,
		HTTPClient:    &http.Client{Timeout: DefaultSendTimeout},
	}
}

// ClientDefaults returns the settings used by client-side (outbound request) capture.
func ClientDefaults() Config {
	return Config{
		Name:          defaultName,
		CollectorURL:  DefaultCollectorURL,
		Target:        TargetClient,
		BatchSize:     50,
		FlushInterval: 30 * time.Second,
		MaxQueueSize:  1000,
		SampleRate:    1.0,
		HTTPClient:    &http.Client{Timeout: DefaultSendTimeout},
	}
}

// Validate checks the config and returns a *ConfigError for the first bad field.
func (c Config) Validate() error {
	if c.Sender == nil {
		if err := validateCollectorURL(c.CollectorURL); err != nil {
			return &ConfigError{Field: "CollectorURL", Reason: err.Error()}
		}
	}
	if c.BatchSize <= 0 {
		return &ConfigError{Field: "BatchSize", Reason: fmt.Sprintf("must be positive, got %d", c.BatchSize)}
	}
	if c.FlushInterval <= 0 {
		return &ConfigError{Field: "FlushInterval", Reason: fmt.Sprintf("must be positive, got %s", c.FlushInterval)}
	}
	if c.MaxQueueSize <= 0 {
		return &ConfigError{Field: "MaxQueueSize", Reason: fmt.Sprintf("must be positive, got %d", c.MaxQueueSize)}
	}
	if !(c.SampleRate >= 0 && c.SampleRate <= 1) {
		return &ConfigError{Field: "SampleRate", Reason: fmt.Sprintf("must be within [0, 1], got %v", c.SampleRate)}
	}
	if c.MaxAttempts < 0 {
		return &ConfigError{Field: "MaxAttempts", Reason: fmt.Sprintf("must not be negative, got %d", c.MaxAttempts)}
	}
	return nil
}

// Endpoint returns the URL batches are posted to.
func (c Config) Endpoint() string {
	return strings.TrimSuffix(c.CollectorURL, "/") + c.Target
}

func validateCollectorURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
