package collector

import (
	"errors"
	"fmt"
)

var (
	// ErrEncode is returned by senders when a batch cannot be serialized.
	// Such a batch is dropped instead of requeued, since retrying cannot fix it.
	ErrEncode = errors.New("collector: batch is not serializable")

	errFlushInProgress = errors.New("collector: flush already in progress")
)

// ConfigError reports an invalid Config field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid collector config: %s: %s", e.Field, e.Reason)
}

// SendError is a failed batch delivery: a transport fault or a non-2xx response.
type SendError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to send batch: %v", e.Err)
	}
	return fmt.Sprintf("HTTP Error: %d - %s", e.StatusCode, e.Body)
}

func (e *SendError) Unwrap() error {
	return e.Err
}
