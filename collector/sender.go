package collector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
)

// maxErrorBody caps how much of a failed response is kept for diagnostics.
const maxErrorBody = 4096

// Sender delivers a batch of events to a backend.
type Sender interface {
	SendBatch(context.Context, []Event) error
}

// HTTPSender posts batches as {"events": [...]} to a collector endpoint.
type HTTPSender struct {
	client   *http.Client
	endpoint string
}

// NewHTTPSender constructs a sender posting to endpoint. A nil client means a
// client with DefaultSendTimeout.
func NewHTTPSender(client *http.Client, endpoint string) *HTTPSender {
	if client == nil {
		client = &http.Client{Timeout: DefaultSendTimeout}
	}
	return &HTTPSender{
		client:   client,
		endpoint: endpoint,
	}
}

type batchPayload struct {
	Events []Event `json:"events"`
}

func (s *HTTPSender) SendBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	body, err := sonic.Marshal(batchPayload{Events: events})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return &SendError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &SendError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &SendError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// NoopSender accepts every batch and does nothing, for when capture is disabled.
type NoopSender struct{}

// SendBatch does nothing for NoopSender
func (NoopSender) SendBatch(context.Context, []Event) error {
	return nil
}
