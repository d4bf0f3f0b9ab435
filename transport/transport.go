// Package transport captures outbound HTTP calls made through an http.Client.
package transport

import (
	"net/http"
	"strings"
	"time"

	"github.com/tonkeeper/apicapture/collector"
	"github.com/tonkeeper/apicapture/internal/ntp"
	"github.com/tonkeeper/apicapture/internal/utils"
	"golang.org/x/exp/slices"
)

// DefaultMaxBodySize bounds how much of each body is copied into an event.
const DefaultMaxBodySize = 64 << 10

// Clock stamps events with the current time in Unix milliseconds.
type Clock interface {
	NowUnixMilli() int64
}

// RoundTripper records every completed request and response as an event.
// Failed round trips are not captured. Bodies are mirrored while they stream,
// so callers and Base see the full streams. A response body that is never
// read to EOF or closed is never captured.
//
// When the collector itself posts through a client using this RoundTripper,
// URLPatterns must exclude the collector URL.
type RoundTripper struct {
	Base     http.RoundTripper
	Capturer collector.Capturer
	// URLPatterns selects requests whose URL contains any of the patterns.
	// Empty means every request is captured.
	URLPatterns []string
	MaxBodySize int64
	Clock       Clock
}

// New wraps base, which may be nil for http.DefaultTransport.
func New(base http.RoundTripper, c collector.Capturer, patterns ...string) *RoundTripper {
	return &RoundTripper{
		Base:        base,
		Capturer:    c,
		URLPatterns: patterns,
	}
}

func (t *RoundTripper) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *RoundTripper) maxBodySize() int64 {
	if t.MaxBodySize > 0 {
		return t.MaxBodySize
	}
	return DefaultMaxBodySize
}

func (t *RoundTripper) clock() Clock {
	if t.Clock != nil {
		return t.Clock
	}
	return ntp.NewLocalTimeProvider()
}

func (t *RoundTripper) matches(rawURL string) bool {
	if len(t.URLPatterns) == 0 {
		return true
	}
	return slices.IndexFunc(t.URLPatterns, func(pattern string) bool {
		return strings.Contains(rawURL, pattern)
	}) >= 0
}

// RoundTrip returns the response as soon as its headers arrive. The event is
// captured once the caller reads the response body to EOF or closes it, and
// duration_ms covers the time until the headers arrived.
func (t *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Capturer == nil || !t.matches(req.URL.String()) {
		return t.base().RoundTrip(req)
	}

	limit := t.maxBodySize()
	start := time.Now()

	var requestBody *utils.TeeBody
	if req.Body != nil && req.Body != http.NoBody {
		requestBody = utils.NewTeeBody(req.Body, limit, nil)
		req = req.Clone(req.Context())
		req.Body = requestBody
	}

	event := collector.Event{
		"event_id":  utils.NewEventID(),
		"timestamp": t.clock().NowUnixMilli(),
		"method":    req.Method,
		"url":       req.URL.String(),
		"headers":   utils.FlattenHeaders(req.Header),
	}

	resp, err := t.base().RoundTrip(req)
	if err != nil {
		return nil, err
	}

	event["status"] = resp.StatusCode
	event["duration_ms"] = float64(time.Since(start).Microseconds()) / 1000

	body := resp.Body
	if body == nil {
		body = http.NoBody
	}
	resp.Body = utils.NewTeeBody(body, limit, func(responseBody []byte) {
		if requestBody != nil {
			event["requestBody"] = utils.DecodeBody(requestBody.Bytes())
		} else {
			event["requestBody"] = nil
		}
		event["responseBody"] = utils.DecodeBody(responseBody)
		t.Capturer.Capture(event)
	})

	return resp, nil
}
