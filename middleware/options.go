// Package middleware captures inbound HTTP requests as collector events.
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/tonkeeper/apicapture/collector"
	"github.com/tonkeeper/apicapture/internal/ntp"
	"github.com/tonkeeper/apicapture/internal/utils"
	"golang.org/x/exp/slices"
)

// DefaultMaxBodySize bounds how much of a request body is copied into an event.
const DefaultMaxBodySize = 64 << 10

// IPExtractor resolves the client address of a request.
type IPExtractor interface {
	Extract(r *http.Request) string
}

// Clock stamps events with the current time in Unix milliseconds.
type Clock interface {
	NowUnixMilli() int64
}

type Options struct {
	// URLPatterns selects requests whose path contains any of the patterns.
	// Empty means every request is captured.
	URLPatterns []string
	// MaxBodySize bounds the captured request body. Only bytes the handler
	// actually reads are captured.
	MaxBodySize int64
	IPExtractor IPExtractor
	Clock       Clock
}

type remoteAddrExtractor struct{}

func (remoteAddrExtractor) Extract(r *http.Request) string {
	return utils.RemoteAddr(r)
}

func (o Options) withDefaults() Options {
	if len(o.URLPatterns) == 0 {
		o.URLPatterns = []string{""}
	}
	if o.MaxBodySize <= 0 {
		o.MaxBodySize = DefaultMaxBodySize
	}
	if o.IPExtractor == nil {
		o.IPExtractor = remoteAddrExtractor{}
	}
	if o.Clock == nil {
		o.Clock = ntp.NewLocalTimeProvider()
	}
	return o
}

func (o Options) matches(path string) bool {
	return slices.IndexFunc(o.URLPatterns, func(pattern string) bool {
		return strings.Contains(path, pattern)
	}) >= 0
}

// teeRequestBody mirrors the request body as the handler reads it, so
// streaming uploads reach the handler without delay. It returns nil when the
// request has no body.
func (o Options) teeRequestBody(r *http.Request) *utils.TeeBody {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	tee := utils.NewTeeBody(r.Body, o.MaxBodySize, nil)
	r.Body = tee
	return tee
}

// requestEvent builds the request half of an event. finishEvent fills in
// the body, status and duration once the handler returns.
func (o Options) requestEvent(r *http.Request) collector.Event {
	return collector.Event{
		"event_id":    utils.NewEventID(),
		"timestamp":   o.Clock.NowUnixMilli(),
		"path":        r.URL.Path,
		"method":      r.Method,
		"headers":     utils.FlattenHeaders(r.Header),
		"queryParams": utils.FlattenQuery(r.URL.Query()),
		"remote_ip":   o.IPExtractor.Extract(r),
		"origin":      utils.ExtractOrigin(r.Header.Get("Origin")),
	}
}

// finishEvent records the request body as far as the handler read it.
func finishEvent(event collector.Event, body *utils.TeeBody, status int, start time.Time) {
	event["status"] = status
	event["duration_ms"] = float64(time.Since(start).Microseconds()) / 1000
	if body != nil {
		event["requestBody"] = utils.DecodeBody(body.Bytes())
	} else {
		event["requestBody"] = nil
	}
}
