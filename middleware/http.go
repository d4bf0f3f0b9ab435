package middleware

import (
	"net/http"
	"time"

	"github.com/tonkeeper/apicapture/collector"
)

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// HTTP returns net/http middleware that captures every matching request
// after the wrapped handler has served it.
func HTTP(c collector.Capturer, opts Options) func(http.Handler) http.Handler {
	o := opts.withDefaults()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !o.matches(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			body := o.teeRequestBody(r)
			event := o.requestEvent(r)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			finishEvent(event, body, rec.status, start)
			c.Capture(event)
		})
	}
}
