package middleware

import (
	"fmt"
	"net/http"
	"sync"
)

type ipExtractor interface {
	Extract(r *http.Request) string
}

// ConnectionsLimiter caps the number of simultaneous requests per client IP.
type ConnectionsLimiter struct {
	mu          sync.Mutex
	connections map[string]int
	max         int
	realIP      ipExtractor
}

func NewConnectionLimiter(limit int, extractor ipExtractor) *ConnectionsLimiter {
	return &ConnectionsLimiter{
		connections: map[string]int{},
		max:         limit,
		realIP:      extractor,
	}
}

// LeaseConnection takes one slot for the request's IP and returns a release
// function to call once the request is finished. It fails when the IP already
// holds max slots.
func (l *ConnectionsLimiter) LeaseConnection(request *http.Request) (release func(), err error) {
	key := fmt.Sprintf("ip-%v", l.realIP.Extract(request))
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.connections[key] >= l.max {
		return nil, fmt.Errorf("you have reached the limit of concurrent requests: %v max", l.max)
	}
	l.connections[key] += 1

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.connections[key] -= 1
		if l.connections[key] == 0 {
			delete(l.connections, key)
		}
	}, nil
}
