package ntp

import (
	"errors"
	"testing"
	"time"

	"github.com/beevik/ntp"
)

func TestClient_SyncUsesFirstHealthyServer(t *testing.T) {
	c := NewClient(Options{Servers: []string{"down.example", "up.example"}})

	var queried []string
	c.query = func(server string, _ ntp.QueryOptions) (*ntp.Response, error) {
		queried = append(queried, server)
		if server == "down.example" {
			return nil, errors.New("timeout")
		}
		return &ntp.Response{
			ClockOffset: 2 * time.Second,
			Stratum:     2,
			RTT:         10 * time.Millisecond,
			Time:        time.Now(),
		}, nil
	}

	if err := c.Sync(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(queried) != 2 || queried[1] != "up.example" {
		t.Errorf("expected both servers to be queried in order, got %v", queried)
	}
	if c.Offset() != 2*time.Second {
		t.Errorf("expected offset 2s, got %v", c.Offset())
	}
	if c.LastSync().IsZero() {
		t.Error("expected last sync time to be recorded")
	}

	local := time.Now().UnixMilli()
	if diff := c.NowUnixMilli() - local; diff < 1900 || diff > 2100 {
		t.Errorf("expected clock to be ~2000ms ahead, got %dms", diff)
	}
}

func TestClient_SyncAllServersDown(t *testing.T) {
	c := NewClient(Options{Servers: []string{"a.example", "b.example"}})
	c.query = func(string, ntp.QueryOptions) (*ntp.Response, error) {
		return nil, errors.New("unreachable")
	}

	if err := c.Sync(); !errors.Is(err, errNoServerReachable) {
		t.Errorf("expected errNoServerReachable, got %v", err)
	}
	if c.Offset() != 0 {
		t.Errorf("expected zero offset, got %v", c.Offset())
	}
	if !c.LastSync().IsZero() {
		t.Error("expected no last sync time")
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Options{})
	if len(c.servers) != 3 {
		t.Errorf("expected 3 default servers, got %d", len(c.servers))
	}
	if c.syncInterval != 5*time.Minute {
		t.Errorf("expected 5m sync interval, got %v", c.syncInterval)
	}
	if c.queryTimeout != 5*time.Second {
		t.Errorf("expected 5s query timeout, got %v", c.queryTimeout)
	}
}
