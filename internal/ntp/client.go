package ntp

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/beevik/ntp"
	"github.com/sirupsen/logrus"
)

var errNoServerReachable = errors.New("no NTP server reachable")

// Client keeps a clock offset against a set of NTP servers so event
// timestamps stay comparable across hosts with drifting clocks.
type Client struct {
	servers      []string
	syncInterval time.Duration
	queryTimeout time.Duration
	query        func(server string, opts ntp.QueryOptions) (*ntp.Response, error)

	offset   atomic.Int64 // nanoseconds
	lastSync atomic.Int64 // unix seconds
	started  atomic.Bool
	stopCh   chan struct{}
}

type Options struct {
	Servers      []string
	SyncInterval time.Duration
	QueryTimeout time.Duration
}

func NewClient(opts Options) *Client {
	if len(opts.Servers) == 0 {
		opts.Servers = []string{
			"time.google.com",
			"time.cloudflare.com",
			"pool.ntp.org",
		}
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = 5 * time.Minute
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 5 * time.Second
	}

	return &Client{
		servers:      opts.Servers,
		syncInterval: opts.SyncInterval,
		queryTimeout: opts.QueryTimeout,
		query:        ntp.QueryWithOptions,
		stopCh:       make(chan struct{}),
	}
}

// Start performs one synchronous sync and then resyncs in the background
// until Stop is called or ctx is canceled.
func (c *Client) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		logrus.WithField("prefix", "ntp").Warn("NTP client already started")
		return
	}

	log := logrus.WithField("prefix", "ntp")
	log.WithFields(logrus.Fields{
		"servers":       c.servers,
		"sync_interval": c.syncInterval,
	}).Info("starting NTP client")

	if err := c.Sync(); err != nil {
		log.WithError(err).Warn("initial NTP sync failed, using local time")
	}

	go c.syncLoop(ctx)
}

func (c *Client) Stop() {
	if !c.started.CompareAndSwap(true, false) {
		return
	}
	close(c.stopCh)
	logrus.WithField("prefix", "ntp").Info("NTP client stopped")
}

func (c *Client) syncLoop(ctx context.Context) {
	ticker := time.NewTicker(c.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			if err := c.Sync(); err != nil {
				logrus.WithField("prefix", "ntp").WithError(err).Warn("NTP sync failed, keeping previous offset")
			}
		}
	}
}

// Sync queries the servers in order and stores the offset of the first valid answer.
func (c *Client) Sync() error {
	for _, server := range c.servers {
		response, err := c.query(server, ntp.QueryOptions{Timeout: c.queryTimeout})
		if err == nil {
			err = response.Validate()
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"prefix": "ntp",
				"server": server,
				"error":  err,
			}).Debug("NTP server query failed")
			continue
		}

		c.offset.Store(int64(response.ClockOffset))
		c.lastSync.Store(time.Now().Unix())
		logrus.WithFields(logrus.Fields{
			"prefix": "ntp",
			"server": server,
			"offset": response.ClockOffset,
			"rtt":    response.RTT,
		}).Debug("synchronized with NTP server")
		return nil
	}
	return errNoServerReachable
}

// Offset returns the last measured difference between NTP time and local time.
func (c *Client) Offset() time.Duration {
	return time.Duration(c.offset.Load())
}

// LastSync returns when the offset was last refreshed, or the zero time.
func (c *Client) LastSync() time.Time {
	last := c.lastSync.Load()
	if last == 0 {
		return time.Time{}
	}
	return time.Unix(last, 0)
}

func (c *Client) NowUnixMilli() int64 {
	return time.Now().Add(c.Offset()).UnixMilli()
}
