package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
	"github.com/tonkeeper/apicapture/internal/utils"
)

// drainRetryInterval is how long Drain waits after a busy or failed flush.
const drainRetryInterval = 250 * time.Millisecond

// Stats is a snapshot of the collector's observable state.
type Stats struct {
	QueueLength    int
	Dropped        uint64
	RetryExhausted uint64
	SampledOut     uint64
	Flushing       bool
}

// Collector buffers captured events and ships them to a remote collector in batches.
type Collector struct {
	cfg     Config
	queue   *queue
	sampler Sampler
	sender  Sender
	metrics collectorMetrics
	log     *logrus.Entry

	flushing       atomic.Bool
	stopped        atomic.Bool
	sampledOut     atomic.Uint64
	retryExhausted atomic.Uint64

	stopCh chan struct{}
	done   chan struct{}
}

// New validates cfg, builds the collector and starts its flush scheduler.
func New(cfg Config) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.CollectorURL = strings.TrimSuffix(cfg.CollectorURL, "/")
	if cfg.Name == "" {
		cfg.Name = defaultName
	}

	sampler := cfg.Sampler
	if sampler == nil {
		sampler = NewRateSampler(cfg.SampleRate)
	}
	sender := cfg.Sender
	if sender == nil {
		sender = NewHTTPSender(cfg.HTTPClient, cfg.Endpoint())
	}

	c := &Collector{
		cfg:     cfg,
		queue:   newQueue(cfg.MaxQueueSize),
		sampler: sampler,
		sender:  sender,
		metrics: newCollectorMetrics(cfg.Name),
		log: logrus.WithFields(logrus.Fields{
			"prefix":    "Collector",
			"collector": cfg.Name,
		}),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	c.metrics.queueLength.Set(0)

	c.log.WithFields(logrus.Fields{
		"endpoint":       cfg.Endpoint(),
		"batch_size":     cfg.BatchSize,
		"flush_interval": cfg.FlushInterval,
		"max_queue_size": cfg.MaxQueueSize,
		"sample_rate":    cfg.SampleRate,
	}).Debug("starting collector")

	go c.run()
	return c, nil
}

// Capture offers an event to the collector. It never blocks: events rejected
// by the sampler or arriving while the queue is full are silently dropped.
func (c *Collector) Capture(event Event) {
	if !c.sampler.ShouldSample() {
		c.sampledOut.Add(1)
		c.metrics.sampledOut.Inc()
		c.debugf("event did not pass sampling")
		return
	}

	if !c.queue.TryAdd(event) {
		c.metrics.droppedFull.Inc()
		c.debugf("queue is full, dropping event")
		return
	}

	c.metrics.enqueued.Inc()
	length := c.queue.Len()
	c.metrics.queueLength.Set(float64(length))
	c.debugf("event queued, queue size: %d", length)
}

// ForceFlush starts a flush without waiting for it.
func (c *Collector) ForceFlush() {
	c.triggerFlush()
}

// Stop cancels the flush scheduler and starts one final flush. It does not
// wait for that flush, so events may still be in flight when Stop returns.
// Use Drain to wait for delivery.
func (c *Collector) Stop() {
	if !c.stopped.CompareAndSwap(false, true) {
		return
	}
	close(c.stopCh)
	<-c.done

	c.triggerFlush()
	c.log.Info("collector stopped")
}

// Drain flushes until the queue is empty and no flush is in flight, or ctx
// is done. Busy and failed flushes are retried at a constant interval.
func (c *Collector) Drain(ctx context.Context) error {
	backoff := retry.NewConstant(drainRetryInterval)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			if c.queue.Len() == 0 {
				if c.flushing.Load() {
					return retry.RetryableError(errFlushInProgress)
				}
				return nil
			}
			if _, err := c.flush(ctx); err != nil && !errors.Is(err, ErrEncode) {
				return retry.RetryableError(err)
			}
		}
	})
}

// Len returns the number of queued events.
func (c *Collector) Len() int {
	return c.queue.Len()
}

// Dropped returns the number of events dropped because the queue was full.
func (c *Collector) Dropped() uint64 {
	return c.queue.Dropped()
}

// Stats returns a snapshot of counters and queue state.
func (c *Collector) Stats() Stats {
	return Stats{
		QueueLength:    c.queue.Len(),
		Dropped:        c.queue.Dropped(),
		RetryExhausted: c.retryExhausted.Load(),
		SampledOut:     c.sampledOut.Load(),
		Flushing:       c.flushing.Load(),
	}
}

func (c *Collector) run() {
	defer close(c.done)

	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if c.stopped.Load() {
				return
			}
			if c.queue.Len() > 0 {
				c.triggerFlush()
			}
		}
	}
}

func (c *Collector) triggerFlush() {
	if c.queue.Len() == 0 {
		return
	}
	if c.flushing.Load() {
		c.metrics.flushesSkipped.Inc()
		c.debugf("skipping flush, already flushing")
		return
	}
	utils.RunWithRecovery(func() {
		_, _ = c.flush(context.Background())
	})
}

// flush performs one delivery attempt. It reports whether a batch was handed
// to the sender, and the send error if delivery failed.
func (c *Collector) flush(ctx context.Context) (bool, error) {
	if c.queue.Len() == 0 {
		return false, nil
	}
	if !c.flushing.CompareAndSwap(false, true) {
		c.metrics.flushesSkipped.Inc()
		return false, errFlushInProgress
	}
	defer c.flushing.Store(false)

	batch := c.queue.PopBatch(c.cfg.BatchSize)
	if len(batch) == 0 {
		return false, nil
	}
	c.metrics.queueLength.Set(float64(c.queue.Len()))

	events := make([]Event, len(batch))
	for i, e := range batch {
		events[i] = e.event
	}

	c.debugf("flushing batch of %d events", len(events))
	err := c.send(ctx, events)
	if err == nil {
		c.metrics.batchesSent.Inc()
		c.debugf("successfully sent batch of %d events", len(events))
		return true, nil
	}

	if errors.Is(err, ErrEncode) {
		c.metrics.droppedEncode.Add(float64(len(batch)))
		c.log.WithError(err).WithField("batch_size", len(batch)).Error("dropping batch that cannot be serialized")
		return true, err
	}

	c.metrics.batchFailures.Inc()
	c.log.WithError(err).WithField("batch_size", len(batch)).Warn("failed to send batch, requeueing")
	c.requeue(batch)
	return true, err
}

func (c *Collector) send(ctx context.Context, events []Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panicked: %v", r)
		}
	}()
	return c.sender.SendBatch(ctx, events)
}

func (c *Collector) requeue(batch []entry) {
	keep := batch[:0]
	exhausted := 0
	for _, e := range batch {
		e.attempts++
		if c.cfg.MaxAttempts > 0 && e.attempts >= c.cfg.MaxAttempts {
			exhausted++
			continue
		}
		keep = append(keep, e)
	}

	if exhausted > 0 {
		c.retryExhausted.Add(uint64(exhausted))
		c.metrics.droppedRetry.Add(float64(exhausted))
		c.log.WithField("events", exhausted).Warn("dropping events after max delivery attempts")
	}

	if evicted := c.queue.RequeueFront(keep); evicted > 0 {
		c.metrics.droppedFull.Add(float64(evicted))
		c.log.WithField("events", evicted).Warn("queue overflowed while requeueing, dropped newest events")
	}
	c.metrics.queueLength.Set(float64(c.queue.Len()))
}

func (c *Collector) debugf(format string, args ...interface{}) {
	if c.cfg.Debug {
		c.log.Infof(format, args...)
	}
}
