// Package statsd ships metric samples to a statsd daemon over UDP, batching
// multiple metric lines into fixed-size datagrams.
package statsd

import (
	"context"
	"sync"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/sirupsen/logrus"
	"gopkg.in/guregu/null.v3"

	"github.com/sift-lang/sift/lib/types"
	"github.com/sift-lang/sift/stats"
)

// Config holds the sink's connection settings. All fields are nullable so
// the config layers (defaults, JSON file, environment) can be merged.
type Config struct {
	Addr         null.String        `json:"addr,omitempty" envconfig:"SIFT_STATSD_ADDR"`
	Namespace    null.String        `json:"namespace,omitempty" envconfig:"SIFT_STATSD_NAMESPACE"`
	BufferSize   null.Int           `json:"bufferSize,omitempty" envconfig:"SIFT_STATSD_BUFFER_SIZE"`
	PushInterval types.NullDuration `json:"pushInterval,omitempty" envconfig:"SIFT_STATSD_PUSH_INTERVAL"`
}

// NewConfig returns the defaults: a local daemon, the "sift." namespace, 20
// metric lines per datagram, pushed once per second.
func NewConfig() Config {
	return Config{
		Addr:         null.NewString("localhost:8125", false),
		Namespace:    null.NewString("sift.", false),
		BufferSize:   null.NewInt(20, false),
		PushInterval: types.NewNullDuration(time.Second, false),
	}
}

// Apply overlays the valid fields of cfg on top of c and returns the result.
func (c Config) Apply(cfg Config) Config {
	if cfg.Addr.Valid {
		c.Addr = cfg.Addr
	}
	if cfg.Namespace.Valid {
		c.Namespace = cfg.Namespace
	}
	if cfg.BufferSize.Valid {
		c.BufferSize = cfg.BufferSize
	}
	if cfg.PushInterval.Valid {
		c.PushInterval = cfg.PushInterval
	}
	return c
}

// Collector buffers samples and pushes them to statsd on a fixed interval.
// It implements stats.Collector.
type Collector struct {
	Config Config
	Logger logrus.FieldLogger

	client *statsd.Client
	mu     sync.Mutex
	buffer []stats.Sample
}

// New returns an uninitialised Collector; call Init before Run or Collect.
func New(logger logrus.FieldLogger, conf Config) *Collector {
	return &Collector{
		Config: conf,
		Logger: logger.WithField("component", "statsd"),
	}
}

// Init dials the statsd daemon. The DataDog client buffers metric lines and
// flushes a datagram whenever the configured number of lines is reached, so
// each UDP packet carries a bounded batch.
func (c *Collector) Init() (err error) {
	c.client, err = statsd.NewBuffered(c.Config.Addr.String, int(c.Config.BufferSize.Int64))
	if err != nil {
		return err
	}
	c.client.Namespace = c.Config.Namespace.String
	return nil
}

// Run pushes buffered samples on every tick of the configured interval and
// drains one final time when ctx is canceled.
func (c *Collector) Run(ctx context.Context) {
	c.Logger.WithField("interval", c.Config.PushInterval.String()).Debug("collector running")
	ticker := time.NewTicker(c.Config.PushInterval.TimeDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.pushSamples()
		case <-ctx.Done():
			c.pushSamples()
			if err := c.client.Close(); err != nil {
				c.Logger.WithError(err).Warn("error closing statsd client")
			}
			return
		}
	}
}

// Collect buffers samples for the next push. Safe for concurrent use.
func (c *Collector) Collect(samples []stats.Sample) {
	c.mu.Lock()
	c.buffer = append(c.buffer, samples...)
	c.mu.Unlock()
}

func (c *Collector) pushSamples() {
	c.mu.Lock()
	buffer := c.buffer
	c.buffer = nil
	c.mu.Unlock()

	if len(buffer) == 0 {
		return
	}

	var errorCount int
	for _, sample := range buffer {
		var err error
		switch sample.Metric.Type {
		case stats.Counter:
			err = c.client.Count(sample.Metric.Name, int64(sample.Value), nil, 1)
		case stats.Gauge:
			err = c.client.Gauge(sample.Metric.Name, sample.Value, nil, 1)
		case stats.Timer:
			err = c.client.TimeInMilliseconds(sample.Metric.Name, sample.Value, nil, 1)
		}
		if err != nil {
			errorCount++
		}
	}
	if errorCount > 0 {
		c.Logger.WithField("count", errorCount).Warn("couldn't send some metrics")
	}
	if err := c.client.Flush(); err != nil {
		c.Logger.WithError(err).Warn("couldn't flush metrics")
	}
}
