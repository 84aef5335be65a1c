package metrics

import (
	"fmt"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/hashicorp/go-hclog"
)

// StatsdConfig configures the DogStatsD-backed sink.
type StatsdConfig struct {
	// Addr is the statsd endpoint, e.g. "127.0.0.1:8125". Required.
	Addr string

	// Namespace is prepended to every metric name. Defaults to "courier.".
	Namespace string

	// Tags are attached to every metric.
	Tags []string

	// SampleRate for all metrics. Defaults to 1.
	SampleRate float64

	Logger hclog.Logger
}

// Statsd emits metrics to a DogStatsD agent.
type Statsd struct {
	client *statsd.Client
	rate   float64
	log    hclog.Logger
}

// NewStatsd creates a statsd-backed Sink.
func NewStatsd(cfg StatsdConfig) (*Statsd, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("statsd address is required")
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "courier."
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	client, err := statsd.New(cfg.Addr,
		statsd.WithNamespace(cfg.Namespace),
		statsd.WithTags(cfg.Tags),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create statsd client: %w", err)
	}

	return &Statsd{
		client: client,
		rate:   cfg.SampleRate,
		log:    cfg.Logger.Named("statsd"),
	}, nil
}

func (s *Statsd) Count(name string, value int64, tags []string) {
	if err := s.client.Count(name, value, tags, s.rate); err != nil {
		s.log.Trace("statsd count failed", "metric", name, "error", err)
	}
}

func (s *Statsd) Gauge(name string, value float64, tags []string) {
	if err := s.client.Gauge(name, value, tags, s.rate); err != nil {
		s.log.Trace("statsd gauge failed", "metric", name, "error", err)
	}
}

func (s *Statsd) Timing(name string, d time.Duration, tags []string) {
	if err := s.client.Timing(name, d, tags, s.rate); err != nil {
		s.log.Trace("statsd timing failed", "metric", name, "error", err)
	}
}

// Close flushes buffered metrics and releases the underlying client.
func (s *Statsd) Close() error {
	return s.client.Close()
}
