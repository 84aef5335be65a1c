// Package metrics defines the sink interface the client emits operational
// telemetry through, plus the bundled statsd and no-op implementations.
package metrics

import "time"

// Sink receives client telemetry. Implementations must be safe for
// concurrent use and must never block the caller for long; emitting a
// metric can never fail a call.
type Sink interface {
	Count(name string, value int64, tags []string)
	Gauge(name string, value float64, tags []string)
	Timing(name string, d time.Duration, tags []string)
}

// Nop returns a Sink that discards everything.
func Nop() Sink {
	return nopSink{}
}

type nopSink struct{}

func (nopSink) Count(string, int64, []string)          {}
func (nopSink) Gauge(string, float64, []string)        {}
func (nopSink) Timing(string, time.Duration, []string) {}
