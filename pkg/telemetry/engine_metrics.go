package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EngineMetrics wraps the counters and histograms emitted by the storage
// engine's hot paths: buffer pool hit/miss/eviction rates and per-request
// disk I/O latency. It is built once from a Telemetry's Meter and handed to
// the buffer pool and disk scheduler at construction time.
type EngineMetrics struct {
	hits      metric.Int64Counter
	misses    metric.Int64Counter
	evictions metric.Int64Counter
	ioLatency metric.Float64Histogram
}

// NewEngineMetrics registers the engine's instruments against tel.Meter.
// Safe to call with a no-op Meter (Telemetry returned with Enabled: false).
func NewEngineMetrics(tel *Telemetry) (*EngineMetrics, error) {
	hits, err := tel.Meter.Int64Counter(
		"gojodb.buffer_pool.hits",
		metric.WithDescription("pages found resident in the buffer pool"),
	)
	if err != nil {
		return nil, fmt.Errorf("registering hits counter: %w", err)
	}
	misses, err := tel.Meter.Int64Counter(
		"gojodb.buffer_pool.misses",
		metric.WithDescription("pages not resident, fetched from disk"),
	)
	if err != nil {
		return nil, fmt.Errorf("registering misses counter: %w", err)
	}
	evictions, err := tel.Meter.Int64Counter(
		"gojodb.buffer_pool.evictions",
		metric.WithDescription("frames reclaimed from a resident page via the replacer"),
	)
	if err != nil {
		return nil, fmt.Errorf("registering evictions counter: %w", err)
	}
	ioLatency, err := tel.Meter.Float64Histogram(
		"gojodb.disk_scheduler.io_latency_seconds",
		metric.WithDescription("time spent servicing one disk scheduler request"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("registering io latency histogram: %w", err)
	}
	return &EngineMetrics{hits: hits, misses: misses, evictions: evictions, ioLatency: ioLatency}, nil
}

// RecordHit implements the buffer package's Metrics interface.
func (m *EngineMetrics) RecordHit() { m.hits.Add(context.Background(), 1) }

// RecordMiss implements the buffer package's Metrics interface.
func (m *EngineMetrics) RecordMiss() { m.misses.Add(context.Background(), 1) }

// RecordEviction implements the buffer package's Metrics interface.
func (m *EngineMetrics) RecordEviction() { m.evictions.Add(context.Background(), 1) }

// ObserveIOLatency records the wall-clock duration of one serviced disk
// scheduler request, tagged by direction ("read" or "write").
func (m *EngineMetrics) ObserveIOLatency(d time.Duration, direction string) {
	m.ioLatency.Record(context.Background(), d.Seconds(),
		metric.WithAttributes(attribute.String("direction", direction)))
}
