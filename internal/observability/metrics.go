package observability

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Metrics is a tiny in-process counter registry for the daemon's background
// loops, built on otel/metric's manual reader with no exporter — a single
// host's background daemon does not need a collector pipeline (explicitly
// out of scope per spec §1), but the pack's own instrumentation idiom
// (intelligencedev-manifold wires go.opentelemetry.io/otel throughout) is
// worth keeping for the handful of counters operators actually want to see
// on /metrics.
type Metrics struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
	meter    metric.Meter

	mu       sync.Mutex
	counters map[string]metric.Int64Counter
}

// NewMetrics constructs the registry and pre-declares the background-loop
// counters named in SPEC_FULL.md's observability section.
func NewMetrics() *Metrics {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("memengine")

	m := &Metrics{
		reader:   reader,
		provider: provider,
		meter:    meter,
		counters: make(map[string]metric.Int64Counter),
	}
	for _, name := range []string{
		"decay_ticks_total",
		"gossip_bridges_created_total",
		"merge_accepted_total",
		"merge_rejected_total",
		"archive_transitions_total",
		"orphan_bridges_purged_total",
		"healthguard_findings_total",
	} {
		c, _ := meter.Int64Counter(name)
		m.counters[name] = c
	}
	return m
}

// Inc increments the named counter by delta. Unknown names are ignored —
// callers name counters from the fixed set above.
func (m *Metrics) Inc(name string, delta int64) {
	m.mu.Lock()
	c, ok := m.counters[name]
	m.mu.Unlock()
	if !ok {
		return
	}
	c.Add(context.Background(), delta)
}

// WriteProm renders the current snapshot in Prometheus text exposition
// format. Hand-rolled rather than pulling in a Prometheus client: no pack
// library ships a zero-dependency text exporter for a manual OTel reader,
// and the format itself is a handful of printf lines.
func (m *Metrics) WriteProm(w io.Writer) error {
	var data metricdata.ResourceMetrics
	if err := m.reader.Collect(context.Background(), &data); err != nil {
		return fmt.Errorf("collect metrics: %w", err)
	}

	type sample struct {
		name  string
		value int64
	}
	var samples []sample
	for _, sm := range data.ScopeMetrics {
		for _, metricData := range sm.Metrics {
			sumData, ok := metricData.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			var total int64
			for _, dp := range sumData.DataPoints {
				total += dp.Value
			}
			samples = append(samples, sample{name: metricData.Name, value: total})
		}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].name < samples[j].name })

	for _, s := range samples {
		if _, err := fmt.Fprintf(w, "memengine_%s %d\n", s.name, s.value); err != nil {
			return err
		}
	}
	return nil
}
