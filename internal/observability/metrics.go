package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/morozRed/maplink/internal/linker"
)

const (
	meterName = "maplink"

	attrOutcome = "outcome"
	attrPhase   = "phase"
)

// Metrics counts link outcomes on a private Prometheus registry, so a batch
// run can drop them into a node_exporter textfile directory.
type Metrics struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	symbolMaps    metric.Int64Counter
	sourceMaps    metric.Int64Counter
	sources       metric.Int64Counter
	unapplied     metric.Int64Counter
	phaseDuration metric.Float64Histogram
}

// NewMetrics always exports to the private registry; extra readers (an OTLP
// periodic reader, say) receive the same instruments.
func NewMetrics(extra ...sdkmetric.Reader) (*Metrics, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	opts := []sdkmetric.Option{sdkmetric.WithReader(exporter)}
	for _, reader := range extra {
		opts = append(opts, sdkmetric.WithReader(reader))
	}
	provider := sdkmetric.NewMeterProvider(opts...)
	meter := provider.Meter(meterName)

	m := &Metrics{registry: registry, provider: provider}
	if m.symbolMaps, err = meter.Int64Counter("maplink.symbol_maps",
		metric.WithDescription("Symbol maps handled, by outcome.")); err != nil {
		return nil, err
	}
	if m.sourceMaps, err = meter.Int64Counter("maplink.source_maps",
		metric.WithDescription("Raw source maps handled, by outcome.")); err != nil {
		return nil, err
	}
	if m.sources, err = meter.Int64Counter("maplink.embedded_sources",
		metric.WithDescription("Original sources considered for embedding, by outcome.")); err != nil {
		return nil, err
	}
	if m.unapplied, err = meter.Int64Counter("maplink.unapplied_edits",
		metric.WithDescription("Insert and remove edits ignored by source map merging.")); err != nil {
		return nil, err
	}
	if m.phaseDuration, err = meter.Float64Histogram("maplink.link.phase.duration",
		metric.WithDescription("Wall time of each link phase."),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordLink adds one run's counts.
func (m *Metrics) RecordLink(ctx context.Context, r linker.Result) {
	add := func(counter metric.Int64Counter, outcome string, n int) {
		if n > 0 {
			counter.Add(ctx, int64(n), metric.WithAttributes(attribute.String(attrOutcome, outcome)))
		}
	}
	add(m.symbolMaps, "written", r.SymbolMapsWritten)
	add(m.symbolMaps, "skipped", r.SymbolMapsSkipped)
	add(m.sourceMaps, "merged", r.SourceMapsMerged)
	add(m.sourceMaps, "passthrough", r.SourceMapsPassedThrough)
	add(m.sourceMaps, "dropped", r.SourceMapsDropped)
	add(m.sourceMaps, "deferred", r.SourceMapsDeferred)
	add(m.sources, "embedded", r.SourcesEmbedded)
	add(m.sources, "missing", r.SourcesMissing)
	if r.UnappliedEdits > 0 {
		m.unapplied.Add(ctx, int64(r.UnappliedEdits))
	}
}

func (m *Metrics) ObservePhase(ctx context.Context, phase linker.Phase, elapsed time.Duration) {
	m.phaseDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String(attrPhase, string(phase))))
}

// WriteTextfile writes the registry in text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
