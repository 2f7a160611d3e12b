package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/morozRed/maplink/internal/linker"
)

const spanPrefix = "maplink.link."

// LinkObserver opens one span per link phase and records its duration.
type LinkObserver struct {
	tracer  trace.Tracer
	metrics *Metrics
}

// NewLinkObserver accepts a nil metrics.
func NewLinkObserver(tracer trace.Tracer, metrics *Metrics) *LinkObserver {
	return &LinkObserver{tracer: tracer, metrics: metrics}
}

func (o *LinkObserver) Begin(ctx context.Context, phase linker.Phase) (context.Context, func()) {
	started := time.Now()
	ctx, span := o.tracer.Start(ctx, spanPrefix+string(phase),
		trace.WithAttributes(attribute.String(attrPhase, string(phase))))
	return ctx, func() {
		span.End()
		if o.metrics != nil {
			o.metrics.ObservePhase(ctx, phase, time.Since(started))
		}
	}
}
