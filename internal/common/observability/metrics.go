package observability

import (
	"context"
	"log"
	"time"

	"hiring-pipeline/internal/common/errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Observability records operation spans and OTel metrics exported through
// Prometheus. A nil *Observability is valid and records nothing.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	opCounter      otelmetric.Int64Counter
	opDuration     otelmetric.Float64Histogram
}

// New registers the exporter with reg, or with the default registerer when
// reg is nil. Extra tracer provider options (span processors, samplers) are
// passed through.
func New(serviceName string, reg prometheus.Registerer, traceOpts ...sdktrace.TracerProviderOption) *Observability {
	tracerProvider := sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tracerProvider)

	o := &Observability{
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer(serviceName),
	}

	var exporterOpts []otelprom.Option
	if reg != nil {
		exporterOpts = append(exporterOpts, otelprom.WithRegisterer(reg))
	}
	exporter, err := otelprom.New(exporterOpts...)
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(serviceName)

	o.meterProvider = provider
	o.opCounter, _ = meter.Int64Counter(
		"pipeline_operations",
		otelmetric.WithDescription("Pipeline operations by name and outcome"),
	)
	o.opDuration, _ = meter.Float64Histogram(
		"pipeline_operation_duration",
		otelmetric.WithDescription("Pipeline operation duration"),
		otelmetric.WithUnit("ms"),
	)
	return o
}

// StartOperation opens a span for name. The returned func ends it and records
// the outcome, which is "ok" or the error code of err.
func (o *Observability) StartOperation(ctx context.Context, name string) (context.Context, func(err error)) {
	if o == nil || o.tracer == nil {
		return ctx, func(error) {}
	}

	start := time.Now()
	ctx, span := o.tracer.Start(ctx, name)

	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = string(errors.CodeOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.SetAttributes(attribute.String("outcome", outcome))
		span.End()

		attrs := otelmetric.WithAttributes(
			attribute.String("operation", name),
			attribute.String("outcome", outcome),
		)
		if o.opCounter != nil {
			o.opCounter.Add(ctx, 1, attrs)
		}
		if o.opDuration != nil {
			o.opDuration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
		}
	}
}

func (o *Observability) Shutdown(ctx context.Context) {
	if o == nil {
		return
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
