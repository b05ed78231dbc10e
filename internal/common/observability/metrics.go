package observability

import (
	"context"
	"time"

	"crisis-alerts/internal/common/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	serviceName    string
	logger         logger.Logger
	meterProvider  *metric.MeterProvider
	tracerProvider tracerShutdown
	meter          otelmetric.Meter
	jobCounter     otelmetric.Int64Counter
	jobDuration    otelmetric.Float64Histogram
}

type tracerShutdown interface {
	Shutdown(ctx context.Context) error
}

// New wires the OpenTelemetry meter provider to the Prometheus registry and,
// when jaegerEndpoint is set, installs a batching trace exporter.
func New(serviceName, jaegerEndpoint string, log logger.Logger) *Observability {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	o := &Observability{serviceName: serviceName, logger: log}

	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("failed to create prometheus exporter", map[string]interface{}{"error": err.Error()})
	} else {
		provider := metric.NewMeterProvider(metric.WithReader(exporter))
		otel.SetMeterProvider(provider)

		o.meterProvider = provider
		o.meter = provider.Meter(serviceName)
		o.jobCounter, _ = o.meter.Int64Counter(
			"alerts.dispatched",
			otelmetric.WithDescription("Number of alert dispatches processed"),
		)
		o.jobDuration, _ = o.meter.Float64Histogram(
			"alerts.dispatch.duration",
			otelmetric.WithDescription("Alert dispatch duration"),
			otelmetric.WithUnit("ms"),
		)
	}

	if jaegerEndpoint != "" {
		tp, err := newTracerProvider(serviceName, jaegerEndpoint)
		if err != nil {
			log.Warn("tracing disabled", map[string]interface{}{"error": err.Error()})
		} else {
			o.tracerProvider = tp
		}
	}

	return o
}

func (o *Observability) RecordDispatch(ctx context.Context, outcome string) {
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) RecordDispatchDuration(ctx context.Context, duration time.Duration, outcome string) {
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if o.meterProvider != nil {
		if err := o.meterProvider.Shutdown(ctx); err != nil {
			o.logger.Warn("meter provider shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}
	if o.tracerProvider != nil {
		if err := o.tracerProvider.Shutdown(ctx); err != nil {
			o.logger.Warn("tracer provider shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}
}
