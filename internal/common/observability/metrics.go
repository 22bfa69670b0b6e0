package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records submission-level metrics through OpenTelemetry,
// exported on the same Prometheus registry as the promauto metrics.
type Observability struct {
	meterProvider      *metric.MeterProvider
	meter              otelmetric.Meter
	submissionCounter  otelmetric.Int64Counter
	submissionDuration otelmetric.Float64Histogram
	stateTransitions   otelmetric.Int64Counter
}

// New returns a usable Observability even on error; its recorders are then no-ops.
func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return &Observability{}, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	submissionCounter, _ := meter.Int64Counter(
		"consent.submissions",
		otelmetric.WithDescription("Consent submissions processed"),
	)

	submissionDuration, _ := meter.Float64Histogram(
		"consent.submission.duration",
		otelmetric.WithDescription("End-to-end submission duration"),
		otelmetric.WithUnit("ms"),
	)

	stateTransitions, _ := meter.Int64Counter(
		"consent.session.transitions",
		otelmetric.WithDescription("Submission session state transitions"),
	)

	return &Observability{
		meterProvider:      provider,
		meter:              meter,
		submissionCounter:  submissionCounter,
		submissionDuration: submissionDuration,
		stateTransitions:   stateTransitions,
	}, nil
}

func (o *Observability) RecordSubmission(ctx context.Context, status string) {
	if o == nil || o.submissionCounter == nil {
		return
	}
	o.submissionCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("status", status),
	))
}

func (o *Observability) RecordSubmissionDuration(ctx context.Context, duration time.Duration, status string) {
	if o == nil || o.submissionDuration == nil {
		return
	}
	o.submissionDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("status", status),
	))
}

func (o *Observability) RecordTransition(ctx context.Context, from, to string) {
	if o == nil || o.stateTransitions == nil {
		return
	}
	o.stateTransitions.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.meterProvider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return o.meterProvider.Shutdown(ctx)
}
