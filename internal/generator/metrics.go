package generator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/breatheroute/takeoutfaker/internal/trajectory"
	"github.com/breatheroute/takeoutfaker/internal/variant"
)

const meterName = "github.com/breatheroute/takeoutfaker/internal/generator"

// Metrics holds the OpenTelemetry instruments for document generation.
type Metrics struct {
	documentsTotal  metric.Int64Counter
	failuresTotal   metric.Int64Counter
	entriesTotal    metric.Int64Counter
	duration        metric.Float64Histogram
	distance        metric.Float64Histogram
	variantsRunning metric.Int64UpDownCounter
}

// NewMetrics creates generation instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	documentsTotal, err := meter.Int64Counter(
		"takeoutfaker.documents.total",
		metric.WithDescription("Total number of generated monthly documents"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return nil, err
	}

	failuresTotal, err := meter.Int64Counter(
		"takeoutfaker.documents.failed",
		metric.WithDescription("Total number of monthly documents that failed to generate"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return nil, err
	}

	entriesTotal, err := meter.Int64Counter(
		"takeoutfaker.timeline.entries",
		metric.WithDescription("Total number of synthesized timeline entries"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"takeoutfaker.document.duration",
		metric.WithDescription("Duration of one monthly document generation in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	distance, err := meter.Float64Histogram(
		"takeoutfaker.document.distance",
		metric.WithDescription("Total travelled distance of one monthly document"),
		metric.WithUnit("m"),
	)
	if err != nil {
		return nil, err
	}

	variantsRunning, err := meter.Int64UpDownCounter(
		"takeoutfaker.documents.in_flight",
		metric.WithDescription("Number of monthly documents currently being generated"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		documentsTotal:  documentsTotal,
		failuresTotal:   failuresTotal,
		entriesTotal:    entriesTotal,
		duration:        duration,
		distance:        distance,
		variantsRunning: variantsRunning,
	}, nil
}

func keyAttributes(key variant.Key) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("variant.year", key.Year),
		attribute.String("variant.month", variant.MonthName(key.Month)),
	}
}

func (m *Metrics) started(ctx context.Context, key variant.Key) {
	m.variantsRunning.Add(ctx, 1, metric.WithAttributes(attribute.Int("variant.year", key.Year)))
}

func (m *Metrics) finished(ctx context.Context, key variant.Key, elapsed time.Duration, summary trajectory.Summary, err error) {
	m.variantsRunning.Add(ctx, -1, metric.WithAttributes(attribute.Int("variant.year", key.Year)))

	attrs := keyAttributes(key)
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
		m.failuresTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
		m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
		return
	}

	m.documentsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.entriesTotal.Add(ctx, int64(summary.Entries), metric.WithAttributes(attrs...))
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
	m.distance.Record(ctx, summary.DistanceMeters, metric.WithAttributes(attrs...))
}
