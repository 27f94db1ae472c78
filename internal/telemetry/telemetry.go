// Package telemetry sets up OpenTelemetry trace and metric export for a
// generation run.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// DefaultServiceName identifies the generator in exported telemetry.
const DefaultServiceName = "takeoutfaker"

// DefaultExportInterval is the metric export period. Runs are short, so
// Shutdown's final collection usually carries most data points.
const DefaultExportInterval = 5 * time.Second

// ErrInvalidSampleRatio is returned for a trace sample ratio outside [0, 1].
var ErrInvalidSampleRatio = errors.New("trace sample ratio must be within [0, 1]")

// Batch describes the generation batch. It is exported as resource
// attributes so every span and data point of a run can be told apart.
type Batch struct {
	Years   []int
	Country string
	Legacy  bool
	Seed    *uint64
}

func (b Batch) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.IntSlice("takeoutfaker.years", b.Years),
		attribute.Bool("takeoutfaker.legacy", b.Legacy),
	}
	if b.Country != "" {
		attrs = append(attrs, attribute.String("takeoutfaker.country", b.Country))
	}
	if b.Seed != nil {
		attrs = append(attrs, attribute.String("takeoutfaker.seed", strconv.FormatUint(*b.Seed, 10)))
	}
	return attrs
}

// Config holds configuration for telemetry setup.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	Enabled        bool

	// ExportInterval is the periodic metric export interval.
	// Default: 5 seconds
	ExportInterval time.Duration

	// SampleRatio is the fraction of document spans kept.
	// Zero value is treated as 1.
	SampleRatio float64

	Batch Batch
}

// Provider holds the installed SDK providers. Both are nil when export is
// disabled; the global noop providers stay in place.
type Provider struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
}

// Exporting reports whether spans and metrics leave the process.
func (p *Provider) Exporting() bool {
	return p.TracerProvider != nil
}

// Shutdown flushes pending spans and metrics and stops the exporters.
// Both providers are shut down even if the first fails.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TracerProvider != nil {
		errs = append(errs, p.TracerProvider.Shutdown(ctx))
	}
	if p.MeterProvider != nil {
		errs = append(errs, p.MeterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Init installs OTLP trace and metric providers globally. When export is
// disabled it installs nothing and returns an empty Provider. The returned
// Provider must be shut down before the process exits.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}
	if cfg.ExportInterval <= 0 {
		cfg.ExportInterval = DefaultExportInterval
	}
	if cfg.SampleRatio == 0 {
		cfg.SampleRatio = 1
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSampleRatio, cfg.SampleRatio)
	}
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	res, err := NewResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("building telemetry resource: %w", err)
	}

	tracerProvider, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	meterProvider, err := newMeterProvider(ctx, cfg, res)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx) //nolint:errcheck // best effort cleanup
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)

	return &Provider{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
	}, nil
}

// NewResource describes the service and its batch.
func NewResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := append([]attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	}, cfg.Batch.attributes()...)
	return resource.New(ctx, resource.WithAttributes(attrs...))
}

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	), nil
}

func newMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(cfg.ExportInterval),
		)),
		sdkmetric.WithResource(res),
	), nil
}
