package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// Option customizes New.
type Option func(*options)

type options struct {
	spanExporter sdktrace.SpanExporter
	metricReader sdkmetric.Reader
	logExporter  sdklog.Exporter
}

// WithSpanExporter replaces the OTLP span exporter, e.g. with an in-memory
// exporter in tests. Spans are exported synchronously.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) { o.spanExporter = exp }
}

// WithMetricReader replaces the OTLP periodic reader.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) { o.metricReader = r }
}

// WithLogExporter replaces the OTLP log exporter. Records are exported
// synchronously.
func WithLogExporter(exp sdklog.Exporter) Option {
	return func(o *options) { o.logExporter = exp }
}

// Telemetry owns the installed providers.
type Telemetry struct {
	tracerProvider  *sdktrace.TracerProvider
	meterProvider   *sdkmetric.MeterProvider
	loggerProvider  *sdklog.LoggerProvider
	shutdownTimeout time.Duration
}

// New builds the providers and installs them as the otel globals. A
// disabled config yields a Telemetry whose methods are no-ops.
func New(ctx context.Context, cfg *Config, logger *zap.Logger, opts ...Option) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Telemetry{shutdownTimeout: cfg.ShutdownTimeout}
	if !cfg.Enabled {
		return t, nil
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	res := newResource(cfg)

	var spans sdktrace.TracerProviderOption
	if o.spanExporter != nil {
		spans = sdktrace.WithSyncer(o.spanExporter)
	} else if exp, err := newSpanExporter(ctx, cfg); err != nil {
		logger.Warn("trace export disabled", zap.Error(err))
	} else {
		spans = sdktrace.WithBatcher(exp)
	}
	if spans != nil {
		t.tracerProvider = sdktrace.NewTracerProvider(
			spans,
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler(cfg.SampleRate)),
		)
		otel.SetTracerProvider(t.tracerProvider)
	}

	if o.metricReader == nil {
		reader, err := newMetricReader(ctx, cfg)
		if err != nil {
			logger.Warn("metric export disabled", zap.Error(err))
		}
		o.metricReader = reader
	}
	if o.metricReader != nil {
		t.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(o.metricReader),
		)
		otel.SetMeterProvider(t.meterProvider)
	}

	var records sdklog.Processor
	if o.logExporter != nil {
		records = sdklog.NewSimpleProcessor(o.logExporter)
	} else if exp, err := newLogExporter(ctx, cfg); err != nil {
		logger.Warn("log export disabled", zap.Error(err))
	} else {
		records = sdklog.NewBatchProcessor(exp)
	}
	if records != nil {
		t.loggerProvider = sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(records),
		)
		global.SetLoggerProvider(t.loggerProvider)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("telemetry enabled",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("protocol", cfg.Protocol),
		zap.Bool("traces", t.tracerProvider != nil),
		zap.Bool("metrics", t.meterProvider != nil),
		zap.Bool("logs", t.loggerProvider != nil))
	return t, nil
}

// Enabled reports whether any provider was installed.
func (t *Telemetry) Enabled() bool {
	return t != nil && (t.tracerProvider != nil || t.meterProvider != nil || t.loggerProvider != nil)
}

// LoggerProvider returns the provider for the otelzap bridge, or nil when
// log export is off.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if t == nil || t.loggerProvider == nil {
		return nil
	}
	return t.loggerProvider
}

// Shutdown flushes and stops the providers. Without a deadline on ctx the
// configured shutdown timeout applies.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && t.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.shutdownTimeout)
		defer cancel()
	}

	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	if t.loggerProvider != nil {
		if err := t.loggerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("logger provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}
