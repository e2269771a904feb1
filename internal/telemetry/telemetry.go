package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/vecli/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Telemetry owns the SDK providers installed for one vecli invocation.
type Telemetry struct {
	config *Config
	logger *logging.Logger

	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider

	startErr error
	stopped  bool
}

// WithLogger reports exporter failures through l.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates a Telemetry instance and installs its providers globally.
//
// A disabled config returns an instance that exports nothing. A provider that
// fails to start is skipped and reported by Degraded; commands still run.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Telemetry, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}

	t := &Telemetry{config: cfg, logger: o.logger}

	if !cfg.Enabled {
		return t, nil
	}

	res := newResource(cfg)

	tp, err := newTracerProvider(ctx, cfg, res, o.spanExporter)
	if err != nil {
		t.degrade(ctx, "tracer provider", err)
	} else {
		t.tracerProvider = tp
		otel.SetTracerProvider(tp)
	}

	mp, err := newMeterProvider(ctx, cfg, res, o.metricExporter)
	if err != nil {
		t.degrade(ctx, "meter provider", err)
	} else if mp != nil {
		t.meterProvider = mp
		otel.SetMeterProvider(mp)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.logger.Debug(ctx, "telemetry export enabled",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("protocol", cfg.Protocol),
	)
	return t, nil
}

// Tracer returns a tracer from the exporting provider, or from the global
// provider when export is off.
func (t *Telemetry) Tracer(name string, opts ...oteltrace.TracerOption) oteltrace.Tracer {
	if t == nil || t.tracerProvider == nil {
		return otel.GetTracerProvider().Tracer(name, opts...)
	}
	return t.tracerProvider.Tracer(name, opts...)
}

// Meter returns a meter from the exporting provider, or from the global
// provider when export is off.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if t == nil || t.meterProvider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return t.meterProvider.Meter(name, opts...)
}

// lifecycle is implemented by both SDK providers.
type lifecycle interface {
	ForceFlush(context.Context) error
	Shutdown(context.Context) error
}

func (t *Telemetry) each(fn func(name string, p lifecycle) error) error {
	var errs []error
	if t.tracerProvider != nil {
		if err := fn("trace", t.tracerProvider); err != nil {
			errs = append(errs, err)
		}
	}
	if t.meterProvider != nil {
		if err := fn("meter", t.meterProvider); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Shutdown exports pending data and stops the providers. Without a deadline
// on ctx the configured shutdown timeout applies.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && t.config != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.ShutdownTimeout)
		defer cancel()
	}

	t.stopped = true
	return t.each(func(name string, p lifecycle) error {
		if err := p.Shutdown(ctx); err != nil {
			return fmt.Errorf("%s provider shutdown: %w", name, err)
		}
		return nil
	})
}

// ForceFlush exports pending data without stopping the providers.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.each(func(name string, p lifecycle) error {
		if err := p.ForceFlush(ctx); err != nil {
			return fmt.Errorf("%s flush: %w", name, err)
		}
		return nil
	})
}

// Degraded returns the errors of providers that failed to start, or nil.
func (t *Telemetry) Degraded() error {
	if t == nil {
		return nil
	}
	return t.startErr
}

// IsEnabled reports whether export was requested and has not been shut down.
func (t *Telemetry) IsEnabled() bool {
	if t == nil || t.config == nil {
		return false
	}
	return t.config.Enabled && !t.stopped
}

func (t *Telemetry) degrade(ctx context.Context, what string, err error) {
	t.startErr = errors.Join(t.startErr, fmt.Errorf("%s: %w", what, err))
	t.logger.Warn(ctx, "telemetry export degraded", zap.String("component", what), zap.Error(err))
}
