package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sandeepkv93/live-voting-service/internal/config"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Runtime struct {
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider
	LoggerProvider *sdklog.LoggerProvider
}

func InitRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, lp *sdklog.LoggerProvider) (*Runtime, error) {
	mp, err := InitMetrics(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	tp, err := InitTracing(ctx, cfg, logger)
	if err != nil {
		_ = mp.Shutdown(ctx)
		return nil, err
	}
	logger.Info("observability ready",
		"metrics", cfg.OTELMetricsEnabled,
		"tracing", cfg.OTELTracingEnabled,
		"logs", cfg.OTELLogsEnabled,
		"endpoint", cfg.OTELExporterOTLPEndpoint,
	)
	return &Runtime{MeterProvider: mp, TracerProvider: tp, LoggerProvider: lp}, nil
}

type shutdowner interface {
	Shutdown(context.Context) error
}

// Shutdown flushes traces before metrics and logs last, so spans recorded
// while draining still carry their log lines.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	steps := []struct {
		name string
		p    shutdowner
	}{
		{"tracer", r.TracerProvider},
		{"meter", r.MeterProvider},
		{"logger", r.LoggerProvider},
	}
	var errs []error
	for _, step := range steps {
		if isNilProvider(step.p) {
			continue
		}
		if err := step.p.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s provider: %w", step.name, err))
		}
	}
	return errors.Join(errs...)
}

func isNilProvider(p shutdowner) bool {
	switch v := p.(type) {
	case *sdktrace.TracerProvider:
		return v == nil
	case *sdkmetric.MeterProvider:
		return v == nil
	case *sdklog.LoggerProvider:
		return v == nil
	}
	return p == nil
}
