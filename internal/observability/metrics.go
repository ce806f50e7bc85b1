package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sandeepkv93/live-voting-service/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "live-voting-service"

type AppMetrics struct {
	authAttemptCounter     metric.Int64Counter
	voteCastCounter        metric.Int64Counter
	stageTransitionCounter metric.Int64Counter
	broadcastCounter       metric.Int64Counter
	statsFlushCounter      metric.Int64Counter
	activeConnections      metric.Int64UpDownCounter
	repositoryOpCounter    metric.Int64Counter
	rateLimitCounter       metric.Int64Counter
	rateLimitRetryAfter    metric.Float64Histogram
	credentialCheckCounter metric.Int64Counter
	settingsReloadCounter  metric.Int64Counter
	auditDropCounter       metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	m, err := newAppMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func newAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	m := &AppMetrics{}
	var err error
	counters := []struct {
		name string
		dest *metric.Int64Counter
	}{
		{"participant.auth.attempts", &m.authAttemptCounter},
		{"vote.cast.attempts", &m.voteCastCounter},
		{"agenda.stage.transitions", &m.stageTransitionCounter},
		{"realtime.broadcasts", &m.broadcastCounter},
		{"realtime.stats.flushes", &m.statsFlushCounter},
		{"repository.operations", &m.repositoryOpCounter},
		{"http.rate_limit.decisions", &m.rateLimitCounter},
		{"auth.credential.validations", &m.credentialCheckCounter},
		{"settings.reloads", &m.settingsReloadCounter},
		{"audit.events.dropped", &m.auditDropCounter},
	}
	for _, c := range counters {
		if *c.dest, err = meter.Int64Counter(c.name); err != nil {
			return nil, err
		}
	}
	if m.activeConnections, err = meter.Int64UpDownCounter("realtime.connections.active"); err != nil {
		return nil, err
	}
	if m.rateLimitRetryAfter, err = meter.Float64Histogram("http.rate_limit.retry_after", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return m, nil
}

func current() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordAuthAttempt(ctx context.Context, protocol, outcome string) {
	if m := current(); m != nil {
		m.authAttemptCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("protocol", protocol),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordVoteCast(ctx context.Context, transport, outcome string) {
	if m := current(); m != nil {
		m.voteCastCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("transport", transport),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordStageTransition(ctx context.Context, from, to string) {
	if m := current(); m != nil {
		m.stageTransitionCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		))
	}
}

func RecordBroadcast(ctx context.Context, event string, recipients int) {
	if m := current(); m != nil {
		m.broadcastCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("event", event),
			attribute.Bool("empty_room", recipients == 0),
		))
	}
}

func RecordStatsFlush(ctx context.Context, backend string) {
	if m := current(); m != nil {
		m.statsFlushCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backend)))
	}
}

func RecordConnectionDelta(ctx context.Context, role string, delta int64) {
	if m := current(); m != nil {
		m.activeConnections.Add(ctx, delta, metric.WithAttributes(attribute.String("role", role)))
	}
}

func RecordRepositoryOperation(ctx context.Context, entity, operation, outcome string) {
	if m := current(); m != nil {
		m.repositoryOpCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("entity", entity),
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome, mode, keyType string) {
	if m := current(); m != nil {
		m.rateLimitCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("scope", scope),
			attribute.String("outcome", outcome),
			attribute.String("mode", mode),
			attribute.String("key_type", keyType),
		))
	}
}

func RecordRateLimitRetryAfter(ctx context.Context, scope, reason string, retryAfter time.Duration) {
	if m := current(); m != nil {
		m.rateLimitRetryAfter.Record(ctx, retryAfter.Seconds(), metric.WithAttributes(
			attribute.String("scope", scope),
			attribute.String("reason", reason),
		))
	}
}

func RecordCredentialValidation(ctx context.Context, kind, outcome, source string) {
	if m := current(); m != nil {
		m.credentialCheckCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("outcome", outcome),
			attribute.String("source", source),
		))
	}
}

func RecordSettingsReload(ctx context.Context, trigger, outcome string) {
	if m := current(); m != nil {
		m.settingsReloadCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("trigger", trigger),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordAuditDropped(ctx context.Context, eventType string) {
	if m := current(); m != nil {
		m.auditDropCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
	}
}
