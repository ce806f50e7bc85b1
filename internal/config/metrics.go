package config

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ParseError reports an environment variable whose value could not be read
// as the expected type.
type ParseError struct {
	Key string
	Err error
}

func (e *ParseError) Error() string { return "parse " + e.Key + ": " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError collects every rule the loaded values break.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validate config: " + strings.Join(e.Problems, "; ")
}

var (
	loadMetricsOnce sync.Once
	loadCounter     metric.Int64Counter
)

// recordConfigLoad counts load attempts by profile and by the storage
// topology the process is about to run with.
func recordConfigLoad(ctx context.Context, cfg *Config, err error) {
	loadMetricsOnce.Do(func() {
		counter, cerr := otel.Meter("live-voting-service").Int64Counter(
			"config.load.events",
			metric.WithDescription("Configuration load attempts by outcome"),
		)
		if cerr == nil {
			loadCounter = counter
		}
	})
	if loadCounter == nil {
		return
	}
	profile, driver, coordination := os.Getenv("APP_ENV"), "unknown", "unknown"
	outcome := "failure"
	if cfg != nil {
		profile, driver = cfg.AppEnv, cfg.DatabaseDriver
		coordination = "single_node"
		if cfg.RedisEnabled() {
			coordination = "redis"
		}
	}
	if err == nil {
		outcome = "success"
	}
	loadCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("profile", normalizeConfigProfile(profile)),
		attribute.String("outcome", outcome),
		attribute.String("error_class", classifyConfigLoadError(err)),
		attribute.String("database_driver", driver),
		attribute.String("coordination", coordination),
	))
}

func normalizeConfigProfile(profile string) string {
	switch v := strings.ToLower(strings.TrimSpace(profile)); v {
	case "":
		return "unknown"
	case "prod", "production":
		return "production"
	case "dev", "development", "local":
		return "development"
	default:
		return v
	}
}

func classifyConfigLoadError(err error) string {
	var parseErr *ParseError
	var validationErr *ValidationError
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &validationErr):
		return "validation"
	case errors.As(err, &parseErr):
		return "parse"
	default:
		return "load"
	}
}
