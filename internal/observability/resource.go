package observability

import (
	"context"

	"github.com/sandeepkv93/live-voting-service/internal/config"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
)

// newResource tags every signal with the deployment shape so dashboards can
// split single-node rooms from Redis-coordinated clusters.
func newResource(ctx context.Context, cfg *config.Config) (*resource.Resource, error) {
	coordination := "single_node"
	if cfg.RedisEnabled() {
		coordination = "redis"
	}
	return resource.New(ctx,
		resource.WithHost(),
		resource.WithProcessPID(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
			attribute.String("voting.coordination", coordination),
			attribute.String("voting.database_driver", cfg.DatabaseDriver),
		),
	)
}
