package variation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"contracttracker/pkg/circuitbreaker"
)

// RefGenerator hands out human-readable variation references per project.
type RefGenerator interface {
	Next(ctx context.Context, projectID uuid.UUID) (string, error)
}

// RedisRefGenerator numbers variations with a per-project Redis counter. A breaker keeps a
// down Redis from adding a dial timeout to every draft.
type RedisRefGenerator struct {
	rdb     *redis.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewRedisRefGenerator(rdb *redis.Client, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *RedisRefGenerator {
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig())
	}
	return &RedisRefGenerator{
		rdb:     rdb,
		breaker: breaker,
		logger:  logger,
	}
}

func refCounterKey(projectID uuid.UUID) string {
	return "var_ref:" + projectID.String()
}

func (g *RedisRefGenerator) Next(ctx context.Context, projectID uuid.UUID) (string, error) {
	var n int64
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		n, err = g.rdb.Incr(ctx, refCounterKey(projectID)).Result()
		return err
	})
	if err != nil {
		g.logger.Warn("Variation ref counter unavailable",
			zap.String("project_id", projectID.String()),
			zap.String("breaker", g.breaker.GetState().String()),
			zap.Error(err),
		)
		return "", fmt.Errorf("next variation ref: %w", err)
	}
	return fmt.Sprintf("VAR-%03d", n), nil
}
