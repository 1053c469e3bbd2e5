package variation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"contracttracker/pkg/circuitbreaker"
)

func TestRedisRefGeneratorOpensBreakerWhenRedisIsDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
		FailureThreshold:    1,
		SuccessThreshold:    1,
		Timeout:             time.Minute,
		HalfOpenMaxRequests: 1,
	})
	gen := NewRedisRefGenerator(rdb, breaker, zap.NewNop())

	_, err := gen.Next(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, circuitbreaker.StateOpen, breaker.GetState())

	_, err = gen.Next(context.Background(), uuid.New())
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitBreakerOpen)
}

func TestRefCounterKey(t *testing.T) {
	id := uuid.MustParse("6f1c2a7e-0000-4000-8000-000000000001")
	assert.Equal(t, "var_ref:6f1c2a7e-0000-4000-8000-000000000001", refCounterKey(id))
}
