package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryableError(t *testing.T) {
	var syntaxErr error = &json.SyntaxError{}

	cases := []struct {
		name      string
		err       error
		retryable bool
		kind      string
	}{
		{"nil", nil, false, ""},
		{"json", fmt.Errorf("decode: %w", syntaxErr), false, "json_error"},
		{"canceled", context.Canceled, false, "context_canceled"},
		{"deadline", fmt.Errorf("publish: %w", context.DeadlineExceeded), true, "timeout"},
		{"channel closed", fmt.Errorf("publish: %w", amqp091.ErrClosed), true, "mq_connection_closed"},
		{"soft amqp", &amqp091.Error{Code: 312, Recover: true}, true, "mq_soft_error"},
		{"hard amqp", &amqp091.Error{Code: 503, Recover: false}, false, "mq_hard_error"},
		{"unique", &pgconn.PgError{Code: "23505"}, false, "duplicate_key"},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true, "db_contention"},
		{"dial", errors.New("dial tcp: connection refused"), true, "connection_error"},
		{"other", errors.New("boom"), false, "unknown_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			retryable, kind := IsRetryableError(tc.err)
			assert.Equal(t, tc.retryable, retryable)
			assert.Equal(t, tc.kind, kind)
		})
	}
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(0, 3, true))
	assert.False(t, ShouldRetry(3, 3, true))
	assert.False(t, ShouldRetry(0, 3, false))
}
