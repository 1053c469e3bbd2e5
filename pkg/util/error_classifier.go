package util

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rabbitmq/amqp091-go"
)

// IsRetryableError classifies a failure to publish or persist an event.
// Returns: (isRetryable, errorType)
func IsRetryableError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	// JSON 错误 - 不可重试（数据格式错误）
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var unsupported *json.UnsupportedTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.As(err, &unsupported) {
		return false, "json_error"
	}

	if errors.Is(err, context.Canceled) {
		return false, "context_canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true, "timeout"
	}

	// RabbitMQ
	if errors.Is(err, amqp091.ErrClosed) {
		return true, "mq_connection_closed"
	}
	var amqpErr *amqp091.Error
	if errors.As(err, &amqpErr) {
		if amqpErr.Recover {
			return true, "mq_soft_error"
		}
		return false, "mq_hard_error"
	}

	// Database
	if errors.Is(err, pgx.ErrNoRows) {
		return false, "not_found"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			// 唯一约束冲突 - 不可重试（幂等性）
			return false, "duplicate_key"
		case "40001", "40P01", "55P03":
			return true, "db_contention"
		}
		return false, "db_error"
	}
	if pgconn.Timeout(err) {
		return true, "db_timeout"
	}

	// 网络错误 - 可重试
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true, "network_timeout"
		}
		return true, "network_error"
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection") || strings.Contains(msg, "timeout") {
		return true, "connection_error"
	}

	// 默认：未知错误，保守处理 - 不重试
	return false, "unknown_error"
}

// ShouldRetry reports whether another attempt is allowed after retryCount failures.
func ShouldRetry(retryCount, maxRetries int, isRetryable bool) bool {
	if !isRetryable {
		return false
	}
	return retryCount < maxRetries
}
