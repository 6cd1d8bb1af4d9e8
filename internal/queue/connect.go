package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	connectMaxRetries   = 10
	connectInitialDelay = 2 * time.Second
	connectMaxDelay     = 30 * time.Second
)

// Connect dials RabbitMQ, retrying with exponential backoff to ride out
// broker startup. It gives up after connectMaxRetries attempts or when ctx ends.
func Connect(ctx context.Context, amqpURL string, log *zap.Logger) (*RabbitMQQueue, error) {
	var lastErr error
	for attempt := 0; attempt < connectMaxRetries; attempt++ {
		q, err := NewRabbitMQQueue(amqpURL)
		if err == nil {
			log.Info("connected_to_rabbitmq", zap.Int("attempt", attempt+1))
			return q, nil
		}
		lastErr = err

		delay := backoffDelay(attempt)
		log.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", connectMaxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gave up connecting to RabbitMQ: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", connectMaxRetries, lastErr)
}

func backoffDelay(attempt int) time.Duration {
	if attempt >= 16 {
		return connectMaxDelay
	}
	delay := connectInitialDelay * time.Duration(1<<uint(attempt))
	if delay > connectMaxDelay {
		return connectMaxDelay
	}
	return delay
}
