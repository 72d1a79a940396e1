package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Backend caps for SQS. Values outside these ranges are rejected, never clamped.
const (
	MaxBatchSize         = 10
	MaxWaitTime          = 20 * time.Second
	MaxVisibilityTimeout = 12 * time.Hour
)

// QueueConfig is the immutable per-queue consumer configuration.
type QueueConfig struct {
	queueURL              string
	maxConcurrentMessages int
	maxBatchSize          int
	waitTime              time.Duration
	visibilityTimeout     time.Duration
}

// NewQueueConfig validates its arguments and returns a QueueConfig.
func NewQueueConfig(queueURL string, maxConcurrent, maxBatch int, waitTime, visibilityTimeout time.Duration) (QueueConfig, error) {
	var errs error
	if queueURL == "" {
		errs = multierr.Append(errs, errors.New("queue url cannot be empty"))
	}
	if maxConcurrent < 1 {
		errs = multierr.Append(errs, fmt.Errorf("max concurrent messages must be positive, got %d", maxConcurrent))
	}
	if maxBatch < 1 || maxBatch > MaxBatchSize {
		errs = multierr.Append(errs, fmt.Errorf("max batch size must be between 1 and %d, got %d", MaxBatchSize, maxBatch))
	}
	if waitTime < 0 || waitTime > MaxWaitTime {
		errs = multierr.Append(errs, fmt.Errorf("wait time must be between 0 and %s, got %s", MaxWaitTime, waitTime))
	}
	if visibilityTimeout < 0 || visibilityTimeout > MaxVisibilityTimeout {
		errs = multierr.Append(errs, fmt.Errorf("visibility timeout must be between 0 and %s, got %s", MaxVisibilityTimeout, visibilityTimeout))
	}
	if errs != nil {
		return QueueConfig{}, fmt.Errorf("invalid queue config: %w", errs)
	}

	return QueueConfig{
		queueURL:              queueURL,
		maxConcurrentMessages: maxConcurrent,
		maxBatchSize:          maxBatch,
		waitTime:              waitTime,
		visibilityTimeout:     visibilityTimeout,
	}, nil
}

// QueueURL returns the queue address.
func (c QueueConfig) QueueURL() string { return c.queueURL }

// MaxConcurrentMessages returns the size of the concurrency gate.
func (c QueueConfig) MaxConcurrentMessages() int { return c.maxConcurrentMessages }

// MaxBatchSize returns the number of messages requested per fetch.
func (c QueueConfig) MaxBatchSize() int32 { return int32(c.maxBatchSize) }

// WaitTime returns the long-poll duration.
func (c QueueConfig) WaitTime() time.Duration { return c.waitTime }

// VisibilityTimeout returns the visibility timeout requested on receive.
// Zero means the queue default applies.
func (c QueueConfig) VisibilityTimeout() time.Duration { return c.visibilityTimeout }
