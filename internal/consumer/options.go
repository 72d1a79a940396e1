package consumer

import (
	"time"

	"github.com/goldfish-inc/oceanid/sqs-worker/internal/logging"
	"github.com/goldfish-inc/oceanid/sqs-worker/internal/metrics"
)

// DefaultFetchBackoff is the pause after a failed fetch before the next attempt.
const DefaultFetchBackoff = 5 * time.Second

type options struct {
	logger       logging.Logger
	metrics      *metrics.Metrics
	fetchBackoff time.Duration
	name         string
}

// Option customizes a Consumer.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records consumer metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithFetchBackoff overrides DefaultFetchBackoff.
func WithFetchBackoff(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.fetchBackoff = d
		}
	}
}

// WithName sets the name used in logs and as the metrics queue label.
// Defaults to the last path segment of the queue URL.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}
