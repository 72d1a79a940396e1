// Package consumer runs the poll/dispatch loop that feeds queue messages to a
// processor under a fixed concurrency limit.
//
// One control loop per Consumer fetches batches and spawns a task per
// message. Tasks acquire a slot from the concurrency gate before doing any
// work, so at most MaxConcurrentMessages processors run at once. A message is
// deleted only after its processor succeeds; every other outcome leaves it on
// the queue for redelivery once its visibility timeout expires.
//
// Stop is cooperative. The loop stops fetching, tasks already spawned run to
// completion, and Start returns once they have all finished.
package consumer

import (
	"context"
	"errors"
	"path"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/semaphore"

	"github.com/goldfish-inc/oceanid/sqs-worker/internal/config"
	"github.com/goldfish-inc/oceanid/sqs-worker/internal/logging"
	"github.com/goldfish-inc/oceanid/sqs-worker/internal/metrics"
	"github.com/goldfish-inc/oceanid/sqs-worker/internal/queue"
)

// Backend is the queue a Consumer reads from. The queue address is bound
// inside the implementation.
type Backend interface {
	Fetch(ctx context.Context, maxMessages int32, wait time.Duration) ([]queue.Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Processor executes decoded commands. Execute is called concurrently.
type Processor[T any] interface {
	Execute(ctx context.Context, cmd T) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc[T any] func(ctx context.Context, cmd T) error

func (f ProcessorFunc[T]) Execute(ctx context.Context, cmd T) error { return f(ctx, cmd) }

// DecodeFunc turns a message body into a command, validating required fields.
type DecodeFunc[T any] func(body []byte) (T, error)

// Consumer consumes one queue. It is single use: Start may be called once.
type Consumer[T any] struct {
	cfg       config.QueueConfig
	backend   Backend
	decode    DecodeFunc[T]
	processor Processor[T]

	logger  logging.Logger
	metrics *metrics.Metrics
	backoff time.Duration
	name    string

	gate  *semaphore.Weighted
	tasks *registry

	started  atomic.Bool
	running  atomic.Bool
	shutdown atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// New builds a consumer. cfg has already been validated by
// config.NewQueueConfig.
func New[T any](cfg config.QueueConfig, backend Backend, decode DecodeFunc[T], processor Processor[T], opts ...Option) *Consumer[T] {
	o := options{
		logger:       logging.NewNop(),
		fetchBackoff: DefaultFetchBackoff,
		name:         path.Base(cfg.QueueURL()),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Consumer[T]{
		cfg:       cfg,
		backend:   backend,
		decode:    decode,
		processor: processor,
		logger:    o.logger,
		metrics:   o.metrics,
		backoff:   o.fetchBackoff,
		name:      o.name,
		gate:      semaphore.NewWeighted(int64(cfg.MaxConcurrentMessages())),
		tasks:     newRegistry(),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Name returns the name used in logs and metrics.
func (c *Consumer[T]) Name() string { return c.name }

// Start runs the poll/dispatch loop until Stop is called or ctx is cancelled,
// then waits for every spawned task to finish. Per-message and fetch failures
// are logged and never returned.
func (c *Consumer[T]) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer close(c.done)

	// Fetches and backoff sleeps are abandoned on stop. Task work runs on a
	// context that stop does not cancel, so in-flight messages can still be
	// processed and deleted during drain.
	fetchCtx, cancelFetch := context.WithCancel(ctx)
	defer cancelFetch()
	go func() {
		select {
		case <-ctx.Done():
			c.Stop()
		case <-c.stopCh:
		}
		cancelFetch()
	}()
	taskCtx := context.WithoutCancel(ctx)

	c.logger.Infow("sqs_consumer_started",
		"queue", c.name,
		"max_concurrent_messages", c.cfg.MaxConcurrentMessages(),
		"max_batch_size", c.cfg.MaxBatchSize(),
		"wait_time", c.cfg.WaitTime(),
	)

	c.poll(fetchCtx, taskCtx)
	failed := c.drain()
	c.running.Store(false)

	c.logger.Infow("sqs_consumer_stopped",
		"queue", c.name,
		"failed_tasks", len(multierr.Errors(failed)),
	)
	return nil
}

// Stop requests shutdown. It does not wait; use Shutdown or Done for that.
// Safe to call more than once and from any goroutine.
func (c *Consumer[T]) Stop() {
	c.stopOnce.Do(func() {
		c.shutdown.Store(true)
		c.tasks.close()
		close(c.stopCh)
		c.logger.Infow("sqs_consumer_stopping", "queue", c.name)
	})
}

// Shutdown calls Stop and waits for Start to return or ctx to end.
func (c *Consumer[T]) Shutdown(ctx context.Context) error {
	c.Stop()
	if !c.started.Load() {
		return nil
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Start returns. It never closes if Start is not called.
func (c *Consumer[T]) Done() <-chan struct{} { return c.done }

// IsHealthy reports whether the loop is running and no stop was requested.
// It never blocks.
func (c *Consumer[T]) IsHealthy() bool {
	return c.running.Load() && !c.shutdown.Load()
}

// InFlight returns the number of spawned tasks that have not finished.
func (c *Consumer[T]) InFlight() int { return c.tasks.len() }

func (c *Consumer[T]) poll(fetchCtx, taskCtx context.Context) {
	for {
		if c.shutdown.Load() {
			return
		}
		c.running.Store(true)

		messages, err := c.backend.Fetch(fetchCtx, c.cfg.MaxBatchSize(), c.cfg.WaitTime())
		if err != nil {
			if c.shutdown.Load() {
				return
			}
			c.running.Store(false)
			c.metrics.FetchError(c.name)
			c.logger.Errorw("fetch_messages_error",
				"queue", c.name,
				"error", &FetchError{Queue: c.name, Err: err},
				"backoff", c.backoff,
			)
			c.sleep(c.backoff)
			continue
		}

		for _, msg := range messages {
			c.dispatch(taskCtx, msg)
		}
	}
}

func (c *Consumer[T]) sleep(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-c.stopCh:
	}
}

func (c *Consumer[T]) dispatch(ctx context.Context, msg queue.Message) {
	t, ok := c.tasks.add(msg.ID)
	if !ok {
		c.logger.Warnw("message_not_dispatched",
			"queue", c.name,
			"message_id", msg.ID,
			"reason", "shutdown requested",
		)
		return
	}
	c.metrics.TaskStarted(c.name)
	go c.run(ctx, t, msg)
}

func (c *Consumer[T]) run(ctx context.Context, t *task, msg queue.Message) {
	started := time.Now()
	err := c.process(ctx, msg)

	c.metrics.TaskFinished(c.name)
	c.metrics.MessageProcessed(c.name, outcome(err), time.Since(started))
	c.tasks.finish(t, err)
}

// process handles one message while holding a gate slot.
func (c *Consumer[T]) process(ctx context.Context, msg queue.Message) (err error) {
	// Acquire cannot fail with a context that is never cancelled.
	_ = c.gate.Acquire(context.Background(), 1)
	defer c.gate.Release(1)

	defer func() {
		if r := recover(); r != nil {
			perr := &PanicError{MessageID: msg.ID, Value: r, Stack: debug.Stack()}
			c.logger.Errorw("message_processing_panic",
				"message_id", msg.ID,
				"panic", r,
				"stack", string(perr.Stack),
			)
			err = perr
		}
	}()

	ctx = queue.NewContext(ctx, msg)
	c.metrics.MessageReceived(c.name)
	c.logger.Infow("message_received",
		"message_id", msg.ID,
		"approximate_receive_count", msg.ReceiveCount,
	)

	cmd, err := c.decode(msg.Body)
	if err != nil {
		c.logger.Errorw("failed_to_parse_message",
			"message_id", msg.ID,
			"error", err,
		)
		return &DecodeError{MessageID: msg.ID, Err: err}
	}

	if err := c.processor.Execute(ctx, cmd); err != nil {
		c.logger.Errorw("message_processing_exception",
			"message_id", msg.ID,
			"approximate_receive_count", msg.ReceiveCount,
			"error", err,
		)
		return &ProcessingError{MessageID: msg.ID, Err: err}
	}

	if msg.ReceiptHandle == "" {
		c.logger.Warnw("message_without_receipt_handle", "message_id", msg.ID)
		return nil
	}
	if err := c.backend.Delete(ctx, msg.ReceiptHandle); err != nil {
		c.logger.Errorw("message_ack_failed",
			"message_id", msg.ID,
			"error", err,
		)
		return &AckError{MessageID: msg.ID, Err: err}
	}

	c.logger.Debugw("message_processed", "message_id", msg.ID)
	return nil
}

// drain waits for every registered task. The registry is closed by Stop
// before the loop exits, so the snapshot is final.
func (c *Consumer[T]) drain() error {
	pending := c.tasks.snapshot()
	if len(pending) == 0 {
		return nil
	}
	c.logger.Infow("waiting_for_tasks_to_complete",
		"queue", c.name,
		"task_count", len(pending),
	)

	var errs error
	for _, t := range pending {
		<-t.done
		if t.err != nil {
			c.logger.Debugw("drain_task_failed",
				"message_id", t.messageID,
				"error", t.err,
			)
			errs = multierr.Append(errs, t.err)
		}
	}
	return errs
}

func outcome(err error) string {
	var (
		decodeErr *DecodeError
		ackErr    *AckError
		panicErr  *PanicError
	)
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.As(err, &panicErr):
		return metrics.OutcomePanic
	case errors.As(err, &decodeErr):
		return metrics.OutcomeDecodeError
	case errors.As(err, &ackErr):
		return metrics.OutcomeAckError
	default:
		return metrics.OutcomeProcessingError
	}
}
