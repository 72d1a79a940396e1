// Package worker wires configuration, AWS clients, the consumers and the
// health server into a running process.
package worker

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/goldfish-inc/oceanid/sqs-worker/internal/archive"
	"github.com/goldfish-inc/oceanid/sqs-worker/internal/config"
	"github.com/goldfish-inc/oceanid/sqs-worker/internal/consumer"
	"github.com/goldfish-inc/oceanid/sqs-worker/internal/health"
	"github.com/goldfish-inc/oceanid/sqs-worker/internal/hello"
	"github.com/goldfish-inc/oceanid/sqs-worker/internal/logging"
	"github.com/goldfish-inc/oceanid/sqs-worker/internal/metrics"
	"github.com/goldfish-inc/oceanid/sqs-worker/internal/queue"
	"github.com/goldfish-inc/oceanid/sqs-worker/internal/store"
)

// DefaultReadyDelay is how long after launch the service reports ready.
const DefaultReadyDelay = time.Second

type Options struct {
	Settings config.Settings
	Logger   logging.Logger

	// Registry receives the worker metrics and backs /metrics. A fresh
	// registry with Go and process collectors is used when nil.
	Registry *prometheus.Registry

	ReadyDelay time.Duration

	// Overrides for tests. When nil, the SQS backend, Postgres store and S3
	// archive are built from Settings.
	Backend        consumer.Backend
	Store          hello.GreetingStore
	Archive        hello.GreetingArchive
	HealthListener net.Listener
}

// Run starts the consumers and the health server and blocks until ctx is
// cancelled and every consumer has drained. Errors building a dependency are
// returned before anything starts.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	settings := opts.Settings

	logger.Infow("application_starting",
		"service_name", settings.ServiceName,
		"environment", settings.Environment,
	)

	qc, err := settings.QueueConfig()
	if err != nil {
		logger.Errorw("application_error", "error", err)
		return err
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m := metrics.New(reg)

	deps, err := buildDependencies(ctx, opts, qc, logger)
	if err != nil {
		logger.Errorw("application_error", "error", err)
		return err
	}
	defer deps.close()

	var helloOpts []hello.Option
	if deps.store != nil {
		helloOpts = append(helloOpts, hello.WithStore(deps.store))
	}
	if deps.archive != nil {
		helloOpts = append(helloOpts, hello.WithArchive(deps.archive))
	}
	processor := hello.NewSayHello(logger, helloOpts...)

	consumers := []*consumer.Consumer[hello.Command]{
		consumer.New[hello.Command](qc, deps.backend, hello.Decode, processor,
			consumer.WithLogger(logger),
			consumer.WithMetrics(m),
		),
	}
	allHealthy := func() bool {
		for _, c := range consumers {
			if !c.IsHealthy() {
				return false
			}
		}
		return true
	}

	hs := health.NewServer(settings.HealthAddr(), allHealthy, reg, logger)

	readyDelay := opts.ReadyDelay
	if readyDelay <= 0 {
		readyDelay = DefaultReadyDelay
	}

	g, gctx := errgroup.WithContext(context.Background())

	// The health server outlives the signal so probes keep answering while
	// consumers drain.
	healthCtx, stopHealth := context.WithCancel(gctx)
	defer stopHealth()
	g.Go(func() error {
		if opts.HealthListener != nil {
			return hs.Serve(healthCtx, opts.HealthListener)
		}
		return hs.Run(healthCtx)
	})

	for _, c := range consumers {
		c := c
		g.Go(func() error { return c.Start(gctx) })
	}

	g.Go(func() error {
		timer := time.NewTimer(readyDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
			logger.Infow("application_ready")
			hs.MarkReady()
		case <-ctx.Done():
		case <-gctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-ctx.Done():
		case <-gctx.Done():
		}
		logger.Infow("application_shutting_down")
		hs.MarkNotReady()
		for _, c := range consumers {
			c.Stop()
		}
		for _, c := range consumers {
			<-c.Done()
		}
		stopHealth()
		return nil
	})

	err = g.Wait()
	logger.Infow("application_stopped")
	return err
}

type dependencies struct {
	backend consumer.Backend
	store   hello.GreetingStore
	archive hello.GreetingArchive
	close   func()
}

func buildDependencies(ctx context.Context, opts Options, qc config.QueueConfig, logger logging.Logger) (dependencies, error) {
	settings := opts.Settings
	deps := dependencies{
		backend: opts.Backend,
		store:   opts.Store,
		archive: opts.Archive,
		close:   func() {},
	}

	wantArchive := deps.archive == nil && settings.S3BucketName != ""
	if deps.backend == nil || wantArchive {
		awsCfg, err := settings.AWSConfig(ctx)
		if err != nil {
			return deps, err
		}
		if deps.backend == nil {
			client := queue.NewSQSClient(awsCfg, settings.AWSEndpointURL)
			deps.backend = queue.NewSQSBackend(client, qc.QueueURL(), qc.VisibilityTimeout())
		}
		if wantArchive {
			a, err := archive.NewS3(archive.NewS3Client(awsCfg, settings.AWSEndpointURL), settings.S3BucketName)
			if err != nil {
				return deps, err
			}
			deps.archive = a
			logger.Infow("greeting_archive_enabled", "bucket", settings.S3BucketName)
		}
	}

	if deps.store == nil && settings.DatabaseURL != "" {
		pg, err := store.Open(ctx, settings.DatabaseURL)
		if err != nil {
			return deps, fmt.Errorf("open greeting store: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return deps, err
		}
		deps.store = pg
		deps.close = pg.Close
		logger.Infow("greeting_store_enabled")
	}

	return deps, nil
}
