package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/goldfish-inc/oceanid/sqs-worker/internal/config"
	"github.com/goldfish-inc/oceanid/sqs-worker/internal/logging"
	"github.com/goldfish-inc/oceanid/sqs-worker/internal/worker"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		envFile  string
		logLevel string
		jsonLogs bool
	)

	cmd := &cobra.Command{
		Use:          "sqs-worker",
		Short:        "Consume an SQS queue and greet whoever each message names",
		Long:         "sqs-worker long-polls an SQS queue, processes messages concurrently up to MAX_CONCURRENT_MESSAGES and serves health probes on HEALTH_CHECK_HOST:HEALTH_CHECK_PORT.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Flags win over the environment and .env files.
			if cmd.Flags().Changed("log-level") {
				_ = os.Setenv("LOG_LEVEL", logLevel)
			}
			if cmd.Flags().Changed("json-logs") {
				_ = os.Setenv("JSON_LOGS", strconv.FormatBool(jsonLogs))
			}

			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			settings, err := config.Load(files...)
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}

			logger, err := logging.New(logging.Options{
				Level:       settings.LogLevel,
				JSON:        settings.JSONLogs,
				Service:     settings.ServiceName,
				Environment: settings.Environment,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return worker.Run(ctx, worker.Options{
				Settings: settings,
				Logger:   logger,
			})
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to a .env file (default: ./.env when present)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: CRITICAL|ERROR|WARNING|INFO|DEBUG (overrides LOG_LEVEL)")
	cmd.Flags().BoolVar(&jsonLogs, "json-logs", true, "Emit JSON logs (overrides JSON_LOGS)")
	return cmd
}
