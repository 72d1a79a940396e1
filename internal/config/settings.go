package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

// Settings holds process configuration. It is built once at startup and
// passed to the components that need it.
type Settings struct {
	// SQS
	SQSQueueURL        string
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSEndpointURL     string // LocalStack and friends

	// Optional sinks for the demo processor
	S3BucketName string
	DatabaseURL  string

	// Worker
	MaxConcurrentMessages int
	WaitTimeSeconds       int
	VisibilityTimeout     int
	MaxNumberOfMessages   int

	// Health check server
	HealthCheckHost string
	HealthCheckPort int

	// Logging
	LogLevel string
	JSONLogs bool

	// Application
	Environment string
	ServiceName string
}

var validLogLevels = map[string]struct{}{
	"CRITICAL": {},
	"ERROR":    {},
	"WARNING":  {},
	"INFO":     {},
	"DEBUG":    {},
}

// Default returns built-in defaults. SQSQueueURL has no default.
func Default() Settings {
	return Settings{
		AWSRegion:             "us-east-1",
		MaxConcurrentMessages: 10,
		WaitTimeSeconds:       20,
		VisibilityTimeout:     30,
		MaxNumberOfMessages:   10,
		HealthCheckHost:       "0.0.0.0",
		HealthCheckPort:       8080,
		LogLevel:              "INFO",
		JSONLogs:              true,
		Environment:           "production",
		ServiceName:           "sqs-worker",
	}
}

// Load reads dotenv files, overlays the environment onto Default and validates
// the result. With no files given, ./.env is read if it exists.
func Load(envFiles ...string) (Settings, error) {
	if err := loadDotEnv(envFiles); err != nil {
		return Settings{}, err
	}

	s := Default()
	if err := FromEnv(&s); err != nil {
		return Settings{}, fmt.Errorf("read environment: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func loadDotEnv(files []string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}
	// godotenv never overrides variables already present in the environment.
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Validate reports every invalid field at once.
func (s Settings) Validate() error {
	var errs error
	if s.SQSQueueURL == "" {
		errs = multierr.Append(errs, errors.New("SQS_QUEUE_URL is required"))
	}
	if s.MaxConcurrentMessages < 1 {
		errs = multierr.Append(errs, fmt.Errorf("MAX_CONCURRENT_MESSAGES must be >= 1, got %d", s.MaxConcurrentMessages))
	}
	if s.WaitTimeSeconds < 0 || s.WaitTimeSeconds > int(MaxWaitTime/time.Second) {
		errs = multierr.Append(errs, fmt.Errorf("WAIT_TIME_SECONDS must be between 0 and %d, got %d", int(MaxWaitTime/time.Second), s.WaitTimeSeconds))
	}
	if s.VisibilityTimeout < 0 || s.VisibilityTimeout > int(MaxVisibilityTimeout/time.Second) {
		errs = multierr.Append(errs, fmt.Errorf("VISIBILITY_TIMEOUT must be between 0 and %d, got %d", int(MaxVisibilityTimeout/time.Second), s.VisibilityTimeout))
	}
	if s.MaxNumberOfMessages < 1 || s.MaxNumberOfMessages > MaxBatchSize {
		errs = multierr.Append(errs, fmt.Errorf("MAX_NUMBER_OF_MESSAGES must be between 1 and %d, got %d", MaxBatchSize, s.MaxNumberOfMessages))
	}
	if s.HealthCheckPort < 1 || s.HealthCheckPort > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("HEALTH_CHECK_PORT must be between 1 and 65535, got %d", s.HealthCheckPort))
	}
	if _, ok := validLogLevels[s.LogLevel]; !ok {
		errs = multierr.Append(errs, fmt.Errorf("LOG_LEVEL must be one of CRITICAL, ERROR, WARNING, INFO, DEBUG, got %q", s.LogLevel))
	}
	return errs
}

// QueueConfig builds the consumer's queue configuration from the settings.
func (s Settings) QueueConfig() (QueueConfig, error) {
	return NewQueueConfig(
		s.SQSQueueURL,
		s.MaxConcurrentMessages,
		s.MaxNumberOfMessages,
		time.Duration(s.WaitTimeSeconds)*time.Second,
		time.Duration(s.VisibilityTimeout)*time.Second,
	)
}

// HealthAddr returns the listen address of the health server.
func (s Settings) HealthAddr() string {
	return net.JoinHostPort(s.HealthCheckHost, strconv.Itoa(s.HealthCheckPort))
}
