package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/multierr"
)

var allKeys = []string{
	"SQS_QUEUE_URL", "QUEUE_URL",
	"AWS_REGION", "AWS_DEFAULT_REGION", "REGION",
	"AWS_ACCESS_KEY_ID", "AWS_ACCESS_KEY",
	"AWS_SECRET_ACCESS_KEY", "AWS_SECRET_KEY",
	"AWS_ENDPOINT_URL", "SQS_ENDPOINT", "ENDPOINT_URL",
	"S3_BUCKET_NAME", "DATABASE_URL",
	"MAX_CONCURRENT_MESSAGES", "WAIT_TIME_SECONDS", "VISIBILITY_TIMEOUT", "MAX_NUMBER_OF_MESSAGES",
	"HEALTH_CHECK_HOST", "HEALTH_CHECK_PORT",
	"LOG_LEVEL", "JSON_LOGS", "STRUCTURED_LOGS",
	"ENVIRONMENT", "ENV", "APP_ENV",
	"SERVICE_NAME", "SERVICE", "APP_NAME",
}

// unsetEnv removes keys for the duration of the test. godotenv treats a key
// set to "" as present, so t.Setenv(key, "") is not enough.
func unsetEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		prev, had := os.LookupEnv(key)
		_ = os.Unsetenv(key)
		t.Cleanup(func() {
			if had {
				_ = os.Setenv(key, prev)
			} else {
				_ = os.Unsetenv(key)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetEnv(t)
	t.Setenv("SQS_QUEUE_URL", "http://localhost:4566/000000000000/hello")

	got, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := Default()
	want.SQSQueueURL = "http://localhost:4566/000000000000/hello"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("settings mismatch (-want +got):\n%s", diff)
	}
	if got.HealthAddr() != "0.0.0.0:8080" {
		t.Fatalf("unexpected health addr %q", got.HealthAddr())
	}
}

func TestLoadAliases(t *testing.T) {
	unsetEnv(t)
	t.Setenv("QUEUE_URL", "https://sqs.eu-west-1.amazonaws.com/123/jobs")
	t.Setenv("AWS_DEFAULT_REGION", "eu-west-1")
	t.Setenv("SQS_ENDPOINT", "http://localstack:4566")
	t.Setenv("AWS_ACCESS_KEY", "test")
	t.Setenv("AWS_SECRET_KEY", "secret")
	t.Setenv("STRUCTURED_LOGS", "false")
	t.Setenv("APP_ENV", "staging")
	t.Setenv("APP_NAME", "hello-worker")
	t.Setenv("LOG_LEVEL", " debug ")
	t.Setenv("MAX_CONCURRENT_MESSAGES", "3")
	t.Setenv("WAIT_TIME_SECONDS", "0")

	got, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := Default()
	want.SQSQueueURL = "https://sqs.eu-west-1.amazonaws.com/123/jobs"
	want.AWSRegion = "eu-west-1"
	want.AWSEndpointURL = "http://localstack:4566"
	want.AWSAccessKeyID = "test"
	want.AWSSecretAccessKey = "secret"
	want.JSONLogs = false
	want.Environment = "staging"
	want.ServiceName = "hello-worker"
	want.LogLevel = "DEBUG"
	want.MaxConcurrentMessages = 3
	want.WaitTimeSeconds = 0
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("settings mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPrefersFirstAlias(t *testing.T) {
	unsetEnv(t)
	t.Setenv("SQS_QUEUE_URL", "primary")
	t.Setenv("QUEUE_URL", "secondary")

	got, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.SQSQueueURL != "primary" {
		t.Fatalf("expected primary alias to win, got %q", got.SQSQueueURL)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	unsetEnv(t)
	t.Setenv("SQS_QUEUE_URL", "q")
	t.Setenv("MAX_CONCURRENT_MESSAGES", "ten")
	t.Setenv("JSON_LOGS", "maybe")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error for malformed values")
	}
	if !strings.Contains(err.Error(), "MAX_CONCURRENT_MESSAGES") || !strings.Contains(err.Error(), "JSON_LOGS") {
		t.Fatalf("expected both keys in error, got %v", err)
	}
}

func TestValidateReportsEveryViolation(t *testing.T) {
	s := Default()
	s.MaxConcurrentMessages = 0
	s.WaitTimeSeconds = 21
	s.VisibilityTimeout = -1
	s.MaxNumberOfMessages = 11
	s.HealthCheckPort = 70000
	s.LogLevel = "TRACE"

	err := s.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	// missing queue url + six invalid fields
	if n := len(multierr.Errors(err)); n != 7 {
		t.Fatalf("expected 7 violations, got %d: %v", n, err)
	}
}

func TestLoadEnvFile(t *testing.T) {
	unsetEnv(t)
	path := filepath.Join(t.TempDir(), "worker.env")
	content := "SQS_QUEUE_URL=http://localhost:4566/000000000000/from-file\nMAX_NUMBER_OF_MESSAGES=5\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	// Real environment wins over the file.
	t.Setenv("MAX_NUMBER_OF_MESSAGES", "2")

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.SQSQueueURL != "http://localhost:4566/000000000000/from-file" {
		t.Fatalf("queue url not read from file: %q", got.SQSQueueURL)
	}
	if got.MaxNumberOfMessages != 2 {
		t.Fatalf("expected environment to override file, got %d", got.MaxNumberOfMessages)
	}
}

func TestLoadMissingEnvFile(t *testing.T) {
	unsetEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err == nil {
		t.Fatalf("expected error for missing explicit env file")
	}
}

func TestSettingsQueueConfig(t *testing.T) {
	s := Default()
	s.SQSQueueURL = "q"
	s.WaitTimeSeconds = 5
	s.VisibilityTimeout = 60

	qc, err := s.QueueConfig()
	if err != nil {
		t.Fatalf("queue config: %v", err)
	}
	if qc.QueueURL() != "q" || qc.MaxConcurrentMessages() != 10 || qc.MaxBatchSize() != 10 {
		t.Fatalf("unexpected queue config: %+v", qc)
	}
	if qc.WaitTime() != 5*time.Second || qc.VisibilityTimeout() != time.Minute {
		t.Fatalf("unexpected durations: wait=%s visibility=%s", qc.WaitTime(), qc.VisibilityTimeout())
	}
}

func TestNewQueueConfigRejectsOutOfRange(t *testing.T) {
	cases := []struct {
		name       string
		url        string
		concurrent int
		batch      int
		wait       time.Duration
		visibility time.Duration
	}{
		{"empty url", "", 1, 1, 0, 0},
		{"zero concurrency", "q", 0, 1, 0, 0},
		{"batch above cap", "q", 1, 11, 0, 0},
		{"zero batch", "q", 1, 0, 0, 0},
		{"wait above cap", "q", 1, 1, 21 * time.Second, 0},
		{"negative wait", "q", 1, 1, -time.Second, 0},
		{"negative visibility", "q", 1, 1, 0, -time.Second},
		{"visibility above cap", "q", 1, 1, 0, 13 * time.Hour},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewQueueConfig(tc.url, tc.concurrent, tc.batch, tc.wait, tc.visibility); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestNewQueueConfigAcceptsBounds(t *testing.T) {
	qc, err := NewQueueConfig("q", 1, MaxBatchSize, MaxWaitTime, MaxVisibilityTimeout)
	if err != nil {
		t.Fatalf("unexpected error at bounds: %v", err)
	}
	if qc.MaxBatchSize() != MaxBatchSize || qc.WaitTime() != MaxWaitTime {
		t.Fatalf("values were altered: %+v", qc)
	}
}

func TestAWSConfigStaticCredentials(t *testing.T) {
	s := Default()
	s.AWSRegion = "eu-central-1"
	s.AWSAccessKeyID = "AKIDEXAMPLE"
	s.AWSSecretAccessKey = "secret"

	cfg, err := s.AWSConfig(context.Background())
	if err != nil {
		t.Fatalf("aws config: %v", err)
	}
	if cfg.Region != "eu-central-1" {
		t.Fatalf("unexpected region %q", cfg.Region)
	}
	creds, err := cfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("retrieve credentials: %v", err)
	}
	if creds.AccessKeyID != "AKIDEXAMPLE" || creds.SecretAccessKey != "secret" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
}
