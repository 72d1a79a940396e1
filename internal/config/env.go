package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/multierr"
)

// FromEnv overlays environment variables onto s. Each setting accepts a list
// of aliases; the first one set wins. Unparseable values are reported, not
// replaced by defaults.
func FromEnv(s *Settings) error {
	var errs error

	setString(&s.SQSQueueURL, "SQS_QUEUE_URL", "QUEUE_URL")
	setString(&s.AWSRegion, "AWS_REGION", "AWS_DEFAULT_REGION", "REGION")
	setString(&s.AWSAccessKeyID, "AWS_ACCESS_KEY_ID", "AWS_ACCESS_KEY")
	setString(&s.AWSSecretAccessKey, "AWS_SECRET_ACCESS_KEY", "AWS_SECRET_KEY")
	setString(&s.AWSEndpointURL, "AWS_ENDPOINT_URL", "SQS_ENDPOINT", "ENDPOINT_URL")
	setString(&s.S3BucketName, "S3_BUCKET_NAME")
	setString(&s.DatabaseURL, "DATABASE_URL")

	errs = multierr.Append(errs, setInt(&s.MaxConcurrentMessages, "MAX_CONCURRENT_MESSAGES"))
	errs = multierr.Append(errs, setInt(&s.WaitTimeSeconds, "WAIT_TIME_SECONDS"))
	errs = multierr.Append(errs, setInt(&s.VisibilityTimeout, "VISIBILITY_TIMEOUT"))
	errs = multierr.Append(errs, setInt(&s.MaxNumberOfMessages, "MAX_NUMBER_OF_MESSAGES"))

	setString(&s.HealthCheckHost, "HEALTH_CHECK_HOST")
	errs = multierr.Append(errs, setInt(&s.HealthCheckPort, "HEALTH_CHECK_PORT"))

	if v, _, ok := lookupEnv("LOG_LEVEL"); ok {
		s.LogLevel = strings.ToUpper(v)
	}
	errs = multierr.Append(errs, setBool(&s.JSONLogs, "JSON_LOGS", "STRUCTURED_LOGS"))

	setString(&s.Environment, "ENVIRONMENT", "ENV", "APP_ENV")
	setString(&s.ServiceName, "SERVICE_NAME", "SERVICE", "APP_NAME")

	return errs
}

// lookupEnv returns the first non-empty value among keys and the key it came from.
func lookupEnv(keys ...string) (string, string, bool) {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value, key, true
		}
	}
	return "", "", false
}

func setString(dst *string, keys ...string) {
	if v, _, ok := lookupEnv(keys...); ok {
		*dst = v
	}
}

func setInt(dst *int, keys ...string) error {
	v, key, ok := lookupEnv(keys...)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid integer for %s: %q", key, v)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, keys ...string) error {
	v, key, ok := lookupEnv(keys...)
	if !ok {
		return nil
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	default:
		return fmt.Errorf("invalid boolean for %s: %q", key, v)
	}
	return nil
}
