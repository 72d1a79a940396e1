// Package archive writes greetings to S3 as JSON documents.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/goldfish-inc/oceanid/sqs-worker/internal/hello"
)

// S3API is the subset of *s3.Client used by S3.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 archives greetings under greetings/YYYY/MM/DD/<command id>.json. Keys
// are derived from the command ID, so a redelivered message overwrites its
// own object.
type S3 struct {
	client S3API
	bucket string
}

func NewS3(client S3API, bucket string) (*S3, error) {
	if client == nil {
		return nil, errors.New("s3 client not initialized")
	}
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	return &S3{client: client, bucket: bucket}, nil
}

// NewS3Client builds an S3 client. A non-empty endpoint switches to path-style
// addressing for MinIO and LocalStack.
func NewS3Client(awsCfg aws.Config, endpoint string) *s3.Client {
	var opts []func(*s3.Options)
	if endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, opts...)
}

// Key returns the object key for g.
func Key(g hello.Greeting) string {
	return fmt.Sprintf("greetings/%s/%s.json", g.CreatedAt.UTC().Format("2006/01/02"), g.CommandID)
}

func (a *S3) PutGreeting(ctx context.Context, g hello.Greeting) error {
	body, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal greeting: %w", err)
	}

	key := Key(g)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"source":        "sqs-worker",
			"command-id":    g.CommandID,
			"message-id":    g.MessageID,
			"receive-count": strconv.Itoa(g.ReceiveCount),
			"archived-at":   time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload greeting to s3://%s/%s: %w", a.bucket, key, err)
	}
	return nil
}
