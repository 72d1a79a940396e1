package queue

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// NewSQSClient builds an SQS client from awsCfg. A non-empty endpoint points
// the client at LocalStack or another SQS-compatible service.
func NewSQSClient(awsCfg aws.Config, endpoint string) *sqs.Client {
	var opts []func(*sqs.Options)
	if endpoint != "" {
		opts = append(opts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	return sqs.NewFromConfig(awsCfg, opts...)
}
