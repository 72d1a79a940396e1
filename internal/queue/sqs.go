package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSAPI is the subset of *sqs.Client used by SQSBackend.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSBackend receives and deletes messages on a single queue.
type SQSBackend struct {
	client            SQSAPI
	queueURL          string
	visibilityTimeout time.Duration
}

// NewSQSBackend binds client to queueURL. A zero visibilityTimeout leaves the
// queue's own default in effect.
func NewSQSBackend(client SQSAPI, queueURL string, visibilityTimeout time.Duration) *SQSBackend {
	return &SQSBackend{
		client:            client,
		queueURL:          queueURL,
		visibilityTimeout: visibilityTimeout,
	}
}

// QueueURL returns the queue this backend is bound to.
func (b *SQSBackend) QueueURL() string { return b.queueURL }

// Fetch long-polls for up to maxMessages, waiting at most wait. Sub-second
// waits are truncated to whole seconds.
func (b *SQSBackend) Fetch(ctx context.Context, maxMessages int32, wait time.Duration) ([]Message, error) {
	input := &sqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(b.queueURL),
		MaxNumberOfMessages:         maxMessages,
		WaitTimeSeconds:             int32(wait / time.Second),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameAll},
		MessageAttributeNames:       []string{"All"},
	}
	if b.visibilityTimeout > 0 {
		input.VisibilityTimeout = int32(b.visibilityTimeout / time.Second)
	}

	out, err := b.client.ReceiveMessage(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("receive messages from %s: %w", b.queueURL, err)
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		messages = append(messages, fromSQS(m))
	}
	return messages, nil
}

// Delete acknowledges the message identified by receiptHandle.
func (b *SQSBackend) Delete(ctx context.Context, receiptHandle string) error {
	_, err := b.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(b.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("delete message from %s: %w", b.queueURL, err)
	}
	return nil
}

func fromSQS(m types.Message) Message {
	msg := Message{
		ID:            aws.ToString(m.MessageId),
		ReceiptHandle: aws.ToString(m.ReceiptHandle),
		Body:          []byte(aws.ToString(m.Body)),
		ReceiveCount:  1,
		Attributes:    m.Attributes,
	}
	if raw, ok := m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 1 {
			msg.ReceiveCount = n
		}
	}
	if len(m.MessageAttributes) > 0 {
		msg.MessageAttributes = make(map[string]string, len(m.MessageAttributes))
		for k, v := range m.MessageAttributes {
			msg.MessageAttributes[k] = aws.ToString(v.StringValue)
		}
	}
	return msg
}
