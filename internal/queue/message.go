// Package queue adapts Amazon SQS to the fetch/delete contract the consumer
// depends on.
package queue

// Message is one received queue message. ReceiptHandle is the token used to
// delete it; an empty handle means the message cannot be acknowledged.
type Message struct {
	ID                string
	ReceiptHandle     string
	Body              []byte
	ReceiveCount      int
	Attributes        map[string]string
	MessageAttributes map[string]string
}
