package consumer

import (
	"errors"
	"fmt"
)

// ErrAlreadyStarted is returned by Start when the consumer has already run.
var ErrAlreadyStarted = errors.New("consumer already started")

// DecodeError reports a message body that could not be turned into a command.
// The message is left on the queue.
type DecodeError struct {
	MessageID string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode message %s: %v", e.MessageID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ProcessingError reports a processor failure. The message is left on the queue.
type ProcessingError struct {
	MessageID string
	Err       error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("process message %s: %v", e.MessageID, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// AckError reports a failed delete after successful processing. The message
// will be redelivered and processed again.
type AckError struct {
	MessageID string
	Err       error
}

func (e *AckError) Error() string {
	return fmt.Sprintf("acknowledge message %s: %v", e.MessageID, e.Err)
}

func (e *AckError) Unwrap() error { return e.Err }

// FetchError reports a failed receive call. The loop backs off and retries.
type FetchError struct {
	Queue string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch messages from %s: %v", e.Queue, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PanicError carries a panic recovered inside a processing task.
type PanicError struct {
	MessageID string
	Value     any
	Stack     []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic while handling message %s: %v", e.MessageID, e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
