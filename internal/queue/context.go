package queue

import "context"

type messageKey struct{}

// NewContext returns a copy of ctx carrying msg. The consumer attaches the
// message being processed so processors can read its ID and receive count.
func NewContext(ctx context.Context, msg Message) context.Context {
	return context.WithValue(ctx, messageKey{}, msg)
}

// FromContext returns the message stored by NewContext, if any.
func FromContext(ctx context.Context) (Message, bool) {
	msg, ok := ctx.Value(messageKey{}).(Message)
	return msg, ok
}
