package hello

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/goldfish-inc/oceanid/sqs-worker/internal/logging"
	"github.com/goldfish-inc/oceanid/sqs-worker/internal/queue"
)

// Greeting is the record produced for each command.
type Greeting struct {
	CommandID    string    `json:"command_id"`
	Name         string    `json:"name"`
	Message      string    `json:"message"`
	MessageID    string    `json:"message_id,omitempty"`
	ReceiveCount int       `json:"receive_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// GreetingStore persists greetings. Saving the same CommandID twice must be a
// no-op, since messages can be delivered more than once.
type GreetingStore interface {
	SaveGreeting(ctx context.Context, g Greeting) error
}

// GreetingArchive keeps a copy of each greeting outside the database.
type GreetingArchive interface {
	PutGreeting(ctx context.Context, g Greeting) error
}

// SayHello greets the named person. It is safe for concurrent use.
type SayHello struct {
	logger  logging.Logger
	store   GreetingStore
	archive GreetingArchive
	now     func() time.Time
}

type Option func(*SayHello)

func WithStore(s GreetingStore) Option {
	return func(h *SayHello) { h.store = s }
}

func WithArchive(a GreetingArchive) Option {
	return func(h *SayHello) { h.archive = a }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(h *SayHello) { h.now = now }
}

func NewSayHello(logger logging.Logger, opts ...Option) *SayHello {
	if logger == nil {
		logger = logging.NewNop()
	}
	h := &SayHello{logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Greet returns the greeting text for name.
func Greet(name string) string {
	return fmt.Sprintf("Hello, %s!", name)
}

// Execute builds the greeting and hands it to the configured sinks. A sink
// failure is returned so the message is redelivered.
func (h *SayHello) Execute(ctx context.Context, cmd Command) error {
	g := Greeting{
		CommandID:    cmd.ID,
		Name:         cmd.Name,
		Message:      Greet(cmd.Name),
		ReceiveCount: 1,
		CreatedAt:    h.now().UTC(),
	}
	if msg, ok := queue.FromContext(ctx); ok {
		g.MessageID = msg.ID
		g.ReceiveCount = msg.ReceiveCount
	}
	if g.CommandID == "" {
		g.CommandID = g.MessageID
	}
	if g.CommandID == "" {
		g.CommandID = uuid.NewString()
	}

	h.logger.Infow("saying_hello",
		"name", g.Name,
		"command_id", g.CommandID,
		"greeting", g.Message,
	)

	if h.store != nil {
		if err := h.store.SaveGreeting(ctx, g); err != nil {
			return fmt.Errorf("save greeting %s: %w", g.CommandID, err)
		}
	}
	if h.archive != nil {
		if err := h.archive.PutGreeting(ctx, g); err != nil {
			return fmt.Errorf("archive greeting %s: %w", g.CommandID, err)
		}
	}
	return nil
}
