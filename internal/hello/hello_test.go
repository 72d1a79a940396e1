package hello

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goldfish-inc/oceanid/sqs-worker/internal/queue"
)

func TestDecode(t *testing.T) {
	cmd, err := Decode([]byte(`{"id":" 42 ","name":"  World "}`))
	require.NoError(t, err)
	assert.Equal(t, Command{ID: "42", Name: "World"}, cmd)

	cmd, err = Decode([]byte(`{"name":"Ada"}`))
	require.NoError(t, err)
	assert.Equal(t, Command{Name: "Ada"}, cmd)
}

func TestDecodeRejects(t *testing.T) {
	cases := map[string]string{
		"not json":      `hello`,
		"array":         `["World"]`,
		"unknown field": `{"name":"World","extra":1}`,
		"missing name":  `{"id":"1"}`,
		"blank name":    `{"name":"   "}`,
		"null":          `null`,
		"trailing data": `{"name":"World"} garbage`,
		"wrong type":    `{"name":7}`,
		"empty body":    ``,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(body))
			assert.Error(t, err)
		})
	}

	_, err := Decode([]byte(`{}`))
	assert.ErrorIs(t, err, ErrMissingName)
}

func TestGreet(t *testing.T) {
	assert.Equal(t, "Hello, World!", Greet("World"))
}

type memoryStore struct {
	mu    sync.Mutex
	saved []Greeting
	err   error
}

func (m *memoryStore) SaveGreeting(_ context.Context, g Greeting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, g)
	return nil
}

type memoryArchive struct {
	put []Greeting
	err error
}

func (m *memoryArchive) PutGreeting(_ context.Context, g Greeting) error {
	if m.err != nil {
		return m.err
	}
	m.put = append(m.put, g)
	return nil
}

func fixedClock() time.Time {
	return time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
}

func TestSayHelloRecordsGreeting(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	store := &memoryStore{}
	archive := &memoryArchive{}
	h := NewSayHello(zap.New(core).Sugar(), WithStore(store), WithArchive(archive), WithClock(fixedClock))

	ctx := queue.NewContext(context.Background(), queue.Message{ID: "m-1", ReceiveCount: 3})
	require.NoError(t, h.Execute(ctx, Command{Name: "World"}))

	want := Greeting{
		CommandID:    "m-1",
		Name:         "World",
		Message:      "Hello, World!",
		MessageID:    "m-1",
		ReceiveCount: 3,
		CreatedAt:    fixedClock(),
	}
	require.Len(t, store.saved, 1)
	if diff := cmp.Diff(want, store.saved[0]); diff != "" {
		t.Fatalf("stored greeting mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, archive.put, 1)
	assert.Equal(t, want, archive.put[0])

	entries := logs.FilterMessage("saying_hello").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "World", entries[0].ContextMap()["name"])
	assert.Equal(t, "Hello, World!", entries[0].ContextMap()["greeting"])
}

func TestSayHelloPrefersCommandID(t *testing.T) {
	store := &memoryStore{}
	h := NewSayHello(nil, WithStore(store))

	ctx := queue.NewContext(context.Background(), queue.Message{ID: "m-1", ReceiveCount: 1})
	require.NoError(t, h.Execute(ctx, Command{ID: "cmd-9", Name: "Ada"}))
	require.Len(t, store.saved, 1)
	assert.Equal(t, "cmd-9", store.saved[0].CommandID)
	assert.Equal(t, "m-1", store.saved[0].MessageID)
}

func TestSayHelloGeneratesIDWithoutMessage(t *testing.T) {
	store := &memoryStore{}
	h := NewSayHello(nil, WithStore(store))

	require.NoError(t, h.Execute(context.Background(), Command{Name: "Ada"}))
	require.Len(t, store.saved, 1)
	assert.NotEmpty(t, store.saved[0].CommandID)
	assert.Equal(t, 1, store.saved[0].ReceiveCount)
}

func TestSayHelloWithoutSinks(t *testing.T) {
	h := NewSayHello(nil)
	assert.NoError(t, h.Execute(context.Background(), Command{Name: "World"}))
}

func TestSayHelloPropagatesSinkErrors(t *testing.T) {
	cause := errors.New("connection reset")

	h := NewSayHello(nil, WithStore(&memoryStore{err: cause}))
	err := h.Execute(context.Background(), Command{ID: "1", Name: "World"})
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "save greeting 1")

	archive := &memoryArchive{err: cause}
	store := &memoryStore{}
	h = NewSayHello(nil, WithStore(store), WithArchive(archive))
	err = h.Execute(context.Background(), Command{ID: "2", Name: "World"})
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "archive greeting 2")
	assert.Len(t, store.saved, 1, "store write happens before archive")
}
