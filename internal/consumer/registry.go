package consumer

import (
	"sync"

	"github.com/google/uuid"
)

type task struct {
	id        uuid.UUID
	messageID string
	done      chan struct{}
	err       error // set before done is closed
}

// registry tracks spawned tasks until they finish. Once closed it refuses new
// tasks, so a drain that snapshots it after closing sees every task that
// will ever run.
type registry struct {
	mu     sync.Mutex
	closed bool
	tasks  map[uuid.UUID]*task
}

func newRegistry() *registry {
	return &registry{tasks: make(map[uuid.UUID]*task)}
}

func (r *registry) add(messageID string) (*task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false
	}
	t := &task{
		id:        uuid.New(),
		messageID: messageID,
		done:      make(chan struct{}),
	}
	r.tasks[t.id] = t
	return t, true
}

func (r *registry) finish(t *task, err error) {
	t.err = err
	r.mu.Lock()
	delete(r.tasks, t.id)
	r.mu.Unlock()
	close(t.done)
}

func (r *registry) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *registry) snapshot() []*task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	return out
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}
