package discord

import (
	"context"
	"sync"

	"github.com/oklahomer/go-kasumi/logger"
)

// Host is the single logical thread on which all bridge state is mutated.
//
// Any goroutine may Post a task; exactly one goroutine consumes them, in posting order,
// via Run or Drain. Post never blocks, so a task may safely post further tasks.
type Host struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	closed bool
}

// NewHost creates a Host with an empty mailbox.
func NewHost() *Host {
	return &Host{
		wake: make(chan struct{}, 1),
	}
}

// Post enqueues the task to run on the Host loop.
// It reports false, dropping the task, once the Host is closed.
func (h *Host) Post(task func()) bool {
	if task == nil {
		return false
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.queue = append(h.queue, task)
	h.mu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
	return true
}

// Close stops accepting tasks. Tasks queued before Close are still run by a following Drain.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}

// complete resolves pending on the Host loop, or right away once nothing runs the loop anymore.
func (h *Host) complete(pending *Pending, err error) {
	if !h.Post(func() { pending.complete(err) }) {
		pending.complete(err)
	}
}

// Do posts fn and blocks until it has run on the Host loop or ctx is done.
// It must not be called from a task running on the loop, since that task would wait on itself.
func (h *Host) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !h.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrClosed
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes posted tasks until ctx is canceled.
func (h *Host) Run(ctx context.Context) error {
	for {
		h.Drain()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.wake:
		}
	}
}

// Drain runs every queued task, including those posted while draining, and returns how many ran.
// It must not be called concurrently with Run.
func (h *Host) Drain() int {
	ran := 0
	for {
		h.mu.Lock()
		batch := h.queue
		h.queue = nil
		h.mu.Unlock()

		if len(batch) == 0 {
			return ran
		}

		for _, task := range batch {
			h.execute(task)
			ran++
		}
	}
}

func (h *Host) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Host task panicked: %+v", r)
		}
	}()
	task()
}
