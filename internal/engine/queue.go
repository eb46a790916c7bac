package engine

import (
	"context"
	"log/slog"
	"sync"
)

// Result is delivered for every submitted command.
type Result struct {
	Outcome Outcome
	Err     error
}

type submission struct {
	ctx  context.Context
	cmd  Command
	done chan Result
}

// commandQueue is a thread-safe FIFO of submitted commands.
//
// The queue is unbounded so submitters such as oracle callbacks never
// block on a busy engine. A buffered signal channel wakes the Run loop.
type commandQueue struct {
	mu     sync.Mutex
	items  []submission
	closed bool
	signal chan struct{} // Signals availability (buffered, size 1)
}

func newCommandQueue() *commandQueue {
	return &commandQueue{
		items:  make([]submission, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// enqueue adds a submission. Returns false if the queue is closed.
func (q *commandQueue) enqueue(s submission) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, s)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// tryDequeue removes the front submission without blocking.
func (q *commandQueue) tryDequeue() (submission, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return submission{}, false
	}
	s := q.items[0]
	q.items[0] = submission{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return s, true
}

func (q *commandQueue) wait() <-chan struct{} {
	return q.signal
}

func (q *commandQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// close stops new submissions and wakes the Run loop.
func (q *commandQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Submit queues cmd for the Run loop and returns a channel that receives
// its result. Returns false if the engine has been stopped.
func (e *Engine) Submit(ctx context.Context, cmd Command) (<-chan Result, bool) {
	done := make(chan Result, 1)
	if !e.queue.enqueue(submission{ctx: ctx, cmd: cmd, done: done}) {
		return nil, false
	}
	return done, true
}

// QueueLen returns the number of submitted commands not yet executed.
func (e *Engine) QueueLen() int {
	return e.queue.len()
}

// Run executes submitted commands in submission order until ctx is
// cancelled or Stop is called. Rejections are delivered to the submitter
// and logged; the loop keeps going. On cancellation, commands not yet
// started receive the context error.
//
// Must be called from exactly one goroutine.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting")

	for {
		if ctx.Err() != nil {
			return e.abandon(ctx)
		}
		if s, ok := e.queue.tryDequeue(); ok {
			out, err := e.Execute(s.ctx, s.cmd)
			if err != nil && !IsRejected(err) {
				slog.Error("command failed",
					"action", s.cmd.Action,
					"campaign", s.cmd.Campaign,
					"caller", s.cmd.Caller,
					"error", err,
				)
			}
			s.done <- Result{Outcome: out, Err: err}
			continue
		}

		select {
		case <-ctx.Done():
			return e.abandon(ctx)

		case <-e.queue.wait():
			// The signal channel closes when the queue is closed.
			if e.queue.len() == 0 {
				e.queue.mu.Lock()
				closed := e.queue.closed
				e.queue.mu.Unlock()
				if closed {
					slog.Info("engine stopping: queue closed")
					return nil
				}
			}
		}
	}
}

// abandon closes the queue and fails every submission still waiting in it
// with the context error, so no submitter blocks on its result channel.
func (e *Engine) abandon(ctx context.Context) error {
	e.queue.close()
	dropped := 0
	for {
		s, ok := e.queue.tryDequeue()
		if !ok {
			break
		}
		s.done <- Result{Err: ctx.Err()}
		dropped++
	}
	slog.Info("engine stopping: context cancelled", "dropped", dropped)
	return ctx.Err()
}

// Stop closes the queue; Run returns once it has drained.
func (e *Engine) Stop() {
	e.queue.close()
}
