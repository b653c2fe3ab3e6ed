package inference

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
)

var (
	// ErrNotFound indicates the operation id is unknown or already consumed.
	ErrNotFound = errors.New("operation not found")
	// ErrCancelled indicates the operation was cancelled before completion.
	ErrCancelled = errors.New("operation cancelled")
)

// Runner executes one inference pass. The coordinator guarantees at most one
// in-flight Transcribe call at any time.
type Runner interface {
	Transcribe(ctx context.Context, req Request) (string, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(context.Context, Request) (string, error)

func (f RunnerFunc) Transcribe(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Coordinator owns the inference queue: priority-ordered pending operations,
// FIFO within equal priority, and exactly one processing slot.
type Coordinator struct {
	logger *slog.Logger
	runner Runner

	mu         sync.Mutex
	pending    []*operation
	ops        map[string]*operation
	processing *operation
	seq        uint64
}

// NewCoordinator builds a coordinator over the given runner.
func NewCoordinator(logger *slog.Logger, runner Runner) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Coordinator{
		logger: logger,
		runner: runner,
		ops:    make(map[string]*operation),
	}
}

// Submit enqueues an operation and returns its id. The queue advances
// immediately when the processing slot is free.
func (c *Coordinator) Submit(req Request, priority Priority) string {
	c.mu.Lock()
	c.seq++
	op := newOperation(req, priority, c.seq)
	c.ops[op.id] = op
	c.pending = append(c.pending, op)
	sort.SliceStable(c.pending, func(i, j int) bool {
		if c.pending[i].priority != c.pending[j].priority {
			return c.pending[i].priority > c.pending[j].priority
		}
		return c.pending[i].seq < c.pending[j].seq
	})
	c.mu.Unlock()

	c.logger.Debug("operation submitted", "id", op.id, "model", req.Model, "priority", priority.String())
	c.dispatch()
	return op.id
}

// Await blocks until the operation resolves and returns its transcript.
// The operation is released once its result is consumed; a waiter that gives
// up marks the operation for eviction so abandoned results do not accumulate.
func (c *Coordinator) Await(ctx context.Context, id string) (string, error) {
	c.mu.Lock()
	op, ok := c.ops[id]
	if ok {
		op.evict = false
	}
	c.mu.Unlock()
	if !ok {
		return "", ErrNotFound
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		if terminal(op.status) {
			delete(c.ops, id)
		} else {
			op.evict = true
		}
		c.mu.Unlock()
		return "", ctx.Err()
	case <-op.done:
	}

	c.mu.Lock()
	delete(c.ops, id)
	status, result, err := op.status, op.result, op.err
	c.mu.Unlock()

	switch status {
	case StatusCancelled:
		return "", ErrCancelled
	case StatusFailed:
		return "", err
	default:
		return result, nil
	}
}

// Status reports the current status of an operation.
func (c *Coordinator) Status(id string) (Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	op, ok := c.ops[id]
	if !ok {
		return "", false
	}
	return op.status, true
}

// Cancel removes a pending operation; for the in-flight operation it signals
// cooperative cancellation instead of a hard kill.
func (c *Coordinator) Cancel(id string) error {
	c.mu.Lock()
	op, ok := c.ops[id]
	if !ok {
		c.mu.Unlock()
		return ErrNotFound
	}

	switch op.status {
	case StatusPending:
		c.removePendingLocked(op)
		op.status = StatusCancelled
		close(op.done)
		if op.evict {
			delete(c.ops, op.id)
		}
		c.mu.Unlock()
		c.logger.Debug("pending operation cancelled", "id", id)
		return nil
	case StatusProcessing:
		op.status = StatusCancelled
		cancel := op.cancel
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		c.logger.Debug("in-flight operation cancel requested", "id", id)
		return nil
	default:
		c.mu.Unlock()
		return nil
	}
}

// CancelAll marks the in-flight operation cancelled, clears the pending queue,
// and resets the processing slot to idle. Used for global session cancellation.
func (c *Coordinator) CancelAll() {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	for _, op := range pending {
		op.status = StatusCancelled
		close(op.done)
		if op.evict {
			delete(c.ops, op.id)
		}
	}

	var cancel context.CancelFunc
	if c.processing != nil {
		c.processing.status = StatusCancelled
		cancel = c.processing.cancel
	}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if len(pending) > 0 || cancel != nil {
		c.logger.Info("all inference operations cancelled", "pending_cleared", len(pending))
	}
}

// PendingCount reports queue depth, excluding the processing slot.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Processing reports whether the processing slot is occupied.
func (c *Coordinator) Processing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processing != nil
}

// dispatch starts the highest-priority pending operation when the slot is free.
func (c *Coordinator) dispatch() {
	c.mu.Lock()
	if c.processing != nil || len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}

	op := c.pending[0]
	c.pending = c.pending[1:]
	op.status = StatusProcessing
	ctx, cancel := context.WithCancel(context.Background())
	op.cancel = cancel
	c.processing = op
	c.mu.Unlock()

	go c.run(ctx, op)
}

// run executes one operation and advances the queue regardless of outcome.
func (c *Coordinator) run(ctx context.Context, op *operation) {
	result, err := c.runner.Transcribe(ctx, op.req)

	c.mu.Lock()
	if op.status == StatusCancelled {
		// Cancelled mid-flight; discard whatever the runner returned.
	} else if err != nil {
		op.status = StatusFailed
		op.err = err
	} else {
		op.status = StatusCompleted
		op.result = result
	}
	close(op.done)
	if op.evict {
		delete(c.ops, op.id)
	}
	if c.processing == op {
		c.processing = nil
	}
	finalStatus := op.status
	c.mu.Unlock()

	if finalStatus == StatusFailed {
		c.logger.Warn("operation failed", "id", op.id, "model", op.req.Model, "error", err.Error())
	}

	c.dispatch()
}

// terminal reports whether a status will never change again.
func terminal(s Status) bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// removePendingLocked drops one operation from the pending queue.
func (c *Coordinator) removePendingLocked(target *operation) {
	for i, op := range c.pending {
		if op == target {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}
