// Package inference serializes and prioritizes transcription work against a
// backend that tolerates only one in-flight call.
package inference

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Priority orders queued operations; higher values run first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Status tracks one operation through the queue.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Request is the immutable input of one inference operation.
type Request struct {
	Model     string
	AudioPath string
	Language  string
}

// operation is one queued unit of work, owned exclusively by the coordinator.
// Callers hold only the id.
type operation struct {
	id        string
	req       Request
	priority  Priority
	createdAt time.Time
	seq       uint64

	status Status
	result string
	err    error
	// evict marks an operation whose last waiter gave up; its result is
	// discarded once it resolves instead of lingering in the tracking map.
	evict bool

	done   chan struct{}
	cancel context.CancelFunc
}

func newOperation(req Request, priority Priority, seq uint64) *operation {
	return &operation{
		id:        uuid.NewString(),
		req:       req,
		priority:  priority,
		createdAt: time.Now(),
		seq:       seq,
		status:    StatusPending,
		done:      make(chan struct{}),
	}
}
