package announce

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueClosed is returned when operations are attempted on a closed queue.
	ErrQueueClosed = errors.New("announcement queue is closed")

	// ErrQueueRunning is returned when Run is called on a queue that already
	// has a worker.
	ErrQueueRunning = errors.New("announcement queue worker already running")
)

// DispatchError records a failed backend call. It is logged and counted by
// the queue and never surfaced to callers of Enqueue.
type DispatchError struct {
	Item Item
	Err  error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s: %v", e.Item, e.Err)
}

// Unwrap returns the underlying backend error.
func (e *DispatchError) Unwrap() error {
	return e.Err
}
