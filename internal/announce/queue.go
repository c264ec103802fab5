package announce

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/live-announcer/internal/observe"
)

// Default queue configuration.
const (
	DefaultCapacity = 50
	DefaultCooldown = 1200 * time.Millisecond
)

// Config configures a Queue.
type Config struct {
	// Capacity is the maximum number of pending items. When full, the oldest
	// pending item is evicted to make room for the newest.
	Capacity int

	// Cooldown is held after every sound item before the output is considered
	// free. Clip players report completion before short clips finish playing.
	// Zero disables it.
	Cooldown time.Duration

	// Mute suppresses enqueues while it reports true. Optional.
	Mute MuteState

	Logger  *log.Logger
	Metrics *observe.Metrics
}

// Stats tracks queue counters.
type Stats struct {
	TotalEnqueued   int64
	TotalDispatched int64
	TotalFailed     int64
	TotalEvicted    int64
	TotalMuted      int64
	TotalDiscarded  int64
	CurrentSize     int
	PeakSize        int
	LastEnqueue     time.Time
	LastDispatch    time.Time
}

// Queue is a bounded FIFO of announcements drained by a single worker.
//
// Enqueue never blocks. Run owns the backend: it pops one item at a time,
// dispatches it, holds the cooldown for sounds and only then takes the next
// item, so at most one backend call is outstanding at any instant.
type Queue struct {
	backend  Backend
	capacity int
	cooldown time.Duration
	mute     MuteState
	logger   *log.Logger
	metrics  *observe.Metrics

	mu       sync.Mutex
	notEmpty *sync.Cond
	settled  *sync.Cond

	items    []Item
	speaking bool
	running  bool
	closed   bool
	done     chan struct{}
	stats    Stats
}

// NewQueue creates a queue that dispatches to backend. Call Run to start
// draining it.
func NewQueue(backend Backend, cfg Config) *Queue {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("queue")
	}

	q := &Queue{
		backend:  backend,
		capacity: cfg.Capacity,
		cooldown: cfg.Cooldown,
		mute:     cfg.Mute,
		logger:   logger,
		metrics:  cfg.Metrics,
		items:    make([]Item, 0, cfg.Capacity),
		done:     make(chan struct{}),
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.settled = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends item and wakes the worker. A muted or closed queue drops
// the item silently. Reports whether the item was accepted.
func (q *Queue) Enqueue(item Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if q.mute != nil && q.mute.Muted() {
		q.stats.TotalMuted++
		q.metrics.RecordDropped("muted", 1)
		return false
	}

	if len(q.items) >= q.capacity {
		evicted := q.items[0]
		copy(q.items, q.items[1:])
		q.items[len(q.items)-1] = Item{}
		q.items = q.items[:len(q.items)-1]
		q.stats.TotalEvicted++
		q.metrics.RecordDropped("evicted", 1)
		q.metrics.RecordDequeued(1)
		q.logger.Debug("Queue full, evicted oldest announcement", "item", evicted)
	}

	q.items = append(q.items, item)
	q.stats.TotalEnqueued++
	q.stats.LastEnqueue = time.Now()
	if len(q.items) > q.stats.PeakSize {
		q.stats.PeakSize = len(q.items)
	}
	q.metrics.RecordEnqueued(item.Kind.String())

	q.notEmpty.Signal()
	return true
}

// Run drains the queue until ctx is cancelled or the queue is closed. Only
// one Run may be active per queue.
func (q *Queue) Run(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if q.running {
		q.mu.Unlock()
		return ErrQueueRunning
	}
	q.running = true
	q.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = q.Close() })
	defer stop()

	for {
		item, ok := q.next()
		if !ok {
			return nil
		}
		err := q.dispatch(ctx, item)
		q.finish(err)
	}
}

// next blocks until an item is available, then marks the output as taken.
func (q *Queue) next() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if q.closed {
		q.running = false
		q.settled.Broadcast()
		return Item{}, false
	}

	item := q.items[0]
	copy(q.items, q.items[1:])
	q.items[len(q.items)-1] = Item{}
	q.items = q.items[:len(q.items)-1]

	q.speaking = true
	q.metrics.RecordDequeued(1)
	return item, true
}

// dispatch renders item. Failures are logged and never retried.
func (q *Queue) dispatch(ctx context.Context, item Item) error {
	start := time.Now()
	var err error

	switch item.Kind {
	case KindSpeech:
		err = q.backend.Speak(ctx, item.Text)
	case KindSound:
		err = q.backend.PlayClip(ctx, item.Clip)
		q.hold(ctx)
	}

	q.metrics.RecordDispatch(item.Kind.String(), time.Since(start), err)
	if err != nil {
		derr := &DispatchError{Item: item, Err: err}
		q.logger.Error("Announcement dispatch failed", "error", derr)
		return derr
	}
	q.logger.Debug("Announcement dispatched", "item", item, "duration", time.Since(start))
	return nil
}

// hold waits out the post-clip cooldown. Only shutdown cuts it short.
func (q *Queue) hold(ctx context.Context) {
	if q.cooldown <= 0 {
		return
	}
	t := time.NewTimer(q.cooldown)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	case <-q.done:
	}
}

// finish releases the output after a dispatch.
func (q *Queue) finish(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.speaking = false
	q.stats.TotalDispatched++
	q.stats.LastDispatch = time.Now()
	if err != nil {
		q.stats.TotalFailed++
	}
	q.settled.Broadcast()
}

// Clear discards pending items without waiting for an in-flight dispatch.
// It returns the number of discarded items.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.discardLocked()
}

// Reset discards pending items and waits until any in-flight dispatch,
// including its cooldown, has completed. In-flight items are never cut off.
func (q *Queue) Reset(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.settled.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	q.discardLocked()
	for q.speaking && !q.closed {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.settled.Wait()
	}
	return nil
}

func (q *Queue) discardLocked() int {
	n := len(q.items)
	if n == 0 {
		return 0
	}
	clear(q.items)
	q.items = q.items[:0]
	q.stats.TotalDiscarded += int64(n)
	q.metrics.RecordDropped("reset", n)
	q.metrics.RecordDequeued(n)
	return n
}

// Speaking reports whether the worker currently owns the backend.
func (q *Queue) Speaking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.speaking
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pending returns a copy of the pending items in dispatch order.
func (q *Queue) Pending() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}

// Stats returns current queue statistics.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.CurrentSize = len(q.items)
	return s
}

// Close stops the worker after its current item and discards pending items.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)
	q.discardLocked()

	q.notEmpty.Broadcast()
	q.settled.Broadcast()
	return nil
}
