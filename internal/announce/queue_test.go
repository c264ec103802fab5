package announce

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

type call struct {
	item Item
	at   time.Time
}

// stubBackend records calls and detects overlapping dispatches.
type stubBackend struct {
	mu       sync.Mutex
	calls    []call
	inflight int32
	overlaps int32

	delay   time.Duration
	fail    map[string]bool
	started chan string
	release chan struct{}
}

func (b *stubBackend) Speak(ctx context.Context, text string) error {
	return b.do(ctx, Speech(text), text)
}

func (b *stubBackend) PlayClip(ctx context.Context, clip string) error {
	return b.do(ctx, Sound(clip), clip)
}

func (b *stubBackend) do(ctx context.Context, item Item, key string) error {
	if atomic.AddInt32(&b.inflight, 1) > 1 {
		atomic.AddInt32(&b.overlaps, 1)
	}
	defer atomic.AddInt32(&b.inflight, -1)

	b.mu.Lock()
	b.calls = append(b.calls, call{item: item, at: time.Now()})
	b.mu.Unlock()

	if b.started != nil {
		select {
		case b.started <- key:
		default:
		}
	}
	if b.release != nil {
		select {
		case <-b.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	if b.fail[key] {
		return errors.New("backend failure")
	}
	return nil
}

func (b *stubBackend) recorded() []call {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]call, len(b.calls))
	copy(out, b.calls)
	return out
}

type muteFlag struct{ v atomic.Bool }

func (m *muteFlag) Muted() bool { return m.v.Load() }

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func startQueue(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("worker did not stop")
		}
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestQueue_FIFOOrder(t *testing.T) {
	b := &stubBackend{}
	q := NewQueue(b, Config{Logger: quietLogger()})

	want := []Item{Speech("one"), Sound("follow"), Speech("two"), Sound("share"), Speech("three")}
	for _, it := range want {
		if !q.Enqueue(it) {
			t.Fatalf("Enqueue(%v) rejected", it)
		}
	}
	startQueue(t, q)

	waitFor(t, "all dispatches", func() bool { return len(b.recorded()) == len(want) && !q.Speaking() })

	got := b.recorded()
	for i := range want {
		if got[i].item != want[i] {
			t.Errorf("dispatch %d = %v, want %v", i, got[i].item, want[i])
		}
	}
}

func TestQueue_SingleFlight(t *testing.T) {
	b := &stubBackend{delay: time.Millisecond}
	q := NewQueue(b, Config{Capacity: 200, Logger: quietLogger()})
	startQueue(t, q)

	const producers, perProducer = 8, 10
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(Speech(fmt.Sprintf("p%d-%d", p, i)))
			}
		}(p)
	}
	wg.Wait()

	waitFor(t, "drain", func() bool { return len(b.recorded()) == producers*perProducer && !q.Speaking() })

	if n := atomic.LoadInt32(&b.overlaps); n != 0 {
		t.Errorf("observed %d overlapping dispatches", n)
	}

	// Per-producer order is preserved.
	last := make(map[int]int)
	for _, c := range b.recorded() {
		var p, i int
		if _, err := fmt.Sscanf(c.item.Text, "p%d-%d", &p, &i); err != nil {
			t.Fatalf("unexpected text %q", c.item.Text)
		}
		if prev, ok := last[p]; ok && i <= prev {
			t.Errorf("producer %d: item %d dispatched after %d", p, i, prev)
		}
		last[p] = i
	}
}

func TestQueue_MutedEnqueueIsNoop(t *testing.T) {
	mute := &muteFlag{}
	mute.v.Store(true)
	q := NewQueue(&stubBackend{}, Config{Mute: mute, Logger: quietLogger()})

	for i := 0; i < 5; i++ {
		if q.Enqueue(Speech("hello")) {
			t.Fatal("muted Enqueue accepted an item")
		}
	}
	if n := q.Len(); n != 0 {
		t.Errorf("Len() = %d, want 0", n)
	}
	if s := q.Stats(); s.TotalMuted != 5 || s.TotalEnqueued != 0 {
		t.Errorf("stats = %+v, want 5 muted and 0 enqueued", s)
	}

	mute.v.Store(false)
	if !q.Enqueue(Speech("hello")) {
		t.Fatal("unmuted Enqueue rejected")
	}
	if n := q.Len(); n != 1 {
		t.Errorf("Len() = %d, want 1", n)
	}
}

func TestQueue_EvictsOldestAtCapacity(t *testing.T) {
	q := NewQueue(&stubBackend{}, Config{Capacity: 3, Logger: quietLogger()})

	for i := 0; i < 5; i++ {
		q.Enqueue(Speech(fmt.Sprintf("item-%d", i)))
	}

	pending := q.Pending()
	want := []string{"item-2", "item-3", "item-4"}
	if len(pending) != len(want) {
		t.Fatalf("Pending() has %d items, want %d", len(pending), len(want))
	}
	for i, w := range want {
		if pending[i].Text != w {
			t.Errorf("pending[%d] = %q, want %q", i, pending[i].Text, w)
		}
	}
	if s := q.Stats(); s.TotalEvicted != 2 || s.PeakSize != 3 {
		t.Errorf("stats = %+v, want 2 evicted and peak 3", s)
	}
}

func TestQueue_FailureContinuesDraining(t *testing.T) {
	b := &stubBackend{fail: map[string]bool{"missing.mp3": true}}
	q := NewQueue(b, Config{Logger: quietLogger()})

	q.Enqueue(Speech("before"))
	q.Enqueue(Sound("missing.mp3"))
	q.Enqueue(Speech("after"))
	startQueue(t, q)

	waitFor(t, "drain", func() bool { return q.Stats().TotalDispatched == 3 })

	calls := b.recorded()
	if len(calls) != 3 {
		t.Fatalf("backend saw %d calls, want 3 (no retries)", len(calls))
	}
	if calls[2].item.Text != "after" {
		t.Errorf("last dispatch = %v, want speech(after)", calls[2].item)
	}
	if s := q.Stats(); s.TotalFailed != 1 {
		t.Errorf("TotalFailed = %d, want 1", s.TotalFailed)
	}
}

func TestQueue_CooldownAfterSoundOnly(t *testing.T) {
	const cooldown = 100 * time.Millisecond
	b := &stubBackend{}
	q := NewQueue(b, Config{Cooldown: cooldown, Logger: quietLogger()})

	q.Enqueue(Speech("hi"))
	q.Enqueue(Sound("follow"))
	q.Enqueue(Sound("share"))
	startQueue(t, q)

	waitFor(t, "three dispatches", func() bool { return q.Stats().TotalDispatched == 3 })

	calls := b.recorded()
	if calls[0].item != Speech("hi") || calls[1].item != Sound("follow") || calls[2].item != Sound("share") {
		t.Fatalf("unexpected dispatch order: %v", calls)
	}
	if gap := calls[1].at.Sub(calls[0].at); gap >= cooldown {
		t.Errorf("speech was followed by a cooldown: gap %v", gap)
	}
	if gap := calls[2].at.Sub(calls[1].at); gap < cooldown {
		t.Errorf("sound-to-sound gap %v shorter than cooldown %v", gap, cooldown)
	}
}

func TestQueue_SpeakingClearedAfterCooldown(t *testing.T) {
	const cooldown = 80 * time.Millisecond
	b := &stubBackend{started: make(chan string, 1)}
	q := NewQueue(b, Config{Cooldown: cooldown, Logger: quietLogger()})
	startQueue(t, q)

	q.Enqueue(Sound("like"))
	<-b.started

	time.Sleep(cooldown / 4)
	if !q.Speaking() {
		t.Error("Speaking() = false during cooldown")
	}
	waitFor(t, "speaking cleared", func() bool { return !q.Speaking() })
}

func TestQueue_ResetWaitsForInFlight(t *testing.T) {
	b := &stubBackend{started: make(chan string, 4), release: make(chan struct{})}
	q := NewQueue(b, Config{Logger: quietLogger()})
	startQueue(t, q)

	q.Enqueue(Speech("a"))
	q.Enqueue(Speech("b"))
	q.Enqueue(Speech("c"))
	if got := <-b.started; got != "a" {
		t.Fatalf("first dispatch = %q, want a", got)
	}

	done := make(chan error, 1)
	go func() { done <- q.Reset(context.Background()) }()

	select {
	case err := <-done:
		t.Fatalf("Reset returned before in-flight dispatch finished: %v", err)
	case <-time.After(30 * time.Millisecond):
	}
	if n := q.Len(); n != 0 {
		t.Errorf("Len() = %d after Reset, want 0", n)
	}

	close(b.release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Reset() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Reset did not return after dispatch finished")
	}

	if q.Speaking() {
		t.Error("Speaking() = true after Reset")
	}
	if calls := b.recorded(); len(calls) != 1 {
		t.Errorf("backend saw %d calls, want only the in-flight one", len(calls))
	}
	if s := q.Stats(); s.TotalDiscarded != 2 {
		t.Errorf("TotalDiscarded = %d, want 2", s.TotalDiscarded)
	}
}

func TestQueue_ResetHonoursContext(t *testing.T) {
	b := &stubBackend{started: make(chan string, 1), release: make(chan struct{})}
	q := NewQueue(b, Config{Logger: quietLogger()})
	startQueue(t, q)

	q.Enqueue(Speech("long"))
	<-b.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Reset(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Reset() error = %v, want deadline exceeded", err)
	}
	close(b.release)
}

func TestQueue_ClearDoesNotWait(t *testing.T) {
	b := &stubBackend{started: make(chan string, 1), release: make(chan struct{})}
	q := NewQueue(b, Config{Logger: quietLogger()})
	startQueue(t, q)

	q.Enqueue(Speech("a"))
	<-b.started
	q.Enqueue(Speech("b"))
	q.Enqueue(Speech("c"))

	if n := q.Clear(); n != 2 {
		t.Errorf("Clear() = %d, want 2", n)
	}
	if !q.Speaking() {
		t.Error("Clear should leave the in-flight dispatch running")
	}
	close(b.release)
	waitFor(t, "speaking cleared", func() bool { return !q.Speaking() })
}

func TestQueue_RunTwice(t *testing.T) {
	q := NewQueue(&stubBackend{}, Config{Logger: quietLogger()})
	startQueue(t, q)

	waitFor(t, "worker start", func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return q.running
	})
	if err := q.Run(context.Background()); !errors.Is(err, ErrQueueRunning) {
		t.Errorf("second Run() error = %v, want ErrQueueRunning", err)
	}
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue(&stubBackend{}, Config{Logger: quietLogger()})
	q.Enqueue(Speech("pending"))

	done := make(chan error, 1)
	go func() { done <- q.Run(context.Background()) }()
	waitFor(t, "worker start", func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return q.running || q.stats.TotalDispatched > 0
	})

	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}

	if q.Enqueue(Speech("late")) {
		t.Error("Enqueue accepted an item after Close")
	}
	if err := q.Run(context.Background()); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Run() after Close error = %v, want ErrQueueClosed", err)
	}
}
