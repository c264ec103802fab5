package feed

import (
	"maps"
	"slices"
	"sync"
)

// Listeners is a set of subscribed handlers. Session implementations embed
// it to satisfy Subscribe. The zero value is ready to use.
type Listeners struct {
	mu       sync.Mutex
	emitMu   sync.Mutex
	next     int
	handlers map[int]Handler
}

// Subscribe registers h.
func (l *Listeners) Subscribe(h Handler) Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handlers == nil {
		l.handlers = make(map[int]Handler)
	}
	id := l.next
	l.next++
	l.handlers[id] = h
	return &subscription{l: l, id: id}
}

// Emit delivers e to every handler in subscription order. Emits are
// serialized so a handler never sees two events at once.
func (l *Listeners) Emit(e Event) {
	l.emitMu.Lock()
	defer l.emitMu.Unlock()

	for _, id := range l.ids() {
		l.mu.Lock()
		h, ok := l.handlers[id]
		l.mu.Unlock()
		if ok {
			h(e)
		}
	}
}

// Len returns the number of live subscriptions.
func (l *Listeners) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.handlers)
}

// RemoveAll detaches every handler.
func (l *Listeners) RemoveAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.handlers)
}

func (l *Listeners) ids() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := slices.Collect(maps.Keys(l.handlers))
	slices.Sort(ids)
	return ids
}

type subscription struct {
	l    *Listeners
	id   int
	once sync.Once
}

func (s *subscription) Close() {
	s.once.Do(func() {
		s.l.mu.Lock()
		delete(s.l.handlers, s.id)
		s.l.mu.Unlock()
	})
}
