// Package present carries display-ready projections of feed events and
// connection status to whatever is rendering them: the terminal UI, the
// websocket channel, or both.
package present

import (
	"sync"
	"time"
)

// RecordType classifies a display record.
type RecordType string

// Record types.
const (
	TypeChat   RecordType = "chat"
	TypeLike   RecordType = "like"
	TypeFollow RecordType = "follow"
	TypeGift   RecordType = "gift"
	TypeShare  RecordType = "share"
	TypeError  RecordType = "error"
	TypeSystem RecordType = "system"
)

// Status is the connection state shown to the user.
type Status struct {
	Connected bool   `json:"connected"`
	Username  string `json:"username,omitempty"`
	RoomID    string `json:"roomId,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Record is one line of the event log.
type Record struct {
	Type    RecordType        `json:"type"`
	User    string            `json:"user,omitempty"`
	Message string            `json:"msg"`
	Meta    map[string]string `json:"meta,omitempty"`
	At      time.Time         `json:"at"`
}

// Presenter receives status changes and event records. Implementations must
// not block for long; they are called from the feed's delivery goroutine.
type Presenter interface {
	PublishStatus(Status)
	PublishEvent(Record)
}

// Multi fans out to several presenters in order.
type Multi []Presenter

// PublishStatus implements Presenter.
func (m Multi) PublishStatus(s Status) {
	for _, p := range m {
		p.PublishStatus(s)
	}
}

// PublishEvent implements Presenter.
func (m Multi) PublishEvent(r Record) {
	for _, p := range m {
		p.PublishEvent(r)
	}
}

// Discard drops everything.
var Discard Presenter = discard{}

type discard struct{}

func (discard) PublishStatus(Status) {}
func (discard) PublishEvent(Record)  {}

// DefaultHistory is the number of records a Recorder keeps.
const DefaultHistory = 50

// Recorder keeps the latest status and the most recent records.
type Recorder struct {
	mu      sync.Mutex
	limit   int
	status  Status
	records []Record
	total   int
	notify  []func()
}

// NewRecorder keeps at most limit records. A non-positive limit uses
// DefaultHistory.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = DefaultHistory
	}
	return &Recorder{limit: limit, records: make([]Record, 0, limit)}
}

// PublishStatus implements Presenter.
func (r *Recorder) PublishStatus(s Status) {
	r.mu.Lock()
	r.status = s
	fns := r.notify
	r.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// PublishEvent implements Presenter.
func (r *Recorder) PublishEvent(rec Record) {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	r.mu.Lock()
	if len(r.records) == r.limit {
		copy(r.records, r.records[1:])
		r.records = r.records[:len(r.records)-1]
	}
	r.records = append(r.records, rec)
	r.total++
	fns := r.notify
	r.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// OnChange registers fn to run after every publish.
func (r *Recorder) OnChange(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notify = append(r.notify, fn)
}

// Status returns the last published status.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Records returns the retained records, oldest first.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Last returns the newest record.
func (r *Recorder) Last() (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.records) == 0 {
		return Record{}, false
	}
	return r.records[len(r.records)-1], true
}

// Total returns how many records were ever published.
func (r *Recorder) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}
