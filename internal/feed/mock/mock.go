// Package mock provides an in-memory feed session for tests and offline
// runs. Events are pushed by the caller instead of arriving over the wire.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/dgnsrekt/live-announcer/internal/feed"
)

// Session is a scripted feed.Session.
type Session struct {
	feed.Listeners

	Username string
	Auth     feed.Auth
	RoomID   string

	// ConnectErr, when set, is returned by Connect.
	ConnectErr error
	// ConnectDelay blocks Connect before it returns.
	ConnectDelay time.Duration

	mu          sync.Mutex
	connected   bool
	connects    int
	disconnects int
}

// NewSession returns a session that joins roomID.
func NewSession(username, roomID string) *Session {
	return &Session{Username: username, RoomID: roomID}
}

// Connect implements feed.Session.
func (s *Session) Connect(ctx context.Context) (feed.RoomInfo, error) {
	if s.ConnectDelay > 0 {
		select {
		case <-time.After(s.ConnectDelay):
		case <-ctx.Done():
			return feed.RoomInfo{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
	if s.ConnectErr != nil {
		return feed.RoomInfo{}, s.ConnectErr
	}
	if s.connected {
		return feed.RoomInfo{}, feed.ErrAlreadyConnected
	}
	s.connected = true
	return feed.RoomInfo{RoomID: s.RoomID, Username: s.Username}, nil
}

// Disconnect implements feed.Session.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		s.disconnects++
	}
	s.connected = false
	return nil
}

// Push delivers e to subscribers as if it arrived from the feed.
func (s *Session) Push(e feed.Event) {
	s.Emit(e)
}

// Drop simulates the feed going away on its own.
func (s *Session) Drop(reason string) {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	s.Emit(feed.Disconnected{Reason: reason})
}

// Play pushes events with interval between them until done or ctx ends.
func (s *Session) Play(ctx context.Context, events []feed.Event, interval time.Duration) error {
	for _, e := range events {
		s.Push(e)
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Connected reports whether the session is joined.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Disconnects returns how many times a connected session was disconnected.
func (s *Session) Disconnects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnects
}

// Connects returns how many times Connect was called.
func (s *Session) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

// Dialer hands out mock sessions and remembers them.
type Dialer struct {
	// ConnectErr is copied into every new session.
	ConnectErr error
	// NewErr, when set, is returned by NewSession.
	NewErr error

	mu       sync.Mutex
	sessions []*Session
}

// NewSession implements feed.Dialer.
func (d *Dialer) NewSession(username string, auth feed.Auth) (feed.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.NewErr != nil {
		return nil, d.NewErr
	}
	s := NewSession(username, "room-"+username)
	s.Auth = auth
	s.ConnectErr = d.ConnectErr
	d.sessions = append(d.sessions, s)
	return s, nil
}

// Sessions returns every session created so far.
func (d *Dialer) Sessions() []*Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Session, len(d.sessions))
	copy(out, d.sessions)
	return out
}

// Last returns the most recent session, or nil.
func (d *Dialer) Last() *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sessions) == 0 {
		return nil
	}
	return d.sessions[len(d.sessions)-1]
}
