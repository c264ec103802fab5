package feed

import (
	"context"
	"errors"
)

var (
	// ErrNotConnected is returned by operations that need a live session.
	ErrNotConnected = errors.New("feed session is not connected")

	// ErrAlreadyConnected is returned when Connect is called twice.
	ErrAlreadyConnected = errors.New("feed session is already connected")

	// ErrRoomOffline is returned when the requested user is not live.
	ErrRoomOffline = errors.New("user is not currently live")
)

// RoomInfo describes the room a session joined.
type RoomInfo struct {
	RoomID   string
	Username string
}

// Handler receives feed events. Handlers may be invoked from any goroutine
// but a session delivers its events to a handler one at a time.
type Handler func(Event)

// Subscription is a registered handler. Once Close returns, events emitted
// afterwards are not delivered to it. Close is idempotent.
type Subscription interface {
	Close()
}

// Session is a handle on one live feed connection bound to a username.
type Session interface {
	// Connect joins the room. It blocks until the session is live or has
	// failed.
	Connect(ctx context.Context) (RoomInfo, error)

	// Disconnect leaves the room. Disconnect on a session that is not
	// connected is a no-op.
	Disconnect() error

	// Subscribe registers h for all subsequent events.
	Subscribe(h Handler) Subscription
}

// Dialer creates sessions.
type Dialer interface {
	NewSession(username string, auth Auth) (Session, error)
}

// DialerFunc adapts a function to a Dialer.
type DialerFunc func(username string, auth Auth) (Session, error)

// NewSession calls f.
func (f DialerFunc) NewSession(username string, auth Auth) (Session, error) {
	return f(username, auth)
}
