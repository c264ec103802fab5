// Package relay implements feed.Session over a websocket relay. The relay
// holds the upstream streaming-platform connection and signs its requests;
// this client only authenticates with an API key and decodes JSON frames.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/dgnsrekt/live-announcer/internal/feed"
)

// APIKeyHeader carries the relay API key.
const APIKeyHeader = "X-Api-Key"

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultPingInterval     = 30 * time.Second
	writeWait               = 5 * time.Second
)

// Options configures the relay dialer.
type Options struct {
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	Logger           *log.Logger
}

// Dialer creates relay sessions. It implements feed.Dialer.
type Dialer struct {
	opts Options
	ws   *websocket.Dialer
}

// NewDialer returns a relay dialer.
func NewDialer(opts Options) *Dialer {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.Logger == nil {
		opts.Logger = log.Default().WithPrefix("relay")
	}
	ws := *websocket.DefaultDialer
	ws.HandshakeTimeout = opts.HandshakeTimeout
	return &Dialer{opts: opts, ws: &ws}
}

// NewSession implements feed.Dialer.
func (d *Dialer) NewSession(username string, auth feed.Auth) (feed.Session, error) {
	if username == "" {
		return nil, errors.New("relay: username is required")
	}
	if err := auth.Validate(); err != nil {
		return nil, err
	}
	u, err := url.Parse(auth.RelayURL)
	if err != nil {
		return nil, fmt.Errorf("relay: parse url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("username", username)
	if auth.SessionID != "" {
		q.Set("session", auth.SessionID)
	}
	u.RawQuery = q.Encode()

	return &Session{
		dialer:   d,
		url:      u.String(),
		username: username,
		apiKey:   auth.APIKey,
		log:      d.opts.Logger.With("user", username),
	}, nil
}

// Session is a live relay connection.
type Session struct {
	feed.Listeners

	dialer   *Dialer
	url      string
	username string
	apiKey   string
	log      *log.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	closing bool
	done    chan struct{}
	writeMu sync.Mutex
}

// Connect dials the relay and waits for it to confirm the room.
func (s *Session) Connect(ctx context.Context) (feed.RoomInfo, error) {
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		return feed.RoomInfo{}, feed.ErrAlreadyConnected
	}
	s.closing = false
	s.mu.Unlock()

	header := http.Header{APIKeyHeader: {s.apiKey}}
	conn, resp, err := s.dialer.ws.DialContext(ctx, s.url, header)
	if err != nil {
		if resp != nil {
			return feed.RoomInfo{}, fmt.Errorf("relay handshake: %s: %w", resp.Status, err)
		}
		return feed.RoomInfo{}, fmt.Errorf("relay dial: %w", err)
	}

	info, err := s.awaitRoom(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return feed.RoomInfo{}, err
	}

	s.mu.Lock()
	s.conn = conn
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.readLoop(conn, done)
	go s.pingLoop(conn, done)

	s.log.Info("Connected to relay", "room", info.RoomID)
	return info, nil
}

// awaitRoom reads frames until the relay confirms the room or reports an
// error.
func (s *Session) awaitRoom(ctx context.Context, conn *websocket.Conn) (feed.RoomInfo, error) {
	deadline := time.Now().Add(s.dialer.opts.HandshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return feed.RoomInfo{}, ctxErr
			}
			return feed.RoomInfo{}, fmt.Errorf("relay handshake: %w", err)
		}
		ev, err := decode(raw)
		if err != nil {
			var remote *RemoteError
			if errors.As(err, &remote) {
				return feed.RoomInfo{}, remote
			}
			s.log.Warn("Ignoring malformed frame during handshake", "error", err)
			continue
		}
		switch e := ev.(type) {
		case feed.Connected:
			return feed.RoomInfo{RoomID: e.RoomID, Username: s.username}, nil
		case feed.Disconnected:
			if e.Reason == "" {
				return feed.RoomInfo{}, feed.ErrRoomOffline
			}
			return feed.RoomInfo{}, fmt.Errorf("%w: %s", feed.ErrRoomOffline, e.Reason)
		}
	}
}

func (s *Session) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.handleDrop(conn, err)
			return
		}
		ev, err := decode(raw)
		if err != nil {
			var remote *RemoteError
			if errors.As(err, &remote) {
				s.log.Warn("Relay reported an error", "error", remote)
				continue
			}
			s.log.Debug("Ignoring malformed frame", "error", err)
			continue
		}
		if ev == nil {
			continue
		}
		if d, ok := ev.(feed.Disconnected); ok {
			s.handleDrop(conn, errors.New(d.Reason))
			return
		}
		s.Emit(ev)
	}
}

// handleDrop emits Disconnected unless the drop was requested.
func (s *Session) handleDrop(conn *websocket.Conn, cause error) {
	s.mu.Lock()
	requested := s.closing
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	_ = conn.Close()

	if requested {
		return
	}
	reason := "connection lost"
	if cause != nil && cause.Error() != "" {
		reason = cause.Error()
	}
	var ce *websocket.CloseError
	if errors.As(cause, &ce) && ce.Code == websocket.CloseNormalClosure {
		reason = "stream ended"
	}
	s.log.Warn("Relay connection dropped", "reason", reason)
	s.Emit(feed.Disconnected{Reason: reason})
}

func (s *Session) pingLoop(conn *websocket.Conn, done chan struct{}) {
	t := time.NewTicker(s.dialer.opts.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			s.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.writeMu.Unlock()
			if err != nil {
				s.log.Debug("Ping failed", "error", err)
				return
			}
		}
	}
}

// Disconnect closes the relay connection and waits for the reader to exit.
// It does not emit Disconnected.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	conn, done := s.conn, s.done
	s.closing = true
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	s.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	s.writeMu.Unlock()
	err := conn.Close()

	if done != nil {
		select {
		case <-done:
		case <-time.After(writeWait):
		}
	}
	s.log.Info("Disconnected from relay")
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("relay close: %w", err)
	}
	return nil
}
