// Package session owns the lifecycle of the live feed connection: starting
// and ending sessions, resetting per-session state and routing events from
// the current session only.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/dgnsrekt/live-announcer/internal/feed"
	"github.com/dgnsrekt/live-announcer/internal/observe"
	"github.com/dgnsrekt/live-announcer/internal/present"
)

// Queue is the announcement queue as seen by the controller.
type Queue interface {
	Reset(ctx context.Context) error
	Clear() int
}

// Router consumes routed events and owns the running counters.
type Router interface {
	Handle(e feed.Event)
	Reset()
}

// Config configures a Controller.
type Config struct {
	Dialer    feed.Dialer
	Auth      feed.Auth
	Queue     Queue
	Router    Router
	Presenter present.Presenter
	Logger    *log.Logger
	Metrics   *observe.Metrics
}

// Info is a snapshot of the controller.
type Info struct {
	State      State
	Username   string
	RoomID     string
	Reason     string
	Generation uuid.UUID
}

// Controller runs one feed session at a time.
type Controller struct {
	dialer    feed.Dialer
	auth      feed.Auth
	queue     Queue
	router    Router
	presenter present.Presenter
	log       *log.Logger
	metrics   *observe.Metrics

	// op serializes StartSession, EndSession and Close.
	op sync.Mutex

	// route is held shared while an event is routed and exclusively while
	// gen changes, so no event of a retired generation reaches the router
	// once the change returns. Acquire it before mu.
	route sync.RWMutex

	mu       sync.RWMutex
	sm       *stateMachine
	gen      uuid.UUID
	session  feed.Session
	sub      feed.Subscription
	username string
	roomID   string
	reason   string
	closed   bool
}

// New returns an idle controller.
func New(cfg Config) *Controller {
	if cfg.Presenter == nil {
		cfg.Presenter = present.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default().WithPrefix("session")
	}
	c := &Controller{
		dialer:    cfg.Dialer,
		auth:      cfg.Auth,
		queue:     cfg.Queue,
		router:    cfg.Router,
		presenter: cfg.Presenter,
		log:       cfg.Logger,
		metrics:   cfg.Metrics,
		sm:        newStateMachine(),
	}
	c.sm.onTransition = func(from, to State) {
		c.metrics.RecordTransition(to.String())
		c.log.Debug("Session state changed", "from", from, "to", to)
	}
	return c
}

// SetAuth replaces the auth material used by the next StartSession.
func (c *Controller) SetAuth(auth feed.Auth) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = auth
}

// StartSession tears down any current session, resets the queue and
// counters, then connects to username's live stream.
func (c *Controller) StartSession(ctx context.Context, username string) error {
	c.op.Lock()
	defer c.op.Unlock()

	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	c.mu.RLock()
	auth, closed := c.auth, c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if username == "" {
		return &ConfigurationError{Err: ErrMissingUsername}
	}
	if err := auth.Validate(); err != nil {
		return &ConfigurationError{Err: err}
	}

	c.teardown()

	gen := uuid.New()
	c.route.Lock()
	c.mu.Lock()
	c.gen = gen
	c.username = username
	c.roomID = ""
	c.reason = ""
	c.sm.Transition(StateConnecting)
	c.mu.Unlock()
	c.route.Unlock()

	// In-flight announcements finish first; waiting ones are dropped.
	if c.queue != nil {
		if err := c.queue.Reset(ctx); err != nil {
			return c.fail(gen, username, err)
		}
	}
	if c.router != nil {
		c.router.Reset()
	}
	c.presenter.PublishStatus(present.Status{Username: username})

	sess, err := c.dialer.NewSession(username, auth)
	if err != nil {
		return c.fail(gen, username, err)
	}
	sub := sess.Subscribe(c.handler(gen))

	c.mu.Lock()
	c.session, c.sub = sess, sub
	c.mu.Unlock()

	info, err := sess.Connect(ctx)
	if err != nil {
		c.teardown()
		return c.fail(gen, username, err)
	}

	c.mu.Lock()
	if c.gen != gen || !c.sm.Transition(StateConnected) {
		// The feed dropped before Connect returned.
		c.mu.Unlock()
		return &ConnectionError{Username: username, Err: errors.New("connection lost while joining")}
	}
	c.roomID = info.RoomID
	c.mu.Unlock()

	c.log.Info("Connected to live stream", "username", username, "room", info.RoomID)
	c.presenter.PublishStatus(present.Status{Connected: true, Username: username, RoomID: info.RoomID})
	c.presenter.PublishEvent(present.Record{
		Type:    present.TypeSystem,
		Message: fmt.Sprintf("Connected to @%s", username),
	})
	return nil
}

// fail records a failed start as Disconnected and surfaces the reason.
func (c *Controller) fail(gen uuid.UUID, username string, err error) error {
	reason := err.Error()
	c.mu.Lock()
	if c.gen == gen {
		c.reason = reason
		c.sm.Transition(StateDisconnected)
	}
	c.mu.Unlock()

	c.log.Error("Failed to connect", "username", username, "error", err)
	c.presenter.PublishEvent(present.Record{
		Type:    present.TypeError,
		Message: "Failed to connect: " + reason,
	})
	c.presenter.PublishStatus(present.Status{Connected: false, Username: username, Reason: reason})
	return &ConnectionError{Username: username, Err: err}
}

// EndSession disconnects the current session, if any. In-flight
// announcements finish; waiting ones are dropped.
func (c *Controller) EndSession(ctx context.Context) error {
	c.op.Lock()
	defer c.op.Unlock()
	return c.end(ctx)
}

func (c *Controller) end(ctx context.Context) error {
	c.mu.Lock()
	active := c.session != nil || c.sm.Current() == StateConnected
	username := c.username
	c.mu.Unlock()
	if !active {
		return nil
	}

	c.teardown()

	c.route.Lock()
	c.mu.Lock()
	c.gen = uuid.Nil
	c.reason = ""
	c.roomID = ""
	c.sm.Transition(StateDisconnected)
	c.mu.Unlock()
	c.route.Unlock()

	var err error
	if c.queue != nil {
		err = c.queue.Reset(ctx)
	}
	if c.router != nil {
		c.router.Reset()
	}

	c.log.Info("Disconnected from live stream", "username", username)
	c.presenter.PublishStatus(present.Status{Connected: false, Username: username})
	c.presenter.PublishEvent(present.Record{
		Type:    present.TypeSystem,
		Message: fmt.Sprintf("Disconnected from @%s", username),
	})
	return err
}

// teardown releases the subscription first, then the session.
func (c *Controller) teardown() {
	c.mu.Lock()
	sess, sub := c.session, c.sub
	c.session, c.sub = nil, nil
	c.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	if sess != nil {
		if err := sess.Disconnect(); err != nil && !errors.Is(err, feed.ErrNotConnected) {
			c.log.Warn("Error disconnecting feed session", "error", err)
		}
	}
}

// handler routes events that belong to generation gen.
func (c *Controller) handler(gen uuid.UUID) feed.Handler {
	return func(e feed.Event) {
		switch ev := e.(type) {
		case feed.Disconnected:
			c.dropped(gen, ev.Reason)
		case feed.Connected:
		default:
			c.route.RLock()
			defer c.route.RUnlock()
			if !c.current(gen) {
				c.log.Debug("Dropping event from stale session", "type", e.Type())
				return
			}
			if c.router != nil {
				c.router.Handle(e)
			}
		}
	}
}

func (c *Controller) current(gen uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen == gen
}

// dropped handles a disconnect the controller did not ask for. It runs on
// the feed's delivery goroutine, so the session itself is disconnected by
// the next StartSession or EndSession.
func (c *Controller) dropped(gen uuid.UUID, reason string) {
	c.route.Lock()
	c.mu.Lock()
	if c.gen != gen || !c.sm.Transition(StateDisconnected) {
		c.mu.Unlock()
		c.route.Unlock()
		c.log.Debug("Dropping disconnect from stale session", "reason", reason)
		return
	}
	username := c.username
	c.gen = uuid.Nil
	c.reason = reason
	c.roomID = ""
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()
	c.route.Unlock()

	if sub != nil {
		sub.Close()
	}
	if c.queue != nil {
		c.queue.Clear()
	}
	if c.router != nil {
		c.router.Reset()
	}

	if reason == "" {
		reason = "stream ended"
	}
	c.log.Warn("Live stream connection lost", "username", username, "reason", reason)
	c.presenter.PublishStatus(present.Status{Connected: false, Username: username, Reason: reason})
	c.presenter.PublishEvent(present.Record{
		Type:    present.TypeError,
		Message: "Disconnected: " + reason,
	})
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sm.Current()
}

// Info returns a snapshot of the controller.
func (c *Controller) Info() Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Info{
		State:      c.sm.Current(),
		Username:   c.username,
		RoomID:     c.roomID,
		Reason:     c.reason,
		Generation: c.gen,
	}
}

// Close ends the current session and rejects further starts.
func (c *Controller) Close(ctx context.Context) error {
	c.op.Lock()
	defer c.op.Unlock()
	err := c.end(ctx)
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return err
}
