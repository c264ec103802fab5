// Package server exposes the presentation and control channels over HTTP:
// a websocket for live status, event records and control commands, plus
// health and metrics endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// Control is the command surface driven by websocket clients.
type Control interface {
	Connect(ctx context.Context, username string) error
	Disconnect(ctx context.Context) error
	SetMute(muted bool)
	ToggleMute() bool
	SetVoice(query string) (string, error)
	ToggleVoice() (string, error)
	EnqueueSpeech(text string) bool
	EnqueueSound(clip string) bool
	AssignSound(role, path string) error
	InjectSample(name string) error
}

// Config configures a Server.
type Config struct {
	Addr    string
	Hub     *Hub
	Control Control
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// AllowedOrigins lists browser origins, besides loopback pages, that
	// may open the websocket. Entries are scheme://host[:port].
	AllowedOrigins []string
	Logger         *log.Logger
}

// Server is the HTTP front end.
type Server struct {
	addr     string
	hub      *Hub
	control  Control
	metrics  http.Handler
	log      *log.Logger
	upgrader websocket.Upgrader
	started  time.Time
}

// New returns a Server.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.Default().WithPrefix("server")
	}
	if cfg.Hub == nil {
		cfg.Hub = NewHub(nil, cfg.Logger)
	}
	return &Server{
		addr:    cfg.Addr,
		hub:     cfg.Hub,
		control: cfg.Control,
		metrics: cfg.Metrics,
		log:     cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(cfg.AllowedOrigins),
		},
		started: time.Now(),
	}
}

// checkOrigin accepts non-browser clients, pages served from a loopback
// name and the allowed origins. The request's Host is not trusted.
func checkOrigin(allowed []string) func(*http.Request) bool {
	list := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if u, err := url.Parse(strings.TrimSpace(o)); err == nil && u.Host != "" {
			list[originKey(u)] = true
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		return isLoopback(u.Hostname()) || list[originKey(u)]
	}
}

func originKey(u *url.URL) string {
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.serveWS)
	mux.HandleFunc("GET /healthz", s.serveHealth)
	mux.HandleFunc("GET /api/status", s.serveStatus)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.log.Info("Control server listening", "addr", ln.Addr().String())

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"clients": s.hub.Clients(),
	})
}

func (s *Server) serveStatus(w http.ResponseWriter, _ *http.Request) {
	if s.hub.history == nil {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  s.hub.history.Status(),
		"records": s.hub.history.Records(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "error", err)
		return
	}
	c := s.hub.attach(conn)
	go c.writePump()
	s.readPump(r.Context(), c)
}

// readPump applies commands from c until the connection closes.
func (s *Server) readPump(ctx context.Context, c *client) {
	defer s.hub.detach(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("Websocket read error", "remote", c.remote, "error", err)
			}
			return
		}
		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			s.respond(c, Result{Op: "invalid", Error: "malformed command: " + err.Error()})
			continue
		}
		s.respond(c, s.apply(ctx, cmd))
	}
}

func (s *Server) respond(c *client, res Result) {
	msg, err := encode(TypeResult, res)
	if err != nil {
		return
	}
	s.hub.reply(c, msg)
}

// apply runs one command against the control surface.
func (s *Server) apply(ctx context.Context, cmd Command) Result {
	res := Result{ID: cmd.ID, Op: cmd.Op}
	if s.control == nil {
		res.Error = "control channel disabled"
		return res
	}

	var err error
	switch cmd.Op {
	case OpConnect:
		err = s.control.Connect(ctx, cmd.Username)
	case OpDisconnect:
		err = s.control.Disconnect(ctx)
	case OpSetMute:
		if cmd.Muted == nil {
			err = errors.New("muted is required")
			break
		}
		s.control.SetMute(*cmd.Muted)
		res.Value = *cmd.Muted
	case OpToggleMute:
		res.Value = s.control.ToggleMute()
	case OpSetVoice:
		res.Value, err = s.control.SetVoice(cmd.Voice)
	case OpToggleVoice:
		res.Value, err = s.control.ToggleVoice()
	case OpSpeak:
		res.Value = s.control.EnqueueSpeech(cmd.Text)
	case OpPlaySound:
		res.Value = s.control.EnqueueSound(cmd.Clip)
	case OpAssignSound:
		err = s.control.AssignSound(cmd.Role, cmd.Path)
	case OpTest:
		err = s.control.InjectSample(cmd.Sample)
	default:
		err = fmt.Errorf("unknown op %q", cmd.Op)
	}

	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.OK = true
	return res
}
