package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/dgnsrekt/live-announcer/internal/present"
)

type fakeControl struct {
	mu        sync.Mutex
	muted     bool
	connected string
	spoken    []string
	connErr   error
}

func (f *fakeControl) Connect(_ context.Context, u string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connErr != nil {
		return f.connErr
	}
	f.connected = u
	return nil
}
func (f *fakeControl) Disconnect(context.Context) error { return nil }
func (f *fakeControl) SetMute(m bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = m
}
func (f *fakeControl) ToggleMute() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = !f.muted
	return f.muted
}
func (f *fakeControl) SetVoice(q string) (string, error) {
	if q == "david" {
		return "David", nil
	}
	return "", errors.New("unknown voice")
}
func (f *fakeControl) ToggleVoice() (string, error) { return "David", nil }
func (f *fakeControl) EnqueueSpeech(text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
	return true
}
func (f *fakeControl) EnqueueSound(string) bool          { return true }
func (f *fakeControl) AssignSound(string, string) error  { return nil }
func (f *fakeControl) InjectSample(name string) error {
	if name != "chat" {
		return errors.New("unknown sample")
	}
	return nil
}

func startServer(t *testing.T, history History, ctl Control) (*Server, *httptest.Server) {
	t.Helper()
	logger := log.New(io.Discard)
	s := New(Config{Hub: NewHub(history, logger), Control: ctl, Logger: logger,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "announcer_up 1\n") }),
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m Message
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	return m
}

func waitClients(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", s.hub.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestReplayAndBroadcast(t *testing.T) {
	rec := present.NewRecorder(0)
	rec.PublishStatus(present.Status{Connected: true, Username: "alice", RoomID: "42"})
	rec.PublishEvent(present.Record{Type: present.TypeChat, User: "bob", Message: "bob: hi"})

	s, ts := startServer(t, rec, &fakeControl{})
	conn := dial(t, ts)

	m := readMessage(t, conn)
	var st present.Status
	if m.Type != TypeStatus || json.Unmarshal(m.Data, &st) != nil || st.RoomID != "42" {
		t.Fatalf("first message = %s %s", m.Type, m.Data)
	}
	m = readMessage(t, conn)
	var r present.Record
	if m.Type != TypeEvent || json.Unmarshal(m.Data, &r) != nil || r.Message != "bob: hi" {
		t.Fatalf("second message = %s %s", m.Type, m.Data)
	}

	waitClients(t, s, 1)
	s.hub.PublishEvent(present.Record{Type: present.TypeFollow, User: "carol", Message: "carol followed!"})
	m = readMessage(t, conn)
	if m.Type != TypeEvent || !strings.Contains(string(m.Data), `"msg":"carol followed!"`) {
		t.Errorf("broadcast = %s %s", m.Type, m.Data)
	}
}

func TestCommands(t *testing.T) {
	ctl := &fakeControl{}
	_, ts := startServer(t, nil, ctl)
	conn := dial(t, ts)

	tests := []struct {
		cmd     string
		ok      bool
		wantErr string
	}{
		{`{"id":"1","op":"set-mute","muted":true}`, true, ""},
		{`{"id":"2","op":"speak","text":"hello chat"}`, true, ""},
		{`{"id":"3","op":"set-voice","voice":"david"}`, true, ""},
		{`{"id":"4","op":"set-voice","voice":"hal"}`, false, "unknown voice"},
		{`{"id":"5","op":"test","sample":"chat"}`, true, ""},
		{`{"id":"6","op":"reboot"}`, false, "unknown op"},
		{`{"id":"7","op":"set-mute"}`, false, "muted is required"},
		{`not json`, false, "malformed"},
	}
	for _, tt := range tests {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.cmd)); err != nil {
			t.Fatal(err)
		}
		m := readMessage(t, conn)
		var res Result
		if m.Type != TypeResult || json.Unmarshal(m.Data, &res) != nil {
			t.Fatalf("%s: reply = %s %s", tt.cmd, m.Type, m.Data)
		}
		if res.OK != tt.ok || !strings.Contains(res.Error, tt.wantErr) {
			t.Errorf("%s: result = %+v", tt.cmd, res)
		}
	}

	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	if !ctl.muted || len(ctl.spoken) != 1 || ctl.spoken[0] != "hello chat" {
		t.Errorf("control = %+v", ctl)
	}
}

func TestConnectErrorReported(t *testing.T) {
	_, ts := startServer(t, nil, &fakeControl{connErr: errors.New("configuration error: api key is not set")})
	conn := dial(t, ts)
	_ = conn.WriteJSON(Command{ID: "c", Op: OpConnect, Username: "alice"})

	var res Result
	m := readMessage(t, conn)
	_ = json.Unmarshal(m.Data, &res)
	if res.OK || res.ID != "c" || !strings.Contains(res.Error, "api key") {
		t.Errorf("result = %+v", res)
	}
}

func TestHTTPRoutes(t *testing.T) {
	_, ts := startServer(t, present.NewRecorder(0), nil)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var health map[string]any
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&health) != nil || health["status"] != "ok" {
		t.Errorf("healthz = %d %v", resp.StatusCode, health)
	}

	resp2, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	body, _ := io.ReadAll(resp2.Body)
	if !strings.Contains(string(body), "announcer_up") {
		t.Errorf("metrics body = %q", body)
	}
}

func TestCheckOrigin(t *testing.T) {
	check := checkOrigin([]string{"https://Overlay.example", " http://studio.lan:8080 "})
	tests := []struct {
		name   string
		url    string
		origin string
		want   bool
	}{
		{"no origin", "http://127.0.0.1:7420/ws", "", true},
		{"localhost page", "http://127.0.0.1:7420/ws", "http://localhost:3000", true},
		{"loopback ip", "http://127.0.0.1:7420/ws", "http://127.0.0.1:7420", true},
		{"loopback v6", "http://[::1]:7420/ws", "http://[::1]:7420", true},
		{"foreign page", "http://127.0.0.1:7420/ws", "https://evil.example", false},
		{"rebound host", "http://attacker.example:7420/ws", "http://attacker.example:7420", false},
		{"lan host", "http://192.168.1.5:7420/ws", "http://192.168.1.5:7420", false},
		{"allowed origin", "http://127.0.0.1:7420/ws", "https://overlay.example", true},
		{"allowed with port", "http://127.0.0.1:7420/ws", "http://studio.lan:8080", true},
		{"allowed host wrong scheme", "http://127.0.0.1:7420/ws", "http://overlay.example", false},
		{"malformed", "http://127.0.0.1:7420/ws", "::bad", false},
		{"opaque", "http://127.0.0.1:7420/ws", "null", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := check(r); got != tt.want {
				t.Errorf("checkOrigin(%q) with Host %q = %v, want %v", tt.origin, r.Host, got, tt.want)
			}
		})
	}
}

func TestRebindingOriginRejected(t *testing.T) {
	_, ts := startServer(t, present.NewRecorder(0), &fakeControl{})
	// A rebound name points at the server, so Host and Origin agree.
	header := http.Header{
		"Host":   []string{"rebind.example:7420"},
		"Origin": []string{"http://rebind.example:7420"},
	}
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", header)
	if err == nil {
		conn.Close()
		t.Fatal("websocket opened for a rebound origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
}
