package server

import (
	"encoding/json"

	"github.com/dgnsrekt/live-announcer/internal/present"
)

// Outbound message types.
const (
	TypeStatus = "status"
	TypeEvent  = "event"
	TypeResult = "result"
)

// Control operations accepted from clients.
const (
	OpConnect     = "connect"
	OpDisconnect  = "disconnect"
	OpSetMute     = "set-mute"
	OpToggleMute  = "toggle-mute"
	OpSetVoice    = "set-voice"
	OpToggleVoice = "toggle-voice"
	OpSpeak       = "speak"
	OpPlaySound   = "play-sound"
	OpAssignSound = "assign-sound"
	OpTest        = "test"
)

// Message is the envelope of every frame sent to clients.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Command is one control request from a client.
type Command struct {
	ID       string `json:"id,omitempty"`
	Op       string `json:"op"`
	Username string `json:"username,omitempty"`
	Muted    *bool  `json:"muted,omitempty"`
	Voice    string `json:"voice,omitempty"`
	Text     string `json:"text,omitempty"`
	Clip     string `json:"clip,omitempty"`
	Role     string `json:"role,omitempty"`
	Path     string `json:"path,omitempty"`
	Sample   string `json:"sample,omitempty"`
}

// Result answers a Command.
type Result struct {
	ID    string `json:"id,omitempty"`
	Op    string `json:"op"`
	OK    bool   `json:"ok"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

func encode(typ string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: typ, Data: data})
}

func encodeStatus(s present.Status) ([]byte, error) { return encode(TypeStatus, s) }
func encodeEvent(r present.Record) ([]byte, error)  { return encode(TypeEvent, r) }
