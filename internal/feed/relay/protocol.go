package relay

import (
	"encoding/json"
	"fmt"

	"github.com/dgnsrekt/live-announcer/internal/feed"
)

// Message types sent by the relay in addition to the feed event types.
const (
	typeError     = "error"
	typeStreamEnd = "streamEnd"
)

// envelope is one relay frame: {"type": "...", "data": {...}}.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type errorData struct {
	Message string `json:"message"`
}

// decode turns a frame into a feed event. Unknown types return nil, nil.
func decode(raw []byte) (feed.Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode relay frame: %w", err)
	}

	var (
		ev  feed.Event
		err error
	)
	switch feed.EventType(env.Type) {
	case feed.TypeConnected:
		ev, err = decodeInto[feed.Connected](env.Data)
	case feed.TypeDisconnected:
		ev, err = decodeInto[feed.Disconnected](env.Data)
	case feed.TypeChat:
		ev, err = decodeInto[feed.Chat](env.Data)
	case feed.TypeLike:
		ev, err = decodeInto[feed.Like](env.Data)
	case feed.TypeFollow:
		ev, err = decodeInto[feed.Follow](env.Data)
	case feed.TypeGift:
		ev, err = decodeInto[feed.Gift](env.Data)
	case feed.TypeShare:
		ev, err = decodeInto[feed.Share](env.Data)
	default:
		switch env.Type {
		case typeError:
			var d errorData
			if len(env.Data) > 0 {
				_ = json.Unmarshal(env.Data, &d)
			}
			return nil, &RemoteError{Message: d.Message}
		case typeStreamEnd:
			return feed.Disconnected{Reason: "stream ended"}, nil
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return ev, nil
}

func decodeInto[T feed.Event](data json.RawMessage) (feed.Event, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// encode builds a relay frame for e. Used by tests and local relays.
func encode(e feed.Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: string(e.Type()), Data: data})
}

// RemoteError is an error frame reported by the relay.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return "relay error"
	}
	return e.Message
}
