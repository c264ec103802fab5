// Package feed defines the live event feed consumed by the announcer: the
// typed events a streaming session emits and the session handle used to
// connect, subscribe and disconnect.
package feed

// EventType names a feed event.
type EventType string

// Event types emitted by a session.
const (
	TypeConnected    EventType = "connected"
	TypeDisconnected EventType = "disconnected"
	TypeChat         EventType = "chat"
	TypeLike         EventType = "like"
	TypeFollow       EventType = "follow"
	TypeGift         EventType = "gift"
	TypeShare        EventType = "share"
)

// Event is implemented by every feed event.
type Event interface {
	Type() EventType
}

// Connected is emitted once the session has joined a room.
type Connected struct {
	RoomID string `json:"roomId"`
}

// Disconnected is emitted when the feed drops without being asked to.
type Disconnected struct {
	Reason string `json:"reason,omitempty"`
}

// Chat is a viewer comment.
type Chat struct {
	UniqueID string `json:"uniqueId"`
	Nickname string `json:"nickname,omitempty"`
	Comment  string `json:"comment"`
}

// Like reports one batch of likes from a viewer. LikeCount is the batch
// size. TotalLikeCount, when present, is the room's authoritative total.
type Like struct {
	UniqueID       string `json:"uniqueId"`
	Nickname       string `json:"nickname,omitempty"`
	LikeCount      int64  `json:"likeCount,omitempty"`
	TotalLikeCount *int64 `json:"totalLikeCount,omitempty"`
}

// Follow is a new follower.
type Follow struct {
	UniqueID string `json:"uniqueId"`
	Nickname string `json:"nickname,omitempty"`
}

// Gift is a gift event. Streakable gifts are reported repeatedly while the
// streak runs; RepeatEnd marks the terminal event of a streak.
type Gift struct {
	UniqueID     string `json:"uniqueId"`
	Nickname     string `json:"nickname,omitempty"`
	GiftName     string `json:"giftName"`
	DiamondCount int64  `json:"diamondCount"`
	RepeatEnd    bool   `json:"repeatEnd"`
	RepeatCount  int    `json:"repeatCount"`
}

// Share is a viewer sharing the stream.
type Share struct {
	UniqueID string `json:"uniqueId"`
	Nickname string `json:"nickname,omitempty"`
}

func (Connected) Type() EventType    { return TypeConnected }
func (Disconnected) Type() EventType { return TypeDisconnected }
func (Chat) Type() EventType         { return TypeChat }
func (Like) Type() EventType         { return TypeLike }
func (Follow) Type() EventType       { return TypeFollow }
func (Gift) Type() EventType         { return TypeGift }
func (Share) Type() EventType        { return TypeShare }

// DisplayName returns the nickname, falling back to the unique id.
func (c Chat) DisplayName() string {
	if c.Nickname != "" {
		return c.Nickname
	}
	return c.UniqueID
}

// Total returns a pointer to n, for building Like events.
func Total(n int64) *int64 {
	return &n
}
