package announce

import "context"

// Backend renders announcements to the shared audio output. Both calls block
// until the output has been rendered or has failed. The queue guarantees that
// at most one call is outstanding at a time.
type Backend interface {
	// Speak synthesizes and plays text with the active voice.
	Speak(ctx context.Context, text string) error
	// PlayClip plays the clip identified by a sound role or a file path.
	PlayClip(ctx context.Context, clip string) error
}

// MuteState reports whether new announcements should be suppressed.
type MuteState interface {
	Muted() bool
}

// Enqueuer accepts announcements.
type Enqueuer interface {
	Enqueue(item Item) bool
}
