package announce

import "fmt"

// Kind distinguishes the two announcement variants.
type Kind int

const (
	// KindSpeech is synthesized text.
	KindSpeech Kind = iota
	// KindSound is a short audio clip.
	KindSound
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindSpeech:
		return "speech"
	case KindSound:
		return "sound"
	default:
		return "unknown"
	}
}

// Item is a unit of audio output work. Items are values; once enqueued they
// are never mutated.
type Item struct {
	Kind Kind
	// Text is set for speech items.
	Text string
	// Clip is set for sound items. It is either a sound role name or a path.
	Clip string
}

// Speech returns an item that speaks text.
func Speech(text string) Item {
	return Item{Kind: KindSpeech, Text: text}
}

// Sound returns an item that plays the clip identified by clip.
func Sound(clip string) Item {
	return Item{Kind: KindSound, Clip: clip}
}

func (i Item) String() string {
	if i.Kind == KindSound {
		return fmt.Sprintf("sound(%s)", i.Clip)
	}
	return fmt.Sprintf("speech(%q)", i.Text)
}
