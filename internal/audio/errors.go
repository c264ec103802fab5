package audio

import "errors"

var (
	// ErrAudioUnavailable is returned when no output device can be opened.
	ErrAudioUnavailable = errors.New("audio output not available")

	// ErrNoClipPlayer is returned when neither a decoder nor an external
	// player is installed.
	ErrNoClipPlayer = errors.New("no decoder or external player available for clips")
)
