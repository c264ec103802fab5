package speech

import (
	"context"

	"github.com/charmbracelet/log"
)

// VoiceSource supplies the voice to use for the next utterance.
type VoiceSource interface {
	Voice() Voice
}

// Speaker speaks announcement text with whatever voice is selected at the
// moment the call starts.
type Speaker struct {
	engine Engine
	voices VoiceSource
	log    *log.Logger
}

// NewSpeaker returns a Speaker for engine.
func NewSpeaker(engine Engine, voices VoiceSource, logger *log.Logger) *Speaker {
	if logger == nil {
		logger = log.Default().WithPrefix("speech")
	}
	return &Speaker{engine: engine, voices: voices, log: logger}
}

// Engine returns the underlying engine.
func (s *Speaker) Engine() Engine { return s.engine }

// Speak normalizes text and speaks it.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	text = Normalize(text)
	if text == "" {
		return ErrEmptyText
	}
	var v Voice
	if s.voices != nil {
		v = s.voices.Voice()
	}
	s.log.Debug("Speaking", "engine", s.engine.Name(), "voice", v.ID, "chars", len(text))
	return s.engine.Speak(ctx, text, v)
}
