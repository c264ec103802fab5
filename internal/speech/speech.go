// Package speech turns announcement text into audible speech. Engines come
// in two shapes: system engines that speak straight to the default output
// device, and synthesizers that return PCM for the announcer's own player.
package speech

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyText is returned when there is nothing to say.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrTextTooLong is returned when text exceeds an engine's limit.
	ErrTextTooLong = errors.New("text too long")

	// ErrEngineUnavailable is returned when an engine's binary or service
	// cannot be reached.
	ErrEngineUnavailable = errors.New("speech engine is not available")

	// ErrUnknownEngine is returned for unrecognized engine names.
	ErrUnknownEngine = errors.New("unknown speech engine")

	// ErrNoAudio is returned when synthesis produced no samples.
	ErrNoAudio = errors.New("engine produced no audio")
)

// Voice is one selectable voice of an engine.
type Voice struct {
	// ID is what the engine is invoked with.
	ID string `json:"id"`
	// Name is a short display name.
	Name string `json:"name"`
	// Gender, when the engine reports it.
	Gender string `json:"gender,omitempty"`
	// Language tag, when the engine reports it.
	Language string `json:"language,omitempty"`
}

// Label returns "Name (Gender)" or just the name.
func (v Voice) Label() string {
	name := v.Name
	if name == "" {
		name = v.ID
	}
	if v.Gender != "" {
		return fmt.Sprintf("%s (%s)", name, v.Gender)
	}
	return name
}

// Engine speaks text in a voice, blocking until playback has finished.
type Engine interface {
	Name() string
	Voices(ctx context.Context) ([]Voice, error)
	Speak(ctx context.Context, text string, voice Voice) error
}

// Audio is mono signed 16-bit little-endian PCM.
type Audio struct {
	PCM        []byte
	SampleRate int
}

// Synthesizer renders text to PCM without playing it.
type Synthesizer interface {
	Name() string
	Voices(ctx context.Context) ([]Voice, error)
	Synthesize(ctx context.Context, text string, voice Voice) (Audio, error)
}

// PCMPlayer plays PCM, blocking until playback has finished.
type PCMPlayer interface {
	PlayPCM(ctx context.Context, pcm []byte, sampleRate int) error
}

// EngineError adds engine and operation context to an error.
type EngineError struct {
	Engine string
	Op     string
	Err    error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Engine, e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Wrap returns err wrapped in an EngineError, or nil.
func Wrap(engine, op string, err error) error {
	if err == nil {
		return nil
	}
	return &EngineError{Engine: engine, Op: op, Err: err}
}
