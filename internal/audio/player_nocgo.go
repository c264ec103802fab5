//go:build nocgo

package audio

import (
	"context"
	"time"
)

// PlayerConfig configures the output device.
type PlayerConfig struct {
	SampleRate int
	BufferSize time.Duration
}

// DefaultPlayerConfig returns the default device configuration.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{SampleRate: SampleRate, BufferSize: 100 * time.Millisecond}
}

// Player is unavailable in nocgo builds.
type Player struct{}

// NewPlayer always fails in nocgo builds.
func NewPlayer(PlayerConfig) (*Player, error) {
	return nil, ErrAudioUnavailable
}

// PlayPCM always fails in nocgo builds.
func (*Player) PlayPCM(context.Context, []byte, int) error {
	return ErrAudioUnavailable
}
