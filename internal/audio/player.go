//go:build !nocgo

package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// PlayerConfig configures the output device.
type PlayerConfig struct {
	SampleRate int // 44100 or 48000
	BufferSize time.Duration
}

// DefaultPlayerConfig returns the default device configuration.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate: SampleRate,
		BufferSize: 100 * time.Millisecond,
	}
}

func validateConfig(cfg PlayerConfig) error {
	if cfg.SampleRate != 44100 && cfg.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", cfg.SampleRate)
	}
	if cfg.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}
	return nil
}

// oto allows a single context per process.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

// Player plays mono PCM on the default output device. One PlayPCM runs at a
// time; concurrent callers wait their turn.
type Player struct {
	rate int
	ctx  *oto.Context

	mu sync.Mutex
}

// NewPlayer opens the output device.
func NewPlayer(cfg PlayerConfig) (*Player, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	otoOnce.Do(func() {
		var ready chan struct{}
		otoCtx, ready, otoErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   cfg.SampleRate,
			ChannelCount: Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   cfg.BufferSize,
		})
		if otoErr == nil {
			<-ready
		}
	})
	if otoErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrAudioUnavailable, otoErr)
	}
	return &Player{rate: cfg.SampleRate, ctx: otoCtx}, nil
}

// PlayPCM plays pcm recorded at sampleRate and returns once it has been
// heard or ctx is done.
func (p *Player) PlayPCM(ctx context.Context, pcm []byte, sampleRate int) error {
	data, err := Resample(pcm, sampleRate, p.rate)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// data stays referenced by the reader until Close.
	player := p.ctx.NewPlayer(bytes.NewReader(data))
	defer player.Close()
	player.Play()

	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}
