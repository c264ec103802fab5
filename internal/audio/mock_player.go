package audio

import (
	"context"
	"sync"
	"time"
)

// Playback is one call recorded by MockPlayer.
type Playback struct {
	PCM        []byte
	SampleRate int
}

// MockPlayer records PlayPCM calls without producing sound.
type MockPlayer struct {
	// Delay simulates playback time.
	Delay time.Duration
	// Err is returned from every call when set.
	Err error

	mu    sync.Mutex
	plays []Playback
}

// PlayPCM records the call and waits out Delay.
func (m *MockPlayer) PlayPCM(ctx context.Context, pcm []byte, sampleRate int) error {
	m.mu.Lock()
	m.plays = append(m.plays, Playback{PCM: pcm, SampleRate: sampleRate})
	delay, err := m.Delay, m.Err
	m.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Plays returns the recorded calls.
func (m *MockPlayer) Plays() []Playback {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Playback(nil), m.plays...)
}
