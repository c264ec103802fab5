package speech

import (
	"context"
	"encoding/binary"
	"errors"
)

// Cache stores rendered audio by key.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte) error
}

// KeyFunc derives a cache key for a rendering.
type KeyFunc func(engine, voice, text string) string

// SynthEngine plays a Synthesizer's output through a PCMPlayer. Renderings
// are cached when a Cache is set.
type SynthEngine struct {
	Synth  Synthesizer
	Player PCMPlayer
	Cache  Cache
	Key    KeyFunc
}

// Name implements Engine.
func (e *SynthEngine) Name() string { return e.Synth.Name() }

// Voices implements Engine.
func (e *SynthEngine) Voices(ctx context.Context) ([]Voice, error) {
	return e.Synth.Voices(ctx)
}

// Speak implements Engine.
func (e *SynthEngine) Speak(ctx context.Context, text string, voice Voice) error {
	if e.Player == nil {
		return Wrap(e.Name(), "speak", errors.New("no audio player"))
	}
	audio, err := e.render(ctx, text, voice)
	if err != nil {
		return err
	}
	return e.Player.PlayPCM(ctx, audio.PCM, audio.SampleRate)
}

func (e *SynthEngine) render(ctx context.Context, text string, voice Voice) (Audio, error) {
	var key string
	if e.Cache != nil && e.Key != nil {
		key = e.Key(e.Name(), voice.ID, text)
		if blob, ok := e.Cache.Get(key); ok {
			if a, ok := unpackAudio(blob); ok {
				return a, nil
			}
		}
	}

	audio, err := e.Synth.Synthesize(ctx, text, voice)
	if err != nil {
		return Audio{}, err
	}
	if len(audio.PCM) == 0 {
		return Audio{}, Wrap(e.Name(), "synthesize", ErrNoAudio)
	}
	if key != "" {
		// Cache failures only cost a re-render.
		_ = e.Cache.Put(key, packAudio(audio))
	}
	return audio, nil
}

// packAudio prefixes the PCM with its sample rate.
func packAudio(a Audio) []byte {
	out := make([]byte, 4+len(a.PCM))
	binary.LittleEndian.PutUint32(out, uint32(a.SampleRate))
	copy(out[4:], a.PCM)
	return out
}

func unpackAudio(b []byte) (Audio, bool) {
	if len(b) <= 4 {
		return Audio{}, false
	}
	rate := int(binary.LittleEndian.Uint32(b))
	if rate <= 0 {
		return Audio{}, false
	}
	return Audio{SampleRate: rate, PCM: b[4:]}, true
}
