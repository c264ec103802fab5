package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Output format. Everything is converted to this before it reaches the
// device.
const (
	SampleRate = 44100
	Channels   = 1
	BitDepth   = 16
)

// ErrMisalignedPCM is returned for PCM whose length is not a whole number
// of 16-bit samples.
var ErrMisalignedPCM = errors.New("pcm data is not aligned to 16-bit samples")

// ValidatePCM checks that pcm is non-empty mono s16le.
func ValidatePCM(pcm []byte) error {
	if len(pcm) == 0 {
		return errors.New("empty pcm data")
	}
	if len(pcm)%2 != 0 {
		return fmt.Errorf("%w: %d bytes", ErrMisalignedPCM, len(pcm))
	}
	return nil
}

// Duration returns the playback length of mono s16le pcm at rate.
func Duration(pcm []byte, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	samples := len(pcm) / 2
	return time.Duration(samples) * time.Second / time.Duration(rate)
}

// Silence returns d of mono s16le silence at rate.
func Silence(d time.Duration, rate int) []byte {
	return make([]byte, pcmBytes(d, rate))
}

// pcmBytes is the size of d of mono s16le audio at rate.
func pcmBytes(d time.Duration, rate int) int {
	return int(d.Seconds()*float64(rate)) * 2
}

// Resample converts mono s16le pcm from one rate to another with linear
// interpolation.
func Resample(pcm []byte, from, to int) ([]byte, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("invalid sample rates %d -> %d", from, to)
	}
	if err := ValidatePCM(pcm); err != nil {
		return nil, err
	}
	if from == to {
		return pcm, nil
	}

	in := len(pcm) / 2
	ratio := float64(to) / float64(from)
	outSamples := int(float64(in) * ratio)
	out := make([]byte, outSamples*2)

	sample := func(i int) float64 {
		return float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	for i := range outSamples {
		pos := float64(i) / ratio
		idx := int(pos)
		var v float64
		if idx >= in-1 {
			v = sample(in - 1)
		} else {
			frac := pos - float64(idx)
			v = sample(idx)*(1-frac) + sample(idx+1)*frac
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out, nil
}
