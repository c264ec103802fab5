package audio

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dgnsrekt/live-announcer/internal/speech"
)

// maxDecodedSize caps ffmpeg output; ten minutes of mono 44.1 kHz audio.
const maxDecodedSize = 10 * 60 * SampleRate * 2

// Decoder converts compressed audio to mono s16le PCM with ffmpeg.
type Decoder struct {
	Runner speech.Runner
	Binary string
}

// NewDecoder returns a Decoder that runs ffmpeg from PATH.
func NewDecoder(runner speech.Runner) *Decoder {
	if runner == nil {
		runner = speech.ExecRunner{}
	}
	return &Decoder{Runner: runner, Binary: "ffmpeg"}
}

// Available reports whether the ffmpeg binary can be found.
func (d *Decoder) Available() error {
	return speech.CheckBinary(d.Binary)
}

// Decode converts in-memory audio data.
func (d *Decoder) Decode(ctx context.Context, data []byte, rate int) ([]byte, error) {
	return d.run(ctx, "pipe:0", data, rate)
}

// DecodeFile converts the audio file at path.
func (d *Decoder) DecodeFile(ctx context.Context, path string, rate int) ([]byte, error) {
	return d.run(ctx, path, nil, rate)
}

func (d *Decoder) run(ctx context.Context, input string, stdin []byte, rate int) ([]byte, error) {
	if rate <= 0 {
		rate = SampleRate
	}
	out, err := d.Runner.Run(ctx, speech.Command{
		Name: d.Binary,
		Args: []string{
			"-hide_banner", "-loglevel", "error",
			"-i", input,
			"-f", "s16le",
			"-acodec", "pcm_s16le",
			"-ar", strconv.Itoa(rate),
			"-ac", "1",
			"pipe:1",
		},
		Stdin: stdin,
	})
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("decode audio: %w", speech.ErrNoAudio)
	}
	if len(out) > maxDecodedSize {
		return nil, fmt.Errorf("decoded audio too large: %d bytes", len(out))
	}
	return out, nil
}
