package engines

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/live-announcer/internal/audio"
	"github.com/dgnsrekt/live-announcer/internal/speech"
	"golang.org/x/time/rate"
)

const (
	gttsSampleRate = 24000
	maxGTTSText    = 5000
	maxMP3Size     = 50 << 20
)

// gttsAccents are the Google Translate accents for English, keyed by the
// voice ID "lang:tld".
var gttsAccents = []speech.Voice{
	{ID: "en:com", Name: "English (US)", Language: "en-US"},
	{ID: "en:co.uk", Name: "English (UK)", Language: "en-GB"},
	{ID: "en:com.au", Name: "English (Australia)", Language: "en-AU"},
	{ID: "en:co.in", Name: "English (India)", Language: "en-IN"},
	{ID: "en:ca", Name: "English (Canada)", Language: "en-CA"},
}

// GTTSConfig configures the gTTS engine.
type GTTSConfig struct {
	Binary string
	// Language is used when a voice does not name one. Defaults to "en".
	Language string
	Slow     bool
	// RequestsPerMinute paces calls to Google. Defaults to 50.
	RequestsPerMinute int
}

// GTTS synthesizes through gtts-cli and decodes the MP3 with ffmpeg.
type GTTS struct {
	cfg     GTTSConfig
	runner  speech.Runner
	decoder *audio.Decoder
	limiter *rate.Limiter
}

// NewGTTS returns a gTTS synthesizer.
func NewGTTS(cfg GTTSConfig, runner speech.Runner) (*GTTS, error) {
	if cfg.Binary == "" {
		cfg.Binary = "gtts-cli"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 50
	}
	return &GTTS{
		cfg:     cfg,
		runner:  runner,
		decoder: audio.NewDecoder(runner),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
	}, nil
}

// Name implements speech.Synthesizer.
func (*GTTS) Name() string { return NameGTTS }

// Voices implements speech.Synthesizer.
func (*GTTS) Voices(context.Context) ([]speech.Voice, error) {
	return append([]speech.Voice(nil), gttsAccents...), nil
}

// Synthesize implements speech.Synthesizer.
func (g *GTTS) Synthesize(ctx context.Context, text string, voice speech.Voice) (speech.Audio, error) {
	if err := checkText(NameGTTS, text, maxGTTSText); err != nil {
		return speech.Audio{}, err
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return speech.Audio{}, speech.Wrap(NameGTTS, "synthesize", fmt.Errorf("rate limit wait cancelled: %w", err))
	}

	lang, tld := g.cfg.Language, "com"
	if l, t, ok := strings.Cut(voice.ID, ":"); ok {
		lang, tld = l, t
	}
	// "-" makes gtts-cli read the text from stdin.
	args := []string{"-", "-l", lang, "-t", tld, "-o", "-"}
	if g.cfg.Slow {
		args = append(args, "--slow")
	}

	mp3, err := g.runner.Run(ctx, speech.Command{Name: g.cfg.Binary, Args: args, Stdin: []byte(text)})
	if err != nil {
		return speech.Audio{}, speech.Wrap(NameGTTS, "synthesize", err)
	}
	if len(mp3) == 0 {
		return speech.Audio{}, speech.Wrap(NameGTTS, "synthesize", errors.New("gtts-cli produced no MP3 output"))
	}
	if len(mp3) > maxMP3Size {
		return speech.Audio{}, speech.Wrap(NameGTTS, "synthesize", fmt.Errorf("MP3 output too large: %d bytes", len(mp3)))
	}

	pcm, err := g.decoder.Decode(ctx, mp3, gttsSampleRate)
	if err != nil {
		return speech.Audio{}, speech.Wrap(NameGTTS, "decode", err)
	}
	return speech.Audio{PCM: pcm, SampleRate: gttsSampleRate}, nil
}
