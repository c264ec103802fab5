package engines

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/dgnsrekt/live-announcer/internal/speech"
)

const (
	piperSampleRate = 22050
	maxPiperText    = 5000
)

// PiperConfig configures the Piper engine.
type PiperConfig struct {
	Binary string
	// ModelPath is the .onnx voice model. Required.
	ModelPath string
	// ConfigPath defaults to the model path with a .json extension.
	ConfigPath string
	// LengthScale slows (>1) or speeds up (<1) speech. Zero keeps the
	// model default.
	LengthScale float64
}

// Piper is an offline neural synthesizer. Multi-speaker models expose each
// speaker as a voice.
type Piper struct {
	cfg        PiperConfig
	runner     speech.Runner
	sampleRate int
	speakers   map[string]int
}

type piperModelConfig struct {
	Audio struct {
		SampleRate int `json:"sample_rate"`
	} `json:"audio"`
	SpeakerIDMap map[string]int `json:"speaker_id_map"`
}

// NewPiper validates cfg and reads the model's voice config.
func NewPiper(cfg PiperConfig, runner speech.Runner) (*Piper, error) {
	if cfg.ModelPath == "" {
		return nil, speech.Wrap(NamePiper, "init", errors.New("model path is required"))
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, speech.Wrap(NamePiper, "init", fmt.Errorf("model file not found: %w", err))
	}
	if cfg.ConfigPath == "" {
		cfg.ConfigPath = strings.TrimSuffix(cfg.ModelPath, filepath.Ext(cfg.ModelPath)) + ".onnx.json"
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			cfg.ConfigPath = strings.TrimSuffix(cfg.ModelPath, filepath.Ext(cfg.ModelPath)) + ".json"
		}
	}
	if cfg.Binary == "" {
		cfg.Binary = "piper"
	}

	p := &Piper{cfg: cfg, runner: runner, sampleRate: piperSampleRate}
	if data, err := os.ReadFile(cfg.ConfigPath); err == nil {
		var mc piperModelConfig
		if err := json.Unmarshal(data, &mc); err != nil {
			return nil, speech.Wrap(NamePiper, "init", fmt.Errorf("parse model config: %w", err))
		}
		if mc.Audio.SampleRate > 0 {
			p.sampleRate = mc.Audio.SampleRate
		}
		p.speakers = mc.SpeakerIDMap
	}
	return p, nil
}

// Name implements speech.Synthesizer.
func (*Piper) Name() string { return NamePiper }

// Voices implements speech.Synthesizer.
func (p *Piper) Voices(context.Context) ([]speech.Voice, error) {
	model := strings.TrimSuffix(filepath.Base(p.cfg.ModelPath), filepath.Ext(p.cfg.ModelPath))
	if len(p.speakers) == 0 {
		return []speech.Voice{{ID: "", Name: model}}, nil
	}
	names := make([]string, 0, len(p.speakers))
	for name := range p.speakers {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int { return p.speakers[a] - p.speakers[b] })

	voices := make([]speech.Voice, 0, len(names))
	for _, name := range names {
		voices = append(voices, speech.Voice{ID: strconv.Itoa(p.speakers[name]), Name: name})
	}
	return voices, nil
}

// Synthesize implements speech.Synthesizer.
func (p *Piper) Synthesize(ctx context.Context, text string, voice speech.Voice) (speech.Audio, error) {
	if err := checkText(NamePiper, text, maxPiperText); err != nil {
		return speech.Audio{}, err
	}

	args := []string{"--model", p.cfg.ModelPath, "--output-raw", "--quiet"}
	if _, err := os.Stat(p.cfg.ConfigPath); err == nil {
		args = append(args, "--config", p.cfg.ConfigPath)
	}
	if p.cfg.LengthScale > 0 {
		args = append(args, "--length-scale", strconv.FormatFloat(p.cfg.LengthScale, 'f', 2, 64))
	}
	if voice.ID != "" {
		args = append(args, "--speaker", voice.ID)
	}

	out, err := p.runner.Run(ctx, speech.Command{
		Name:  p.cfg.Binary,
		Args:  args,
		Stdin: []byte(text + "\n"),
	})
	if err != nil {
		return speech.Audio{}, speech.Wrap(NamePiper, "synthesize", err)
	}
	if len(out) == 0 {
		return speech.Audio{}, speech.Wrap(NamePiper, "synthesize", speech.ErrNoAudio)
	}
	if len(out)%2 != 0 {
		out = out[:len(out)-1]
	}
	return speech.Audio{PCM: out, SampleRate: p.sampleRate}, nil
}
