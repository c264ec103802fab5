package engines

import (
	"context"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/live-announcer/internal/speech"
)

// Engine names.
const (
	NameSystem = "system"
	NamePiper  = "piper"
	NameGTTS   = "gtts"
	NamePolly  = "polly"
)

// Names lists every engine that New understands.
var Names = []string{NameSystem, NamePiper, NameGTTS, NamePolly}

// Config selects and configures an engine.
type Config struct {
	Engine string
	Piper  PiperConfig
	GTTS   GTTSConfig
	Polly  PollyConfig
}

// Deps are the collaborators shared by all engines.
type Deps struct {
	Runner speech.Runner
	// Player receives synthesizer output. Unused by the system engine.
	Player speech.PCMPlayer
	// Cache is optional.
	Cache  speech.Cache
	Key    speech.KeyFunc
	Logger *log.Logger
}

// New builds the engine named in cfg.
func New(ctx context.Context, cfg Config, deps Deps) (speech.Engine, error) {
	if deps.Runner == nil {
		deps.Runner = speech.ExecRunner{}
	}
	if deps.Logger == nil {
		deps.Logger = log.Default().WithPrefix("speech")
	}

	name := cfg.Engine
	if name == "" {
		name = NameSystem
	}
	if !slices.Contains(Names, name) {
		return nil, fmt.Errorf("%w: %q", speech.ErrUnknownEngine, name)
	}
	if name == NameSystem {
		return NewSystem(deps.Runner), nil
	}

	var (
		synth speech.Synthesizer
		err   error
	)
	switch name {
	case NamePiper:
		synth, err = NewPiper(cfg.Piper, deps.Runner)
	case NameGTTS:
		synth, err = NewGTTS(cfg.GTTS, deps.Runner)
	case NamePolly:
		synth, err = NewPolly(ctx, cfg.Polly, nil)
	}
	if err != nil {
		return nil, err
	}
	deps.Logger.Debug("Speech engine ready", "engine", name, "cache", deps.Cache != nil)
	return &speech.SynthEngine{
		Synth:  synth,
		Player: deps.Player,
		Cache:  deps.Cache,
		Key:    deps.Key,
	}, nil
}

// checkText applies the common text limits.
func checkText(engine, text string, limit int) error {
	if text == "" {
		return speech.Wrap(engine, "synthesize", speech.ErrEmptyText)
	}
	if len(text) > limit {
		return speech.Wrap(engine, "synthesize",
			fmt.Errorf("%w: %d characters (max %d)", speech.ErrTextTooLong, len(text), limit))
	}
	return nil
}
