package audio

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/live-announcer/internal/speech"
)

// Resolver maps a clip identifier to a file on disk.
type Resolver interface {
	Resolve(clip string) (string, error)
}

// External is a command line player that takes a file argument.
type External struct {
	Name string
	Args []string
}

// DefaultExternals are tried in order when ffmpeg is missing.
var DefaultExternals = []External{
	{Name: "ffplay", Args: []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}},
	{Name: "afplay"},
	{Name: "paplay"},
	{Name: "aplay", Args: []string{"-q"}},
}

// ClipPlayer plays sound clips. Clips are decoded and sent to the PCM
// player when a decoder is available, otherwise an external player is run.
type ClipPlayer struct {
	Resolver  Resolver
	Player    speech.PCMPlayer
	Decoder   *Decoder
	Externals []External
	Runner    speech.Runner
	LookPath  func(string) (string, error)
	// MaxLength bounds how long one clip may hold the output.
	MaxLength time.Duration
	Logger    *log.Logger
}

// NewClipPlayer returns a ClipPlayer with the default fallbacks.
func NewClipPlayer(resolver Resolver, player speech.PCMPlayer, runner speech.Runner, logger *log.Logger) *ClipPlayer {
	if runner == nil {
		runner = speech.ExecRunner{}
	}
	if logger == nil {
		logger = log.Default().WithPrefix("audio")
	}
	return &ClipPlayer{
		Resolver:  resolver,
		Player:    player,
		Decoder:   NewDecoder(runner),
		Externals: DefaultExternals,
		Runner:    runner,
		LookPath:  exec.LookPath,
		MaxLength: MaxClipLength,
		Logger:    logger,
	}
}

// PlayClip resolves clip and blocks until it has played.
func (c *ClipPlayer) PlayClip(ctx context.Context, clip string) error {
	path, err := c.Resolver.Resolve(clip)
	if err != nil {
		return err
	}

	if c.Player != nil && c.Decoder != nil && c.lookup(c.Decoder.Binary) {
		pcm, err := c.Decoder.DecodeFile(ctx, path, SampleRate)
		if err != nil {
			return fmt.Errorf("play %s: %w", clip, err)
		}
		if limit := c.maxLength(); Duration(pcm, SampleRate) > limit {
			c.Logger.Warn("Clip too long, cutting it short", "clip", clip, "limit", limit)
			pcm = pcm[:pcmBytes(limit, SampleRate)]
		}
		return c.Player.PlayPCM(ctx, pcm, SampleRate)
	}

	for _, ext := range c.Externals {
		if !c.lookup(ext.Name) {
			continue
		}
		c.Logger.Debug("Playing clip with external player", "player", ext.Name, "path", path)
		args := append(append([]string{}, ext.Args...), path)
		_, err := c.Runner.Run(ctx, speech.Command{Name: ext.Name, Args: args, Timeout: c.maxLength()})
		if err != nil {
			return fmt.Errorf("play %s: %w", clip, err)
		}
		return nil
	}
	return ErrNoClipPlayer
}

// MaxClipLength is the default ClipPlayer.MaxLength. Sound clips are short
// cues; a longer file or a hung player is cut off here.
const MaxClipLength = 30 * time.Second

func (c *ClipPlayer) maxLength() time.Duration {
	if c.MaxLength <= 0 {
		return MaxClipLength
	}
	return c.MaxLength
}

func (c *ClipPlayer) lookup(name string) bool {
	lookPath := c.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	_, err := lookPath(name)
	return err == nil
}
