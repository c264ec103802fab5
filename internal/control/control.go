// Package control is the command surface shared by the terminal UI and the
// websocket control channel.
package control

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/live-announcer/internal/announce"
	"github.com/dgnsrekt/live-announcer/internal/feed"
	"github.com/dgnsrekt/live-announcer/internal/present"
	"github.com/dgnsrekt/live-announcer/internal/router"
	"github.com/dgnsrekt/live-announcer/internal/sounds"
)

var (
	// ErrUnknownVoice is returned when no catalog voice matches.
	ErrUnknownVoice = errors.New("unknown voice")

	// ErrNoVoices is returned when the engine offers no voices.
	ErrNoVoices = errors.New("no voices available")

	// ErrUnknownSample is returned for unrecognized sample event names.
	ErrUnknownSample = errors.New("unknown sample event")
)

// AudioExtensions are the file types offered when picking a sound.
var AudioExtensions = sounds.AudioExtensions

// Sessions starts and ends feed sessions.
type Sessions interface {
	StartSession(ctx context.Context, username string) error
	EndSession(ctx context.Context) error
}

// Library stores sound role assignments.
type Library interface {
	Assign(role sounds.Role, path string) error
}

// EventRouter receives injected sample events.
type EventRouter interface {
	Handle(e feed.Event)
}

// Config configures a Surface.
type Config struct {
	Settings  *Settings
	Sessions  Sessions
	Queue     announce.Enqueuer
	Router    EventRouter
	Library   Library
	Presenter present.Presenter
	Logger    *log.Logger
}

// Surface applies control commands to the running announcer.
type Surface struct {
	settings  *Settings
	sessions  Sessions
	queue     announce.Enqueuer
	router    EventRouter
	library   Library
	presenter present.Presenter
	log       *log.Logger
}

// New returns a Surface.
func New(cfg Config) *Surface {
	if cfg.Settings == nil {
		cfg.Settings = NewSettings()
	}
	if cfg.Presenter == nil {
		cfg.Presenter = present.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default().WithPrefix("control")
	}
	return &Surface{
		settings:  cfg.Settings,
		sessions:  cfg.Sessions,
		queue:     cfg.Queue,
		router:    cfg.Router,
		library:   cfg.Library,
		presenter: cfg.Presenter,
		log:       cfg.Logger,
	}
}

// Settings returns the shared settings.
func (s *Surface) Settings() *Settings { return s.settings }

// SetMute overwrites the mute flag.
func (s *Surface) SetMute(muted bool) {
	s.settings.SetMuted(muted)
	s.log.Info("Mute changed", "muted", muted)
}

// ToggleMute flips the mute flag and returns the new value.
func (s *Surface) ToggleMute() bool {
	muted := s.settings.ToggleMute()
	s.log.Info("Mute changed", "muted", muted)
	return muted
}

// SetVoice selects a voice by id or name.
func (s *Surface) SetVoice(query string) (string, error) {
	v, err := s.settings.SetVoice(query)
	if err != nil {
		return "", err
	}
	s.announceVoice(v.Name)
	return v.Name, nil
}

// ToggleVoice cycles to the next voice.
func (s *Surface) ToggleVoice() (string, error) {
	v, err := s.settings.ToggleVoice()
	if err != nil {
		return "", err
	}
	s.announceVoice(v.Name)
	return v.Name, nil
}

func (s *Surface) announceVoice(name string) {
	s.log.Info("Voice changed", "voice", name)
	s.presenter.PublishEvent(present.Record{
		Type:    present.TypeSystem,
		Message: fmt.Sprintf("Now using %s voice", name),
		Meta:    map[string]string{"voice": name},
	})
}

// Connect starts a session for username.
func (s *Surface) Connect(ctx context.Context, username string) error {
	if s.sessions == nil {
		return errors.New("no session controller")
	}
	return s.sessions.StartSession(ctx, username)
}

// Disconnect ends the current session.
func (s *Surface) Disconnect(ctx context.Context) error {
	if s.sessions == nil {
		return nil
	}
	return s.sessions.EndSession(ctx)
}

// EnqueueSpeech queues text to be spoken. Blank text and muted enqueues
// report false.
func (s *Surface) EnqueueSpeech(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || s.queue == nil {
		return false
	}
	return s.queue.Enqueue(announce.Speech(text))
}

// EnqueueSound queues a clip by role name or path.
func (s *Surface) EnqueueSound(clip string) bool {
	clip = strings.TrimSpace(clip)
	if clip == "" || s.queue == nil {
		return false
	}
	return s.queue.Enqueue(announce.Sound(clip))
}

// AssignSound binds a sound role to an audio file, typically one chosen in
// the file picker.
func (s *Surface) AssignSound(role, path string) error {
	r, err := sounds.ParseRole(role)
	if err != nil {
		return err
	}
	if !sounds.IsAudioFile(path) {
		return fmt.Errorf("%w: %s", sounds.ErrUnsupportedFormat, path)
	}
	if s.library == nil {
		return errors.New("no sound library")
	}
	if err := s.library.Assign(r, path); err != nil {
		return err
	}
	s.presenter.PublishEvent(present.Record{
		Type:    present.TypeSystem,
		Message: fmt.Sprintf("Sound for %s set to %s", r, path),
		Meta:    map[string]string{"role": string(r), "path": path},
	})
	return nil
}

// InjectSample routes a synthetic event as if it came from the feed.
func (s *Surface) InjectSample(name string) error {
	e, ok := router.Sample(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSample, name)
	}
	if s.router == nil {
		return errors.New("no event router")
	}
	s.router.Handle(e)
	return nil
}
