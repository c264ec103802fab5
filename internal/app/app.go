// Package app assembles the announcer from its configuration and runs its
// long-lived workers.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/live-announcer/internal/announce"
	"github.com/dgnsrekt/live-announcer/internal/audio"
	"github.com/dgnsrekt/live-announcer/internal/config"
	"github.com/dgnsrekt/live-announcer/internal/control"
	"github.com/dgnsrekt/live-announcer/internal/feed"
	"github.com/dgnsrekt/live-announcer/internal/feed/relay"
	"github.com/dgnsrekt/live-announcer/internal/observe"
	"github.com/dgnsrekt/live-announcer/internal/present"
	"github.com/dgnsrekt/live-announcer/internal/router"
	"github.com/dgnsrekt/live-announcer/internal/server"
	"github.com/dgnsrekt/live-announcer/internal/session"
	"github.com/dgnsrekt/live-announcer/internal/sounds"
	"github.com/dgnsrekt/live-announcer/internal/speech"
	"github.com/dgnsrekt/live-announcer/internal/speech/cache"
	"github.com/dgnsrekt/live-announcer/internal/speech/engines"
)

const shutdownTimeout = 5 * time.Second

// Options override the collaborators New would otherwise build.
type Options struct {
	Logger *log.Logger
	// Metrics is optional. When set, the server also serves /metrics.
	Metrics *observe.Metrics
	// Presenters receive every status and record in addition to the
	// history and the websocket hub.
	Presenters []present.Presenter

	// Dialer defaults to the relay client.
	Dialer feed.Dialer
	// Runner defaults to os/exec.
	Runner speech.Runner
	// Player defaults to the system audio device. NoPlayer leaves clips to
	// external players; synthesizer engines then cannot speak.
	Player   speech.PCMPlayer
	NoPlayer bool
}

// App is a fully wired announcer.
type App struct {
	Config   config.Config
	History  *present.Recorder
	Settings *control.Settings
	Control  *control.Surface
	Sessions *session.Controller
	Queue    *announce.Queue
	Router   *router.Router
	Library  *sounds.Library
	Speaker  *speech.Speaker
	Hub      *server.Hub

	server *server.Server
	cache  *cache.Tiered
	log    *log.Logger
}

// New builds every component described by cfg. Nothing runs until Run.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	runner := opts.Runner
	if runner == nil {
		runner = speech.ExecRunner{}
	}

	a := &App{Config: cfg, log: logger}

	if cfg.Sounds.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Sounds.File), 0o755); err != nil {
			return nil, fmt.Errorf("create sounds dir: %w", err)
		}
	}
	lib, err := sounds.Open(cfg.Sounds.File, cfg.Sounds.AssetsDir, logger.WithPrefix("sounds"))
	if err != nil {
		return nil, fmt.Errorf("open sound library: %w", err)
	}
	a.Library = lib

	player := opts.Player
	if player == nil && !opts.NoPlayer {
		p, err := audio.NewPlayer(audio.DefaultPlayerConfig())
		if err != nil {
			logger.Warn("Audio output unavailable, falling back to external players", "error", err)
		} else {
			player = p
		}
	}

	var speechCache speech.Cache
	if cfg.Speech.Cache.Enabled && cfg.Speech.Engine != engines.NameSystem {
		cc := cache.DefaultConfig()
		cc.MemoryCapacity = int64(cfg.Speech.Cache.MemoryMB) << 20
		cc.DiskCapacity = int64(cfg.Speech.Cache.DiskMB) << 20
		if cfg.Speech.Cache.DiskMB > 0 {
			cc.DiskPath = cfg.Speech.Cache.Dir
		}
		t, err := cache.New(cc)
		if err != nil {
			logger.Warn("Speech cache disabled", "error", err)
		} else {
			a.cache = t
			speechCache = t
		}
	}

	engine, err := engines.New(ctx, engines.Config{
		Engine: cfg.Speech.Engine,
		Piper:  cfg.Speech.Piper,
		GTTS:   cfg.Speech.GTTS,
		Polly:  cfg.Speech.Polly,
	}, engines.Deps{
		Runner: runner,
		Player: player,
		Cache:  speechCache,
		Key:    cache.Key,
		Logger: logger.WithPrefix("speech"),
	})
	if err != nil {
		a.closeCache()
		return nil, fmt.Errorf("speech engine: %w", err)
	}

	a.Settings = control.NewSettings()
	voices, err := engine.Voices(ctx)
	if err != nil {
		logger.Warn("Could not list voices", "engine", engine.Name(), "error", err)
	}
	a.Settings.SetCatalog(voices)
	if cfg.Speech.Voice != "" {
		if _, err := a.Settings.SetVoice(cfg.Speech.Voice); err != nil {
			logger.Warn("Configured voice not found", "voice", cfg.Speech.Voice, "error", err)
		}
	}
	a.Speaker = speech.NewSpeaker(engine, a.Settings, logger.WithPrefix("speech"))

	clips := audio.NewClipPlayer(lib, player, runner, logger.WithPrefix("audio"))
	a.Queue = announce.NewQueue(newBackend(a.Speaker, clips), announce.Config{
		Capacity: cfg.Queue.Capacity,
		Cooldown: cfg.Queue.Cooldown,
		Mute:     a.Settings,
		Logger:   logger.WithPrefix("queue"),
		Metrics:  opts.Metrics,
	})

	a.History = present.NewRecorder(cfg.History)
	a.Hub = server.NewHub(a.History, logger.WithPrefix("server"))
	presenter := append(present.Multi{a.History, a.Hub}, opts.Presenters...)

	a.Router = router.New(router.Config{
		Queue:           a.Queue,
		Presenter:       presenter,
		MaxSpeechWidth:  cfg.Router.MaxSpeechWidth,
		BigGiftDiamonds: cfg.Router.BigGiftDiamonds,
		Logger:          logger.WithPrefix("router"),
		Metrics:         opts.Metrics,
	})

	dialer := opts.Dialer
	if dialer == nil {
		dialer = relay.NewDialer(relay.Options{Logger: logger.WithPrefix("relay")})
	}
	a.Sessions = session.New(session.Config{
		Dialer:    dialer,
		Auth:      cfg.Relay,
		Queue:     a.Queue,
		Router:    a.Router,
		Presenter: presenter,
		Logger:    logger.WithPrefix("session"),
		Metrics:   opts.Metrics,
	})

	a.Control = control.New(control.Config{
		Settings:  a.Settings,
		Sessions:  a.Sessions,
		Queue:     a.Queue,
		Router:    a.Router,
		Library:   lib,
		Presenter: presenter,
		Logger:    logger.WithPrefix("control"),
	})

	if cfg.Server.Addr != "" {
		sc := server.Config{
			Addr:           cfg.Server.Addr,
			Hub:            a.Hub,
			Control:        a.Control,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Logger:         logger.WithPrefix("server"),
		}
		if opts.Metrics != nil {
			sc.Metrics = observe.Handler()
		}
		a.server = server.New(sc)
	}

	logger.Debug("Announcer assembled",
		"engine", engine.Name(),
		"voices", len(voices),
		"player", player != nil,
		"server", cfg.Server.Addr,
	)
	return a, nil
}

// Run drains the queue, watches the sound library and serves the control
// channel until ctx is cancelled or one of them fails. A configured
// username is connected once everything is running. The active session is
// closed before Run returns.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.Queue.Run(gctx) })
	if a.Config.Sounds.Watch {
		g.Go(func() error {
			return a.Library.Watch(gctx, func() {
				a.log.Info("Sound library reloaded", "file", a.Library.Path())
			})
		})
	}
	if a.server != nil {
		g.Go(func() error { return a.server.Run(gctx) })
	}
	if a.Config.Username != "" {
		g.Go(func() error {
			// Failures are already shown to the user; the app keeps running.
			_ = a.Control.Connect(gctx, a.Config.Username)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.Sessions.Close(closeCtx)
	})

	err := g.Wait()
	a.closeCache()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) closeCache() {
	if a.cache == nil {
		return
	}
	if err := a.cache.Close(); err != nil {
		a.log.Warn("Could not save speech cache index", "error", err)
	}
}

type (
	textSpeaker interface {
		Speak(ctx context.Context, text string) error
	}
	clipPlayer interface {
		PlayClip(ctx context.Context, clip string) error
	}
)

// backend routes speech and sound items to their renderers.
type backend struct {
	speaker textSpeaker
	clips   clipPlayer
}

func newBackend(s textSpeaker, c clipPlayer) announce.Backend {
	return backend{speaker: s, clips: c}
}

func (b backend) Speak(ctx context.Context, text string) error {
	return b.speaker.Speak(ctx, text)
}

func (b backend) PlayClip(ctx context.Context, clip string) error {
	return b.clips.PlayClip(ctx, clip)
}
