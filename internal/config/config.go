// Package config loads the announcer's typed configuration from viper.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/viper"

	"github.com/dgnsrekt/live-announcer/internal/announce"
	"github.com/dgnsrekt/live-announcer/internal/feed"
	"github.com/dgnsrekt/live-announcer/internal/present"
	"github.com/dgnsrekt/live-announcer/internal/router"
	"github.com/dgnsrekt/live-announcer/internal/speech/engines"
)

// Config is the complete announcer configuration.
type Config struct {
	Username string
	Debug    bool
	Mouse    bool
	History  int

	Relay  feed.Auth
	Queue  QueueConfig
	Router RouterConfig
	Speech SpeechConfig
	Sounds SoundsConfig
	Server ServerConfig
}

// QueueConfig configures the announcement queue.
type QueueConfig struct {
	Capacity int
	Cooldown time.Duration
}

// RouterConfig configures event routing.
type RouterConfig struct {
	MaxSpeechWidth  int
	BigGiftDiamonds int64
}

// SpeechConfig configures the speech engine and its cache.
type SpeechConfig struct {
	Engine string
	Voice  string
	Piper  engines.PiperConfig
	GTTS   engines.GTTSConfig
	Polly  engines.PollyConfig
	Cache  CacheConfig
}

// CacheConfig configures the rendered speech cache.
type CacheConfig struct {
	Enabled  bool
	Dir      string
	MemoryMB int
	DiskMB   int
}

// SoundsConfig locates the sound library.
type SoundsConfig struct {
	File      string
	AssetsDir string
	Watch     bool
}

// ServerConfig configures the HTTP and websocket channel.
type ServerConfig struct {
	// Addr disables the server when empty.
	Addr string
	// AllowedOrigins are extra browser origins for the websocket.
	AllowedOrigins []string
}

// SetDefaults registers every key's default on v. dataDir roots the
// default file locations.
func SetDefaults(v *viper.Viper, dataDir string) {
	v.SetDefault("username", "")
	v.SetDefault("debug", false)
	v.SetDefault("mouse", false)
	v.SetDefault("history", present.DefaultHistory)

	v.SetDefault("relay.url", "")
	v.SetDefault("relay.api_key", "")
	v.SetDefault("relay.session_id", "")

	v.SetDefault("queue.capacity", announce.DefaultCapacity)
	v.SetDefault("queue.cooldown", announce.DefaultCooldown)

	v.SetDefault("router.max_speech_width", router.DefaultMaxSpeechWidth)
	v.SetDefault("router.big_gift_diamonds", router.DefaultBigGiftDiamonds)

	v.SetDefault("speech.engine", engines.NameSystem)
	v.SetDefault("speech.voice", "")
	v.SetDefault("speech.piper.binary", "piper")
	v.SetDefault("speech.piper.model", "")
	v.SetDefault("speech.piper.config", "")
	v.SetDefault("speech.piper.length_scale", 0.0)
	v.SetDefault("speech.gtts.binary", "gtts-cli")
	v.SetDefault("speech.gtts.language", "en")
	v.SetDefault("speech.gtts.slow", false)
	v.SetDefault("speech.gtts.requests_per_minute", 50)
	v.SetDefault("speech.polly.region", "us-east-1")
	v.SetDefault("speech.polly.engine", "neural")
	v.SetDefault("speech.polly.language", "en-US")
	v.SetDefault("speech.polly.timeout", 15*time.Second)
	v.SetDefault("speech.polly.requests_per_second", 5.0)
	v.SetDefault("speech.cache.enabled", true)
	v.SetDefault("speech.cache.dir", filepath.Join(dataDir, "cache"))
	v.SetDefault("speech.cache.memory_mb", 32)
	v.SetDefault("speech.cache.disk_mb", 256)

	v.SetDefault("sounds.file", filepath.Join(dataDir, "sounds.yml"))
	v.SetDefault("sounds.assets_dir", filepath.Join(dataDir, "assets"))
	v.SetDefault("sounds.watch", true)

	v.SetDefault("server.addr", "127.0.0.1:7420")
}

// Load reads the configuration from v. Relay settings left empty in the
// file fall back to env.
func Load(v *viper.Viper, env feed.Auth) Config {
	return Config{
		Username: v.GetString("username"),
		Debug:    v.GetBool("debug"),
		Mouse:    v.GetBool("mouse"),
		History:  v.GetInt("history"),
		Relay: feed.Auth{
			RelayURL:  v.GetString("relay.url"),
			APIKey:    v.GetString("relay.api_key"),
			SessionID: v.GetString("relay.session_id"),
		}.Merge(env),
		Queue: QueueConfig{
			Capacity: v.GetInt("queue.capacity"),
			Cooldown: v.GetDuration("queue.cooldown"),
		},
		Router: RouterConfig{
			MaxSpeechWidth:  v.GetInt("router.max_speech_width"),
			BigGiftDiamonds: v.GetInt64("router.big_gift_diamonds"),
		},
		Speech: SpeechConfig{
			Engine: v.GetString("speech.engine"),
			Voice:  v.GetString("speech.voice"),
			Piper: engines.PiperConfig{
				Binary:      v.GetString("speech.piper.binary"),
				ModelPath:   v.GetString("speech.piper.model"),
				ConfigPath:  v.GetString("speech.piper.config"),
				LengthScale: v.GetFloat64("speech.piper.length_scale"),
			},
			GTTS: engines.GTTSConfig{
				Binary:            v.GetString("speech.gtts.binary"),
				Language:          v.GetString("speech.gtts.language"),
				Slow:              v.GetBool("speech.gtts.slow"),
				RequestsPerMinute: v.GetInt("speech.gtts.requests_per_minute"),
			},
			Polly: engines.PollyConfig{
				Region:            v.GetString("speech.polly.region"),
				Engine:            v.GetString("speech.polly.engine"),
				LanguageCode:      v.GetString("speech.polly.language"),
				Timeout:           v.GetDuration("speech.polly.timeout"),
				RequestsPerSecond: v.GetFloat64("speech.polly.requests_per_second"),
			},
			Cache: CacheConfig{
				Enabled:  v.GetBool("speech.cache.enabled"),
				Dir:      v.GetString("speech.cache.dir"),
				MemoryMB: v.GetInt("speech.cache.memory_mb"),
				DiskMB:   v.GetInt("speech.cache.disk_mb"),
			},
		},
		Sounds: SoundsConfig{
			File:      v.GetString("sounds.file"),
			AssetsDir: v.GetString("sounds.assets_dir"),
			Watch:     v.GetBool("sounds.watch"),
		},
		Server: ServerConfig{
			Addr:           v.GetString("server.addr"),
			AllowedOrigins: v.GetStringSlice("server.allowed_origins"),
		},
	}
}

// Validate checks value ranges. Relay settings are checked when a session
// starts, not here.
func (c Config) Validate() error {
	var errs []error
	if c.Queue.Capacity < 1 || c.Queue.Capacity > 10000 {
		errs = append(errs, fmt.Errorf("queue.capacity must be between 1 and 10000, got %d", c.Queue.Capacity))
	}
	if c.Queue.Cooldown < 0 || c.Queue.Cooldown > time.Minute {
		errs = append(errs, fmt.Errorf("queue.cooldown must be between 0 and 1m, got %s", c.Queue.Cooldown))
	}
	if c.Router.MaxSpeechWidth < 10 {
		errs = append(errs, fmt.Errorf("router.max_speech_width must be at least 10, got %d", c.Router.MaxSpeechWidth))
	}
	if c.Router.BigGiftDiamonds < 1 {
		errs = append(errs, fmt.Errorf("router.big_gift_diamonds must be positive, got %d", c.Router.BigGiftDiamonds))
	}
	if !slices.Contains(engines.Names, c.Speech.Engine) {
		errs = append(errs, fmt.Errorf("speech.engine must be one of %v, got %q", engines.Names, c.Speech.Engine))
	}
	if c.Speech.Engine == engines.NamePiper && c.Speech.Piper.ModelPath == "" {
		errs = append(errs, errors.New("speech.piper.model is required for the piper engine"))
	}
	if s := c.Speech.Piper.LengthScale; s != 0 && (s < 0.1 || s > 3.0) {
		errs = append(errs, fmt.Errorf("speech.piper.length_scale must be between 0.1 and 3.0, got %.2f", s))
	}
	if l := c.Speech.GTTS.Language; len(l) < 2 || len(l) > 5 {
		errs = append(errs, fmt.Errorf("speech.gtts.language must be 2-5 characters, got %q", l))
	}
	if c.Speech.Cache.Enabled && (c.Speech.Cache.MemoryMB < 1 || c.Speech.Cache.DiskMB < 0) {
		errs = append(errs, errors.New("speech.cache sizes must be positive"))
	}
	if c.History < 1 {
		errs = append(errs, fmt.Errorf("history must be positive, got %d", c.History))
	}
	return errors.Join(errs...)
}
