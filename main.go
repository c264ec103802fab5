// Package main provides the entry point for the announcer CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/live-announcer/internal/app"
	"github.com/dgnsrekt/live-announcer/internal/config"
	"github.com/dgnsrekt/live-announcer/internal/feed"
	"github.com/dgnsrekt/live-announcer/internal/observe"
	"github.com/dgnsrekt/live-announcer/internal/present"
	"github.com/dgnsrekt/live-announcer/ui"
)

const appName = "announcer"

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	headless   bool
	useTUI     bool

	rootCmd = &cobra.Command{
		Use:   "announcer [USERNAME]",
		Short: "Read a TikTok live stream out loud",
		Long: paragraph(
			fmt.Sprintf("\nAnnounce chat, gifts, follows and like milestones from a live stream, %s.", keyword("out loud")),
		),
		Example: paragraph("announcer\nannouncer @someone\nannouncer --headless --engine piper @someone"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

// loadConfig reads the typed configuration, filling relay auth from the
// environment.
func loadConfig() (config.Config, error) {
	auth, err := feed.AuthFromEnv()
	if err != nil {
		return config.Config{}, err
	}
	cfg := config.Load(viper.GetViper(), auth)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}
	headless = viper.GetBool("headless")
	useTUI = !headless && term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
	return nil
}

func execute(_ *cobra.Command, args []string) error {
	closer, err := setupLog(useTUI, viper.GetBool("debug"))
	if err != nil {
		return err
	}
	defer closer() //nolint:errcheck

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.Username = strings.TrimPrefix(args[0], "@")
	}

	shutdownMetrics, err := observe.InitProvider()
	if err != nil {
		return fmt.Errorf("unable to start metrics: %w", err)
	}
	defer func() { _ = shutdownMetrics(context.Background()) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := app.Options{
		Logger:  log.Default(),
		Metrics: observe.DefaultMetrics(),
	}
	if !useTUI {
		opts.Presenters = append(opts.Presenters, logPresenter{})
	}
	a, err := app.New(ctx, cfg, opts)
	if err != nil {
		return err
	}

	if !useTUI {
		log.Info("Announcer running", "engine", cfg.Speech.Engine, "server", cfg.Server.Addr, "username", cfg.Username)
		return a.Run(ctx)
	}
	return runTUI(ctx, cfg, a)
}

func runTUI(ctx context.Context, cfg config.Config, a *app.App) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := ui.NewProgram(ui.Config{
		EnableMouse: cfg.Mouse,
		Username:    cfg.Username,
	}, ui.Deps{
		Control:  a.Control,
		History:  a.History,
		Settings: a.Settings,
	})

	errc := make(chan error, 1)
	go func() {
		errc <- a.Run(ctx)
		p.Quit()
	}()

	_, uiErr := p.Run()
	cancel()
	runErr := <-errc
	if uiErr != nil {
		return fmt.Errorf("unable to run tui program: %w", uiErr)
	}
	return runErr
}

// logPresenter prints records in headless mode.
type logPresenter struct{}

func (logPresenter) PublishStatus(s present.Status) {
	log.Info("Status", "connected", s.Connected, "username", s.Username, "room", s.RoomID, "reason", s.Reason)
}

func (logPresenter) PublishEvent(r present.Record) {
	if r.Type == present.TypeError {
		log.Error(r.Message, "type", r.Type)
		return
	}
	log.Info(r.Message, "type", r.Type)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().Bool("debug", false, "log debug output")
	rootCmd.PersistentFlags().String("engine", "", "speech engine (system, piper, gtts, polly)")
	rootCmd.PersistentFlags().String("voice", "", "voice id or name")
	rootCmd.Flags().BoolVar(&headless, "headless", false, "run without the dashboard, logging events to stderr")
	rootCmd.Flags().String("addr", "", "websocket control address (empty string keeps the config value)")
	rootCmd.Flags().BoolP("mouse", "m", false, "enable mouse wheel (TUI-mode only)")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("speech.engine", rootCmd.PersistentFlags().Lookup("engine"))
	_ = viper.BindPFlag("speech.voice", rootCmd.PersistentFlags().Lookup("voice"))
	_ = viper.BindPFlag("headless", rootCmd.Flags().Lookup("headless"))
	_ = viper.BindPFlag("server.addr", rootCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	rootCmd.AddCommand(configCmd, manCmd, voicesCmd, soundsCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, appName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, appName)}, dirs...)
	}

	if c := os.Getenv("ANNOUNCER_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	dataDir, err := scope.DataPath("")
	if err != nil {
		dataDir = filepath.Join(dirs[0], "data")
	}
	config.SetDefaults(viper.GetViper(), dataDir)

	viper.SetConfigName(appName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(appName)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], appName+".yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
