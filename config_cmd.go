package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# username to connect to on startup (optional)
username: ""
# mouse support (TUI-mode only)
mouse: false
# number of events kept on screen and replayed to new websocket clients
history: 50

# feed relay; ANNOUNCER_RELAY_URL and ANNOUNCER_API_KEY are used when empty
relay:
  url: ""
  api_key: ""
  session_id: ""

queue:
  # pending announcements kept before the oldest is dropped
  capacity: 50
  # pause after every sound clip
  cooldown: "1.2s"

router:
  # spoken chat messages are cut to this many cells
  max_speech_width: 200
  # gifts worth at least this many diamonds play the big gift sound
  big_gift_diamonds: 100

speech:
  # system, piper, gtts or polly
  engine: "system"
  # voice id or name; defaults to the engine's first voice
  voice: ""
  piper:
    binary: "piper"
    # model: "/path/to/en_US-lessac-medium.onnx"
    length_scale: 1.0
  gtts:
    binary: "gtts-cli"
    language: "en"
    slow: false
    requests_per_minute: 50
  polly:
    region: "us-east-1"
    engine: "neural"
    language: "en-US"
    timeout: "15s"
    requests_per_second: 5
  cache:
    enabled: true
    memory_mb: 32
    disk_mb: 256

sounds:
  # role assignments; edit with "announcer sounds set"
  # file: "~/.local/share/announcer/sounds.yml"
  # assets_dir: "~/.local/share/announcer/assets"
  # reload the sound file when it changes
  watch: true

server:
  # websocket and control endpoint; empty disables it
  addr: "127.0.0.1:7420"
  # browser origins allowed besides localhost pages
  # allowed_origins: ["https://overlay.example.com"]
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the announcer config file",
	Long:    paragraph(fmt.Sprintf("\n%s the announcer config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("announcer config\nannouncer config --config path/to/announcer.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Announcer", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
