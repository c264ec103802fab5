package ui

// Config contains TUI-specific configuration.
type Config struct {
	EnableMouse bool
	// Username prefills the connect prompt.
	Username string
	// StartDir is where the sound file picker opens. Defaults to the home
	// directory.
	StartDir string
}
