package main

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
)

func getLogFilePath() (string, error) {
	return gap.NewScope(gap.User, appName).LogPath(appName + ".log")
}

// setupLog routes the default logger. The dashboard owns the terminal, so
// TUI sessions log to a file; headless runs log to stderr.
func setupLog(tui, debug bool) (func() error, error) {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	log.SetLevel(level)
	log.SetTimeFormat(time.Kitchen)

	if !tui {
		log.SetOutput(os.Stderr)
		log.SetReportTimestamp(true)
		return func() error { return nil }, nil
	}

	log.SetOutput(io.Discard)
	logFile, err := getLogFilePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil { //nolint:gosec
		return nil, err
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		return nil, err
	}
	log.SetOutput(f)
	log.SetReportTimestamp(true)
	return f.Close, nil
}
