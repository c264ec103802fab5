package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mitchellh/go-homedir"

	"github.com/dgnsrekt/live-announcer/internal/control"
	"github.com/dgnsrekt/live-announcer/internal/sounds"
)

func (m model) roleView() string {
	var b strings.Builder
	b.WriteString(promptStyle("Assign a sound to"))
	for i, r := range sounds.Roles {
		cursor := "  "
		if i == m.roleIndex {
			cursor = promptStyle("> ")
		}
		fmt.Fprintf(&b, "\n%s%s", cursor, r)
	}
	return b.String()
}

func (m model) updateChooseRole(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "esc", "q":
		m.setState(stateBrowse)
	case "up", "k":
		if m.roleIndex > 0 {
			m.roleIndex--
		}
	case "down", "j":
		if m.roleIndex < len(sounds.Roles)-1 {
			m.roleIndex++
		}
	case "enter":
		m.role = sounds.Roles[m.roleIndex]
		m.picker = newPicker(m.cfg.StartDir)
		m.setState(statePickFile)
		cmds := []tea.Cmd{m.picker.Init()}
		if m.height > 0 {
			var cmd tea.Cmd
			m.picker, cmd = m.picker.Update(tea.WindowSizeMsg{Width: m.width, Height: m.viewport.Height})
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	case "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

// newPicker returns a file picker limited to audio files.
func newPicker(dir string) filepicker.Model {
	fp := filepicker.New()
	fp.AllowedTypes = control.AudioExtensions
	fp.ShowHidden = false
	if dir == "" {
		if home, err := homedir.Dir(); err == nil {
			dir = home
		} else {
			dir = "."
		}
	}
	fp.CurrentDirectory = dir
	return fp
}

func (m model) updatePickFile(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			m.setState(stateBrowse)
			return m, nil
		case "ctrl+c":
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)

	if ok, path := m.picker.DidSelectFile(msg); ok {
		role := string(m.role)
		m.setState(stateBrowse)
		return m, tea.Batch(cmd, m.run(func(_ context.Context, c Control) (string, error) {
			if err := c.AssignSound(role, path); err != nil {
				return "", err
			}
			return fmt.Sprintf("%s sound set", role), nil
		}))
	}
	if ok, path := m.picker.DidSelectDisabledFile(msg); ok {
		cmd := m.showStatusMessage(fmt.Sprintf("%s is not an audio file", path), true)
		return m, cmd
	}
	return m, cmd
}
