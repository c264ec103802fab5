// Package ui provides the terminal dashboard for the announcer.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/live-announcer/internal/control"
	"github.com/dgnsrekt/live-announcer/internal/present"
	"github.com/dgnsrekt/live-announcer/internal/router"
	"github.com/dgnsrekt/live-announcer/internal/sounds"
)

const (
	statusMessageTimeout = time.Second * 3
	controlTimeout       = 30 * time.Second
	refreshInterval      = 30 * time.Second
	ellipsis             = "…"
)

// Control is the command surface driven by the keyboard.
type Control interface {
	Connect(ctx context.Context, username string) error
	Disconnect(ctx context.Context) error
	ToggleMute() bool
	ToggleVoice() (string, error)
	AssignSound(role, path string) error
	InjectSample(name string) error
}

// History is the presentation state the dashboard renders.
type History interface {
	Status() present.Status
	Records() []present.Record
	Total() int
	OnChange(fn func())
}

// Settings exposes the mute flag and voice selection.
type Settings interface {
	Snapshot() control.Snapshot
	OnChange(fn func(control.Snapshot))
}

// Deps are the dashboard's collaborators.
type Deps struct {
	Control  Control
	History  History
	Settings Settings
	// Copy defaults to the system clipboard.
	Copy func(string) error
}

// NewProgram returns a Tea program showing the live dashboard. History and
// settings changes are forwarded to the program as they happen.
func NewProgram(cfg Config, deps Deps) *tea.Program {
	log.Debug("Starting dashboard", "mouse", cfg.EnableMouse)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	p := tea.NewProgram(newModel(cfg, deps), opts...)

	// Publishers block in Send until the program reads the message, so no
	// control call may run inside Update.
	deps.History.OnChange(func() { p.Send(historyMsg{}) })
	if deps.Settings != nil {
		deps.Settings.OnChange(func(s control.Snapshot) { p.Send(settingsMsg(s)) })
	}
	return p
}

type (
	historyMsg  struct{}
	settingsMsg control.Snapshot
	refreshMsg  struct{}

	// resultMsg reports the outcome of a control command.
	resultMsg struct {
		text string
		err  error
	}
	statusMessageTimeoutMsg struct{}
)

// state is the dashboard's input mode.
type state int

const (
	stateBrowse state = iota
	stateUsername
	stateChooseRole
	statePickFile
)

func (s state) String() string {
	return map[state]string{
		stateBrowse:     "browsing events",
		stateUsername:   "entering username",
		stateChooseRole: "choosing sound role",
		statePickFile:   "picking sound file",
	}[s]
}

type model struct {
	cfg  Config
	deps Deps

	state  state
	width  int
	height int

	viewport viewport.Model
	input    textinput.Model
	picker   filepicker.Model
	help     help.Model

	status      present.Status
	records     []present.Record
	total       int
	settings    control.Snapshot
	connectedAt time.Time

	roleIndex int
	role      sounds.Role

	statusMessage      string
	statusMessageError bool
	statusMessageTimer *time.Timer
}

func newModel(cfg Config, deps Deps) model {
	if deps.Copy == nil {
		deps.Copy = clipboard.WriteAll
	}

	ti := textinput.New()
	ti.Prompt = "@"
	ti.Placeholder = "username"
	ti.CharLimit = 64
	ti.SetValue(strings.TrimPrefix(cfg.Username, "@"))

	m := model{
		cfg:      cfg,
		deps:     deps,
		state:    stateBrowse,
		viewport: viewport.New(0, 0),
		input:    ti,
		help:     help.New(),
	}
	m.syncHistory()
	if deps.Settings != nil {
		m.settings = deps.Settings.Snapshot()
	}
	return m
}

func (m model) Init() tea.Cmd {
	return refreshTick()
}

func refreshTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return refreshMsg{} })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.layout()
		if m.state == statePickFile {
			var cmd tea.Cmd
			m.picker, cmd = m.picker.Update(msg)
			return m, cmd
		}
		return m, nil

	case historyMsg:
		m.syncHistory()
		return m, nil

	case settingsMsg:
		m.settings = control.Snapshot(msg)
		return m, nil

	case refreshMsg:
		return m, refreshTick()

	case resultMsg:
		if msg.err != nil {
			cmd := m.showStatusMessage(msg.err.Error(), true)
			return m, cmd
		}
		if msg.text == "" {
			return m, nil
		}
		cmd := m.showStatusMessage(msg.text, false)
		return m, cmd

	case statusMessageTimeoutMsg:
		m.statusMessage = ""
		m.statusMessageError = false
		return m, nil
	}

	switch m.state {
	case stateUsername:
		return m.updateUsername(msg)
	case stateChooseRole:
		return m.updateChooseRole(msg)
	case statePickFile:
		return m.updatePickFile(msg)
	default:
		return m.updateBrowse(msg)
	}
}

func (m model) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(keyMsg, keys.Quit):
		return m, tea.Quit

	case key.Matches(keyMsg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
		return m, nil

	case key.Matches(keyMsg, keys.Connect):
		m.setState(stateUsername)
		m.input.CursorEnd()
		cmd := m.input.Focus()
		return m, cmd

	case key.Matches(keyMsg, keys.Disconnect):
		return m, m.run(func(ctx context.Context, c Control) (string, error) {
			return "", c.Disconnect(ctx)
		})

	case key.Matches(keyMsg, keys.Mute):
		return m, m.run(func(_ context.Context, c Control) (string, error) {
			if c.ToggleMute() {
				return "Muted: new announcements are dropped", nil
			}
			return "Unmuted", nil
		})

	case key.Matches(keyMsg, keys.Voice):
		return m, m.run(func(_ context.Context, c Control) (string, error) {
			name, err := c.ToggleVoice()
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Now using %s voice", name), nil
		})

	case key.Matches(keyMsg, keys.Sound):
		m.setState(stateChooseRole)
		return m, nil

	case key.Matches(keyMsg, keys.Copy):
		if len(m.records) == 0 {
			cmd := m.showStatusMessage("Nothing to copy", true)
			return m, cmd
		}
		text := m.records[len(m.records)-1].Message
		copyFn := m.deps.Copy
		return m, func() tea.Msg {
			if err := copyFn(text); err != nil {
				return resultMsg{err: fmt.Errorf("copy: %w", err)}
			}
			return resultMsg{text: "Copied to clipboard"}
		}

	case key.Matches(keyMsg, keys.Samples):
		i := int(keyMsg.String()[0] - '1')
		if i < 0 || i >= len(router.SampleNames) {
			return m, nil
		}
		name := router.SampleNames[i]
		return m, m.run(func(_ context.Context, c Control) (string, error) {
			return "", c.InjectSample(name)
		})
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) updateUsername(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.Type {
		case tea.KeyEsc:
			m.input.Blur()
			m.setState(stateBrowse)
			return m, nil
		case tea.KeyEnter:
			username := strings.TrimPrefix(strings.TrimSpace(m.input.Value()), "@")
			m.input.Blur()
			m.setState(stateBrowse)
			if username == "" {
				cmd := m.showStatusMessage("Enter a username to connect", true)
				return m, cmd
			}
			return m, m.run(func(ctx context.Context, c Control) (string, error) {
				return "", c.Connect(ctx, username)
			})
		case tea.KeyCtrlC:
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// run executes fn off the event loop and reports its result.
func (m model) run(fn func(context.Context, Control) (string, error)) tea.Cmd {
	c := m.deps.Control
	if c == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
		defer cancel()
		text, err := fn(ctx, c)
		return resultMsg{text: text, err: err}
	}
}

func (m *model) showStatusMessage(text string, isError bool) tea.Cmd {
	m.statusMessage = text
	m.statusMessageError = isError
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}

// syncHistory pulls the latest status and records.
func (m *model) syncHistory() {
	if m.deps.History == nil {
		return
	}
	prev := m.status
	m.status = m.deps.History.Status()
	m.records = m.deps.History.Records()
	m.total = m.deps.History.Total()

	switch {
	case m.status.Connected && (!prev.Connected || prev.RoomID != m.status.RoomID):
		m.connectedAt = time.Now()
	case !m.status.Connected:
		m.connectedAt = time.Time{}
	}

	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(renderRecords(m.records, m.viewport.Width))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *model) setState(s state) {
	m.state = s
	m.layout()
}

func (m *model) layout() {
	header := lineCount(m.headerView())
	footer := statusBarHeight + lineCount(m.footerView())
	m.viewport.Width = m.width
	m.viewport.Height = max(0, m.height-header-footer)
	m.viewport.SetContent(renderRecords(m.records, m.width))
	m.viewport.GotoBottom()
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

func (m model) View() string {
	var b strings.Builder
	if h := m.headerView(); h != "" {
		b.WriteString(h + "\n")
	}
	if m.state == statePickFile {
		b.WriteString(m.picker.View())
	} else {
		b.WriteString(m.viewport.View())
	}
	b.WriteString("\n")
	m.statusBarView(&b)
	if f := m.footerView(); f != "" {
		b.WriteString("\n" + f)
	}
	return b.String()
}

// headerView shows the voice banner and any active prompt.
func (m model) headerView() string {
	var lines []string
	if m.settings.Voice.Name != "" {
		lines = append(lines, bannerStyle("Now using "+m.settings.Voice.Label()+" voice"))
	}
	switch m.state {
	case stateUsername:
		lines = append(lines, promptStyle("Connect to ")+m.input.View())
	case stateChooseRole:
		lines = append(lines, m.roleView())
	case statePickFile:
		lines = append(lines, promptStyle(fmt.Sprintf("Pick a sound for %s (esc to cancel)", m.role)))
	}
	return strings.Join(lines, "\n")
}

func (m model) footerView() string {
	if m.state != stateBrowse {
		return ""
	}
	return helpViewStyle(m.help.View(keys))
}
