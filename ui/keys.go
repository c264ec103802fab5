package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Connect    key.Binding
	Disconnect key.Binding
	Mute       key.Binding
	Voice      key.Binding
	Sound      key.Binding
	Copy       key.Binding
	Samples    key.Binding
	Up         key.Binding
	Down       key.Binding
	Help       key.Binding
	Quit       key.Binding
}

var keys = keyMap{
	Connect:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "connect")),
	Disconnect: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "disconnect")),
	Mute:       key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
	Voice:      key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "next voice")),
	Sound:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "assign sound")),
	Copy:       key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy last event")),
	Samples: key.NewBinding(
		key.WithKeys("1", "2", "3", "4", "5", "6", "7"),
		key.WithHelp("1-7", "test events"),
	),
	Up:   key.NewBinding(key.WithKeys("k", "up", "pgup"), key.WithHelp("↑/k", "scroll up")),
	Down: key.NewBinding(key.WithKeys("j", "down", "pgdown"), key.WithHelp("↓/j", "scroll down")),
	Help: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Connect, k.Mute, k.Voice, k.Samples, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Connect, k.Disconnect, k.Mute, k.Voice},
		{k.Sound, k.Copy, k.Samples},
		{k.Up, k.Down, k.Help, k.Quit},
	}
}
