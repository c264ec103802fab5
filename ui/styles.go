package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dgnsrekt/live-announcer/internal/present"
)

var (
	fuchsia   = lipgloss.Color("#EE6FF8")
	green     = lipgloss.Color("#04B575")
	red       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	gray      = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	cream     = lipgloss.AdaptiveColor{Light: "#FFFDF5", Dark: "#FFFDF5"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	logoStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(fuchsia).
			Bold(true).
			Padding(0, 1)

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarHelpStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"}).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	statusBarErrorStyle = lipgloss.NewStyle().
				Foreground(cream).
				Background(red).
				Render

	liveStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(green).
			Padding(0, 1).
			Render

	offlineStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(gray).
			Padding(0, 1).
			Render

	mutedStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(red).
			Padding(0, 1).
			Render

	bannerStyle = lipgloss.NewStyle().
			Foreground(fuchsia).
			Bold(true).
			Render

	timeStyle = lipgloss.NewStyle().Foreground(gray).Render

	promptStyle = lipgloss.NewStyle().Foreground(fuchsia).Bold(true).Render

	helpViewStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg).
			Background(lipgloss.AdaptiveColor{Light: "#f2f2f2", Dark: "#1B1B1B"}).
			Render

	recordColors = map[present.RecordType]lipgloss.TerminalColor{
		present.TypeChat:   lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"},
		present.TypeLike:   lipgloss.Color("#FF5F87"),
		present.TypeGift:   lipgloss.Color("#FFBF00"),
		present.TypeFollow: green,
		present.TypeShare:  lipgloss.Color("#00AAFF"),
		present.TypeError:  red,
		present.TypeSystem: gray,
	}
)

func logoView() string {
	return logoStyle.Render("Announcer")
}

func badge(t present.RecordType) string {
	c, ok := recordColors[t]
	if !ok {
		c = gray
	}
	return lipgloss.NewStyle().Foreground(c).Bold(true).Render(string(t))
}
