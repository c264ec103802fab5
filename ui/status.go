package ui

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
)

const statusBarHeight = 1

// statusBarView renders connection, mute and event count on one line.
func (m model) statusBarView(b *strings.Builder) {
	logo := logoView()

	var conn string
	switch {
	case m.status.Connected:
		conn = liveStyle("LIVE @" + m.status.Username)
	case m.status.Username != "":
		conn = offlineStyle("@" + m.status.Username)
	default:
		conn = offlineStyle("OFFLINE")
	}

	var muted string
	if m.settings.Muted {
		muted = mutedStyle("MUTED")
	}

	count := statusBarHelpStyle(fmt.Sprintf(" %s events ", humanize.Comma(int64(m.total))))

	var note string
	switch {
	case m.statusMessage != "":
		note = m.statusMessage
	case m.status.Connected && !m.connectedAt.IsZero():
		note = fmt.Sprintf("room %s, connected %s", m.status.RoomID, humanize.Time(m.connectedAt))
	case m.status.Reason != "":
		note = m.status.Reason
	default:
		note = "press c to connect"
	}

	fixed := ansi.PrintableRuneWidth(logo) +
		ansi.PrintableRuneWidth(conn) +
		ansi.PrintableRuneWidth(muted) +
		ansi.PrintableRuneWidth(count)
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, m.width-fixed)), ellipsis) //nolint:gosec

	style := statusBarNoteStyle
	switch {
	case m.statusMessage != "" && m.statusMessageError:
		style = statusBarErrorStyle
	case m.statusMessage != "":
		style = statusBarMessageStyle
	}
	note = style(note)

	padding := max(0, m.width-fixed-ansi.PrintableRuneWidth(note))
	emptySpace := style(strings.Repeat(" ", padding))

	fmt.Fprintf(b, "%s%s%s%s%s%s", logo, conn, muted, note, emptySpace, count)
}
