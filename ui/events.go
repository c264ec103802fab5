package ui

import (
	"strings"

	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"

	"github.com/dgnsrekt/live-announcer/internal/present"
)

const timeFormat = "15:04:05"

// continuation lines line up under the message text.
const recordIndent = len(timeFormat) + 1

func renderRecords(records []present.Record, width int) string {
	if len(records) == 0 {
		return timeStyle("  Waiting for events…")
	}
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, renderRecord(r, width))
	}
	return strings.Join(lines, "\n")
}

func renderRecord(r present.Record, width int) string {
	body := badge(r.Type) + " " + r.Message
	if width > recordIndent+10 {
		body = wordwrap.String(body, width-recordIndent)
	}
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		body = body[:i+1] + indent.String(body[i+1:], uint(recordIndent))
	}
	return timeStyle(r.At.Format(timeFormat)) + " " + body
}
