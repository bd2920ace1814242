package ui

import (
	"fmt"
	"strings"

	"github.com/bz888/sagan/internal/chat"
	"github.com/rivo/tview"
)

// notice is a line of shell output shown after the first at messages.
type notice struct {
	at   int
	text string
}

func renderTranscript(msgs []chat.Message, notes []notice) string {
	var b strings.Builder
	next := 0
	writeNotes := func(upTo int) {
		for next < len(notes) && notes[next].at <= upTo {
			b.WriteString("[yellow::]")
			b.WriteString(tview.Escape(notes[next].text))
			b.WriteString("[-::-]\n\n")
			next++
		}
	}

	for i, m := range msgs {
		writeNotes(i)
		switch m.Role {
		case chat.RoleUser:
			b.WriteString("[red::]You:[-]\n")
		case chat.RoleAssistant:
			b.WriteString("[green::]Bot:[-]\n")
		default:
			continue
		}
		b.WriteString(tview.Escape(m.Text()))
		b.WriteString("\n\n")
	}
	writeNotes(len(msgs))
	return b.String()
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func statusText(model string, research, browsing bool, status chat.Status, err error) string {
	line := fmt.Sprintf(" model: %s | research: %s | browse: %s | ",
		tview.Escape(model), onOff(research), onOff(browsing))

	switch status {
	case chat.StatusError:
		msg := "error"
		if err != nil {
			msg += ": " + err.Error()
		}
		return line + "[red]" + tview.Escape(msg) + "[-]"
	case chat.StatusSubmitted, chat.StatusStreaming:
		return line + "[yellow]" + status.String() + "[-]"
	default:
		return line + "[green]" + status.String() + "[-]"
	}
}
