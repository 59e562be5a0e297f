package ringer

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/oshokin/alarm-clock/internal/service/host"
)

// FormatEvent renders an event as one console line. Ticks render as the
// time spent ringing since startedAt.
func FormatEvent(ev host.Event, startedAt time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] ", ev.At.Local().Format(time.TimeOnly))

	switch ev.Kind {
	case host.EventStateChanged:
		fmt.Fprintf(&b, "state: %s", ev.State)
	case host.EventTranscript:
		fmt.Fprintf(&b, "heard: %q", ev.Transcript)
	case host.EventTick:
		fmt.Fprintf(&b, "ringing for %s", ev.At.Sub(startedAt).Round(time.Second))
	case host.EventCapability:
		if ev.Notice == nil {
			b.WriteString("capability changed")

			break
		}

		availability := "unavailable"
		if ev.Notice.Available {
			availability = "available"
		}

		fmt.Fprintf(&b, "%s %s", ev.Notice.Capability, availability)

		if ev.Notice.Reason != nil {
			fmt.Fprintf(&b, " (%s: %v)", ev.Notice.Kind, ev.Notice.Reason)
		}
	case host.EventTerminal:
		if ev.Outcome == nil {
			b.WriteString("resolved")

			break
		}

		action := "dismissed"
		if ev.Outcome.Snooze {
			action = "snoozed"
		}

		fmt.Fprintf(&b, "alarm %s %s by %s", ev.Outcome.AlarmID, action, ev.Outcome.Method)
	default:
		fmt.Fprintf(&b, "%s", ev.Kind)
	}

	return b.String()
}

// palette colors console lines by event kind.
type palette struct {
	state    lipgloss.Style
	heard    lipgloss.Style
	muted    lipgloss.Style
	warning  lipgloss.Style
	resolved lipgloss.Style
}

// newPalette builds styles for w. The renderer drops colors w cannot show.
func newPalette(w io.Writer) *palette {
	r := lipgloss.NewRenderer(w)

	return &palette{
		state:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("33")),
		heard:    r.NewStyle().Foreground(lipgloss.Color("252")),
		muted:    r.NewStyle().Foreground(lipgloss.Color("244")),
		warning:  r.NewStyle().Foreground(lipgloss.Color("1")),
		resolved: r.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
	}
}

// render styles a line produced by FormatEvent. A nil palette leaves it as is.
func (p *palette) render(ev host.Event, line string) string {
	if p == nil {
		return line
	}

	switch ev.Kind {
	case host.EventStateChanged:
		return p.state.Render(line)
	case host.EventTranscript:
		return p.heard.Render(line)
	case host.EventCapability:
		if ev.Notice != nil && !ev.Notice.Available {
			return p.warning.Render(line)
		}

		return p.muted.Render(line)
	case host.EventTerminal:
		return p.resolved.Render(line)
	default:
		return p.muted.Render(line)
	}
}

// ColorEnabled reports whether w is a terminal that should get colors.
func ColorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}

	f, ok := w.(*os.File)

	return ok && term.IsTerminal(int(f.Fd()))
}
