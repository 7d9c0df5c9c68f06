package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/Dicklesworthstone/safeexec/internal/tui/theme"
	"github.com/charmbracelet/lipgloss"
)

// TimelineEvent is one step of a decision's lifecycle.
type TimelineEvent struct {
	State     string
	Timestamp time.Time
	Details   string
}

// Timeline renders a decision lifecycle: classified, decided, executed.
type Timeline struct {
	Events []TimelineEvent
}

// NewTimeline creates a new timeline component.
func NewTimeline() *Timeline {
	return &Timeline{}
}

// DecisionTimeline builds the lifecycle of one audited decision. exitCode
// is nil when the command did not run or its exit was not recorded.
func DecisionTimeline(ts time.Time, tier, outcome string, exitCode *int) *Timeline {
	t := NewTimeline().
		AddEvent("classified", ts, strings.ToUpper(tier)).
		AddEvent(strings.ToLower(outcome), ts, "")
	switch {
	case exitCode != nil:
		t.AddEvent("executed", time.Time{}, fmt.Sprintf("exit %d", *exitCode))
	case strings.EqualFold(outcome, "APPROVED"):
		t.AddEvent("executed", time.Time{}, "exit not recorded")
	}
	return t
}

// AddEvent adds an event to the timeline.
func (t *Timeline) AddEvent(state string, ts time.Time, details string) *Timeline {
	t.Events = append(t.Events, TimelineEvent{State: state, Timestamp: ts, Details: details})
	return t
}

func stateColor(th *theme.Theme, state string) lipgloss.Color {
	switch strings.ToLower(state) {
	case "approved", "executed":
		return th.Green
	case "denied":
		return th.Yellow
	case "blocked":
		return th.Red
	case "exec_failed":
		return th.Peach
	case "classified":
		return th.Blue
	default:
		return th.Subtext
	}
}

// Render renders the timeline.
func (t *Timeline) Render() string {
	th := theme.Current
	connector := lipgloss.NewStyle().Foreground(th.Overlay0).Render("│")
	var lines []string
	for i, ev := range t.Events {
		color := stateColor(th, ev.State)
		line := lipgloss.NewStyle().Foreground(color).Render("● " + strings.ToUpper(ev.State))
		if !ev.Timestamp.IsZero() {
			line += lipgloss.NewStyle().Foreground(th.Subtext).Render("  " + ev.Timestamp.Local().Format("2006-01-02 15:04:05"))
		}
		if ev.Details != "" {
			line += lipgloss.NewStyle().Foreground(th.Text).Render("  " + ev.Details)
		}
		lines = append(lines, line)
		if i < len(t.Events)-1 {
			lines = append(lines, connector)
		}
	}
	return strings.Join(lines, "\n")
}
