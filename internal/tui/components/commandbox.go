// Package components provides reusable rendering pieces for the approval
// prompt and the history browser.
package components

import (
	"strings"

	"github.com/Dicklesworthstone/safeexec/internal/tui/theme"
	"github.com/Dicklesworthstone/safeexec/internal/utils"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// CommandBox renders a command in a styled box. The command is sanitized
// before display so control bytes cannot reach the terminal.
type CommandBox struct {
	Command  string
	Label    string
	MaxWidth int
}

// NewCommandBox creates a new command box component.
func NewCommandBox(command string) *CommandBox {
	return &CommandBox{
		Command:  command,
		MaxWidth: 80,
	}
}

// WithLabel sets a dimmed label shown above the command.
func (c *CommandBox) WithLabel(label string) *CommandBox {
	c.Label = label
	return c
}

// WithMaxWidth sets the maximum display width; zero disables truncation.
func (c *CommandBox) WithMaxWidth(width int) *CommandBox {
	c.MaxWidth = width
	return c
}

func (c *CommandBox) display(maxWidth int) string {
	cmd := utils.SanitizeLine(c.Command)
	if maxWidth > 0 && runewidth.StringWidth(cmd) > maxWidth {
		cmd = runewidth.Truncate(cmd, maxWidth, "...")
	}
	return cmd
}

// Render renders the command box as a string.
func (c *CommandBox) Render() string {
	t := theme.Current

	content := lipgloss.NewStyle().Foreground(t.Green).Render(c.display(c.MaxWidth))
	if c.Label != "" {
		label := lipgloss.NewStyle().Foreground(t.Subtext).Italic(true).Render(c.Label)
		content = label + "\n" + content
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Overlay0).
		Padding(0, 1).
		Render(content)
}

// RenderCompact renders a single-line command for tables.
func (c *CommandBox) RenderCompact(width int) string {
	t := theme.Current
	if width <= 0 {
		width = 40
	}
	return lipgloss.NewStyle().Foreground(t.Green).Render(c.display(width))
}

// RenderWrapped renders the full command wrapped at width, for detail views
// and the approval prompt.
func (c *CommandBox) RenderWrapped(width int) string {
	t := theme.Current
	cmd := c.display(0)
	if width > 0 {
		cmd = wrap(cmd, width)
	}
	content := lipgloss.NewStyle().Foreground(t.Green).Render(cmd)
	if c.Label != "" {
		content = lipgloss.NewStyle().Foreground(t.Subtext).Italic(true).Render(c.Label) + "\n" + content
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Overlay0).
		Padding(0, 1).
		Render(content)
}

func wrap(s string, width int) string {
	var lines []string
	var cur strings.Builder
	curWidth := 0
	for _, r := range s {
		rw := runewidth.RuneWidth(r)
		if curWidth+rw > width && curWidth > 0 {
			lines = append(lines, cur.String())
			cur.Reset()
			curWidth = 0
		}
		cur.WriteRune(r)
		curWidth += rw
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return strings.Join(lines, "\n")
}
