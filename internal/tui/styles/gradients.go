package styles

import (
	"strings"

	"github.com/Dicklesworthstone/safeexec/internal/tui/theme"
	"github.com/charmbracelet/lipgloss"
)

// Gradient colors text by character position.
type Gradient struct {
	Colors []lipgloss.Color
}

// NewGradient creates a gradient from the given colors.
func NewGradient(colors ...lipgloss.Color) *Gradient {
	return &Gradient{Colors: colors}
}

// MauveBlueGradient returns a mauve-to-blue gradient.
func MauveBlueGradient() *Gradient {
	t := theme.Current
	return NewGradient(t.Mauve, t.Pink, t.Blue)
}

// TierGradient runs from safe to denylisted.
func TierGradient() *Gradient {
	t := theme.Current
	return NewGradient(t.Green, t.Yellow, t.Red)
}

// Render applies the gradient to s in equal steps.
func (g *Gradient) Render(s string) string {
	if len(g.Colors) == 0 || s == "" {
		return s
	}

	runes := []rune(s)
	span := len(runes) - 1
	if span < 1 {
		span = 1
	}

	var b strings.Builder
	for i, r := range runes {
		idx := (i * (len(g.Colors) - 1)) / span
		if idx >= len(g.Colors) {
			idx = len(g.Colors) - 1
		}
		b.WriteString(lipgloss.NewStyle().Foreground(g.Colors[idx]).Render(string(r)))
	}
	return b.String()
}

// GradientTitle renders a title with gradient styling.
func GradientTitle(text string) string {
	return MauveBlueGradient().Render(text)
}
