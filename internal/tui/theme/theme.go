// Package theme provides theming for the safeexec TUI and prompts.
package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines a color scheme.
type Theme struct {
	Mauve  lipgloss.Color // Titles, accents
	Blue   lipgloss.Color // Section headers
	Green  lipgloss.Color // Approved, safe, commands
	Yellow lipgloss.Color // Sensitive tier
	Red    lipgloss.Color // Denylisted, blocked
	Peach  lipgloss.Color // Override, exec failures
	Teal   lipgloss.Color // Info
	Pink   lipgloss.Color // Highlights

	Text    lipgloss.Color
	Subtext lipgloss.Color

	Surface  lipgloss.Color
	Surface1 lipgloss.Color
	Base     lipgloss.Color
	Mantle   lipgloss.Color

	Overlay0 lipgloss.Color

	Name   string
	IsDark bool
}

// FlavorName represents a Catppuccin flavor.
type FlavorName string

const (
	FlavorMocha FlavorName = "mocha"
	FlavorLatte FlavorName = "latte"
	FlavorAuto  FlavorName = "auto"
)

// Current holds the active theme.
var Current = Mocha()

// SetTheme sets the current theme by flavor name. Auto picks by terminal
// background.
func SetTheme(flavor FlavorName) {
	switch FlavorName(strings.ToLower(string(flavor))) {
	case FlavorLatte:
		Current = Latte()
	case FlavorAuto:
		if lipgloss.HasDarkBackground() {
			Current = Mocha()
		} else {
			Current = Latte()
		}
	default:
		Current = Mocha()
	}
}

// TierColor returns the color for a classification tier.
func (t *Theme) TierColor(tier string) lipgloss.Color {
	switch strings.ToLower(tier) {
	case "denylisted":
		return t.Red
	case "sensitive":
		return t.Yellow
	case "safe":
		return t.Green
	default:
		return t.Text
	}
}

// OutcomeColor returns the color for an audit outcome.
func (t *Theme) OutcomeColor(outcome string) lipgloss.Color {
	switch strings.ToUpper(outcome) {
	case "APPROVED":
		return t.Green
	case "DENIED":
		return t.Yellow
	case "BLOCKED":
		return t.Red
	case "EXEC_FAILED":
		return t.Peach
	default:
		return t.Text
	}
}

// TierEmoji returns the emoji for a tier.
func TierEmoji(tier string) string {
	switch strings.ToLower(tier) {
	case "denylisted":
		return "🔴"
	case "sensitive":
		return "🟡"
	case "safe":
		return "🟢"
	default:
		return "⚪"
	}
}

// OutcomeIcon returns the icon for an audit outcome.
func OutcomeIcon(outcome string) string {
	switch strings.ToUpper(outcome) {
	case "APPROVED":
		return "✓"
	case "DENIED":
		return "✗"
	case "BLOCKED":
		return "⊘"
	case "EXEC_FAILED":
		return "⚠"
	default:
		return "?"
	}
}
