// Package styles provides reusable lipgloss styles for the safeexec TUI and
// the interactive approval prompt.
package styles

import (
	"strings"

	"github.com/Dicklesworthstone/safeexec/internal/tui/theme"
	"github.com/charmbracelet/lipgloss"
)

// Styles contains the styled lipgloss renderers.
type Styles struct {
	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	SectionHead lipgloss.Style

	Normal    lipgloss.Style
	Dimmed    lipgloss.Style
	Bold      lipgloss.Style
	Highlight lipgloss.Style
	Warning   lipgloss.Style

	// Outcome badges
	BadgeApproved   lipgloss.Style
	BadgeDenied     lipgloss.Style
	BadgeBlocked    lipgloss.Style
	BadgeExecFailed lipgloss.Style

	// Tier badges
	TierDenylisted lipgloss.Style
	TierSensitive  lipgloss.Style
	TierSafe       lipgloss.Style

	Panel      lipgloss.Style
	CommandBox lipgloss.Style
	Selected   lipgloss.Style
	Border     lipgloss.Style
}

// New creates a new Styles instance from the current theme.
func New() *Styles {
	return FromTheme(theme.Current)
}

// FromTheme creates styles from a specific theme.
func FromTheme(t *theme.Theme) *Styles {
	s := &Styles{}

	s.Title = lipgloss.NewStyle().
		Foreground(t.Mauve).
		Bold(true)

	s.Subtitle = lipgloss.NewStyle().
		Foreground(t.Subtext).
		Italic(true)

	s.SectionHead = lipgloss.NewStyle().
		Foreground(t.Blue).
		Bold(true)

	s.Normal = lipgloss.NewStyle().Foreground(t.Text)
	s.Dimmed = lipgloss.NewStyle().Foreground(t.Subtext)
	s.Bold = lipgloss.NewStyle().Foreground(t.Text).Bold(true)
	s.Highlight = lipgloss.NewStyle().Foreground(t.Pink).Bold(true)
	s.Warning = lipgloss.NewStyle().Foreground(t.Peach).Bold(true)

	badgeBase := lipgloss.NewStyle().
		Padding(0, 1).
		Bold(true).
		Foreground(t.Base)

	s.BadgeApproved = badgeBase.Background(t.OutcomeColor("APPROVED"))
	s.BadgeDenied = badgeBase.Background(t.OutcomeColor("DENIED"))
	s.BadgeBlocked = badgeBase.Background(t.OutcomeColor("BLOCKED"))
	s.BadgeExecFailed = badgeBase.Background(t.OutcomeColor("EXEC_FAILED"))

	s.TierDenylisted = badgeBase.Background(t.TierColor("denylisted"))
	s.TierSensitive = badgeBase.Background(t.TierColor("sensitive"))
	s.TierSafe = badgeBase.Background(t.TierColor("safe"))

	s.Panel = lipgloss.NewStyle().
		Padding(1, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Overlay0)

	s.CommandBox = lipgloss.NewStyle().
		Foreground(t.Green).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Overlay0)

	s.Selected = lipgloss.NewStyle().
		Background(t.Surface1).
		Foreground(t.Text).
		Bold(true)

	s.Border = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Overlay0)

	return s
}

// OutcomeBadge returns the badge style for an audit outcome.
func (s *Styles) OutcomeBadge(outcome string) lipgloss.Style {
	switch strings.ToUpper(outcome) {
	case "APPROVED":
		return s.BadgeApproved
	case "DENIED":
		return s.BadgeDenied
	case "BLOCKED":
		return s.BadgeBlocked
	case "EXEC_FAILED":
		return s.BadgeExecFailed
	default:
		return s.Dimmed
	}
}

// TierBadge returns the badge style for a tier.
func (s *Styles) TierBadge(tier string) lipgloss.Style {
	switch strings.ToLower(tier) {
	case "denylisted":
		return s.TierDenylisted
	case "sensitive":
		return s.TierSensitive
	case "safe":
		return s.TierSafe
	default:
		return s.Dimmed
	}
}

// RenderOutcomeBadge renders an outcome as a styled badge.
func (s *Styles) RenderOutcomeBadge(outcome string) string {
	return s.OutcomeBadge(outcome).Render(theme.OutcomeIcon(outcome) + " " + outcome)
}

// RenderTierBadge renders a tier as a styled badge.
func (s *Styles) RenderTierBadge(tier string) string {
	return s.TierBadge(tier).Render(theme.TierEmoji(tier) + " " + strings.ToUpper(tier))
}
