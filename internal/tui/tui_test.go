package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dicklesworthstone/safeexec/internal/tui/history"
	"github.com/Dicklesworthstone/safeexec/internal/tui/theme"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.Theme != "mocha" {
		t.Errorf("expected mocha theme, got %q", opts.Theme)
	}
	if opts.RefreshInterval != 2 {
		t.Errorf("expected refresh interval 2, got %d", opts.RefreshInterval)
	}
}

func TestNewHistoryBrowserAppliesTheme(t *testing.T) {
	t.Cleanup(func() { theme.SetTheme(theme.FlavorMocha) })

	m := NewHistoryBrowser(history.LogSource{Path: "unused"}, Options{Theme: "latte"})
	if theme.Current.Name != "Catppuccin Latte" {
		t.Errorf("expected latte theme, got %q", theme.Current.Name)
	}

	var _ tea.Model = m
	if m.Init() == nil {
		t.Error("browser Init should return a command")
	}
}

func TestProgramOptions(t *testing.T) {
	if got := programOptions(Options{}); len(got) != 1 {
		t.Errorf("expected alt screen option, got %d options", len(got))
	}
	if got := programOptions(Options{DisableAltScreen: true}); len(got) != 0 {
		t.Errorf("expected no options, got %d", len(got))
	}
}

func TestSetThemeUnknownFallsBackToMocha(t *testing.T) {
	t.Cleanup(func() { theme.SetTheme(theme.FlavorMocha) })
	theme.SetTheme("nonsense")
	if theme.Current.Name != "Catppuccin Mocha" {
		t.Errorf("expected mocha fallback, got %q", theme.Current.Name)
	}
}

func TestThemeColors(t *testing.T) {
	th := theme.Mocha()
	if th.TierColor("denylisted") != th.Red || th.TierColor("SENSITIVE") != th.Yellow || th.TierColor("safe") != th.Green {
		t.Error("unexpected tier colors")
	}
	if th.OutcomeColor("approved") != th.Green || th.OutcomeColor("BLOCKED") != th.Red || th.OutcomeColor("EXEC_FAILED") != th.Peach {
		t.Error("unexpected outcome colors")
	}
	if th.TierColor("other") != th.Text || th.OutcomeColor("other") != th.Text {
		t.Error("unknown values should use text color")
	}
	if theme.OutcomeIcon("DENIED") != "✗" || theme.TierEmoji("denylisted") != "🔴" || theme.OutcomeIcon("x") != "?" {
		t.Error("unexpected icons")
	}
}
