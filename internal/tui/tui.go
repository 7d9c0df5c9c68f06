// Package tui runs the safeexec Bubble Tea programs.
// Uses the Charmbracelet ecosystem: Bubble Tea, Bubbles, Lip Gloss.
package tui

import (
	"time"

	"github.com/Dicklesworthstone/safeexec/internal/tui/history"
	"github.com/Dicklesworthstone/safeexec/internal/tui/theme"
	tea "github.com/charmbracelet/bubbletea"
)

// Options configures a TUI session.
type Options struct {
	// Theme is a flavor name: mocha, latte or auto.
	Theme string
	// RefreshInterval is in seconds; zero uses the default.
	RefreshInterval int
	// DisableAltScreen renders inline instead of full screen.
	DisableAltScreen bool
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{Theme: string(theme.FlavorMocha), RefreshInterval: 2}
}

// NewHistoryBrowser applies the theme and builds a history browser over src.
func NewHistoryBrowser(src history.Source, opts Options) history.Model {
	theme.SetTheme(theme.FlavorName(opts.Theme))
	return history.New(src, time.Duration(opts.RefreshInterval)*time.Second)
}

func programOptions(opts Options) []tea.ProgramOption {
	if opts.DisableAltScreen {
		return nil
	}
	return []tea.ProgramOption{tea.WithAltScreen()}
}

// RunHistory starts the history browser and blocks until it exits.
func RunHistory(src history.Source, opts Options) error {
	p := tea.NewProgram(NewHistoryBrowser(src, opts), programOptions(opts)...)
	_, err := p.Run()
	return err
}
