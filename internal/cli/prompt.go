package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/Dicklesworthstone/safeexec/internal/core"
	"github.com/Dicklesworthstone/safeexec/internal/tui/components"
	"github.com/Dicklesworthstone/safeexec/internal/tui/styles"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// styledRenderer draws the approval prompt as a lipgloss panel.
type styledRenderer struct {
	styles *styles.Styles
	width  int
}

// promptRenderer returns the styled renderer when out is a terminal and the
// plain one otherwise, so piped or captured output stays greppable.
func promptRenderer(out io.Writer) core.PromptRenderer {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return core.PlainRenderer{}
	}
	return styledRenderer{styles: styles.New(), width: clampWidth(detectWidth())}
}

// RenderPrompt implements core.PromptRenderer.
func (r styledRenderer) RenderPrompt(w io.Writer, v core.PromptView) error {
	v = core.SanitizeView(v)
	st := r.styles
	inner := r.width - 6

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		st.Title.Render("APPROVAL REQUIRED"), "  ", st.RenderTierBadge(string(v.Tier)))
	lines := []string{header}
	if v.Override {
		lines = append(lines, st.Warning.Width(inner).Render("!!! "+core.OverrideNotice+" !!!"))
	}
	lines = append(lines,
		st.Dimmed.Render("Reason: ")+st.Normal.Render(v.Reason),
		components.NewCommandBox(v.Command).WithLabel("Command").RenderWrapped(inner-4),
	)
	if v.Rule != "" {
		lines = append(lines, st.Dimmed.Render("Rule:   ")+st.Highlight.Render(v.Rule))
	}

	panel := st.Panel.Width(r.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	if _, err := fmt.Fprintln(w, panel); err != nil {
		return err
	}
	_, err := fmt.Fprint(w, core.PromptQuestion)
	return err
}
