package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Dicklesworthstone/safeexec/internal/tui/styles"
	"github.com/Dicklesworthstone/safeexec/internal/tui/theme"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Quick reference styles, drawn from the active theme.
var (
	titleStyle     lipgloss.Style
	sectionStyle   lipgloss.Style
	commandStyle   lipgloss.Style
	flagStyle      lipgloss.Style
	denyStyle      lipgloss.Style
	sensitiveStyle lipgloss.Style
	safeStyle      lipgloss.Style
	mutedStyle     lipgloss.Style
	boxStyle       lipgloss.Style
)

func init() {
	refreshHelpStyles()
}

func refreshHelpStyles() {
	t := theme.Current
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(t.Mauve).MarginBottom(1)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(t.Blue).MarginTop(1)
	commandStyle = lipgloss.NewStyle().Foreground(t.Green)
	flagStyle = lipgloss.NewStyle().Foreground(t.Yellow)
	denyStyle = lipgloss.NewStyle().Bold(true).Foreground(t.Red)
	sensitiveStyle = lipgloss.NewStyle().Foreground(t.Yellow)
	safeStyle = lipgloss.NewStyle().Foreground(t.Green)
	mutedStyle = lipgloss.NewStyle().Foreground(t.Overlay0)
	boxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Blue).
		Padding(1, 2).
		MarginTop(1).
		MarginBottom(1)
}

func showQuickReference(w io.Writer) {
	width := clampWidth(detectWidth())
	useUnicode := supportsUnicode()

	border := lipgloss.RoundedBorder()
	if !useUnicode {
		border = lipgloss.Border{
			Top:         "-",
			Bottom:      "-",
			Left:        "|",
			Right:       "|",
			TopLeft:     "+",
			TopRight:    "+",
			BottomLeft:  "+",
			BottomRight: "+",
		}
	}

	container := boxStyle.Border(border).Width(width)

	titleText := " SAFEEXEC QUICK REFERENCE · Human Approval Gateway "
	titleRendered := styles.MauveBlueGradient().Render(titleText)
	if !useUnicode {
		titleRendered = "SAFEEXEC QUICK REFERENCE - Human Approval Gateway"
	}
	title := titleStyle.Width(width - 4).Align(lipgloss.Center).Render(titleRendered)

	run := renderSection(useUnicode, "🔶 RUN A COMMAND (agents)", []string{
		bullet(`safeexec --reason "Deploy hotfix" -- git push origin main`, "classify, prompt if needed, run"),
		bullet(`safeexec approve "Rotate keys" "./rotate.sh --env staging"`, "always prompt, then run"),
		bullet(`ALLOW_DENYLIST_OVERRIDE=1 safeexec --reason "..." -- <cmd>`, "reviewed override for denylisted"),
	})

	inspect := renderSection(useUnicode, "🔷 INSPECT", []string{
		bullet("safeexec check -- rm -rf / -j", "classify only, nothing runs or is logged"),
		bullet("safeexec rules list --tier sensitive", "show the rules for a tier"),
		bullet("safeexec rules version -j", "rule table version and hash"),
	})

	audit := renderSection(useUnicode, "📜 AUDIT", []string{
		bullet("safeexec history --outcome DENIED --since 24h", "search decisions"),
		bullet("safeexec history --follow", "tail the audit log"),
		bullet("safeexec history --tui", "interactive browser"),
	})

	repo := renderSection(useUnicode, "🛡️ REPOSITORY", []string{
		bullet("safeexec lint", "guardrails over git ls-files"),
		bullet("safeexec lint --install-hook", "run lint before every commit"),
		bullet("safeexec config set rules.sensitive '<regex>'", "add a stricter rule"),
	})

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		run,
		inspect,
		audit,
		repo,
		tierLegend(useUnicode),
		flagLegend(useUnicode),
		footerLegend(useUnicode),
	)

	fmt.Fprintln(w, container.Render(content))
}

func clampWidth(w int) int {
	if w < 72 {
		return 72
	}
	if w > 100 {
		return 100
	}
	return w
}

func detectWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	// fall back to environment or default
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if v, err := strconv.Atoi(cols); err == nil && v > 0 {
			return v
		}
	}
	return 80
}

func supportsUnicode() bool {
	termEnv := strings.ToLower(os.Getenv("TERM"))
	locale := strings.ToLower(strings.Join([]string{
		os.Getenv("LC_ALL"),
		os.Getenv("LC_CTYPE"),
		os.Getenv("LANG"),
	}, " "))
	if strings.Contains(termEnv, "dumb") {
		return false
	}
	return strings.Contains(locale, "utf-8") || strings.Contains(locale, "utf8")
}

func bullet(command, desc string) string {
	return commandStyle.Render("  "+command) + mutedStyle.Render("  "+desc)
}

func renderSection(useUnicode bool, title string, lines []string) string {
	if !useUnicode {
		// strip the leading icon for ASCII terminals
		if i := strings.Index(title, " "); i >= 0 && !isASCII(title[:i]) {
			title = title[i+1:]
		}
	}
	header := sectionStyle.Render(title)
	body := strings.Join(lines, "\n")
	return lipgloss.JoinVertical(lipgloss.Left, header, body)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func tierLegend(useUnicode bool) string {
	deny := "DENYLISTED (blocked)"
	sens := "SENSITIVE (prompt)"
	safe := "SAFE (runs)"
	header := "🎯 TIERS"
	if useUnicode {
		deny = theme.TierEmoji("denylisted") + " " + deny
		sens = theme.TierEmoji("sensitive") + " " + sens
		safe = theme.TierEmoji("safe") + " " + safe
	} else {
		header = "TIERS"
	}
	headerRendered := sectionStyle.Render(header)
	if useUnicode {
		headerRendered = sectionStyle.Render(styles.TierGradient().Render(header))
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		headerRendered,
		fmt.Sprintf("  %s   %s   %s", denyStyle.Render(deny), sensitiveStyle.Render(sens), safeStyle.Render(safe)),
	)
}

func flagLegend(useUnicode bool) string {
	prefix := "🚩 GLOBAL FLAGS"
	if !useUnicode {
		prefix = "FLAGS"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		sectionStyle.Render(prefix),
		flagStyle.Render("  -r, --reason <text>")+mutedStyle.Render("   why the command should run (required)"),
		flagStyle.Render("  -j, --json")+mutedStyle.Render("            structured output"),
		flagStyle.Render("  -C, --project <dir>")+mutedStyle.Render("   override project path"),
		flagStyle.Render("  --audit-log <path>")+mutedStyle.Render("    audit log path"),
		flagStyle.Render("  --actor <name>")+mutedStyle.Render("        actor identifier"),
	)
}

func footerLegend(useUnicode bool) string {
	human := "safeexec history --tui"
	help := "safeexec <command> --help"
	if !useUnicode {
		return mutedStyle.Render("HUMAN: " + human + "   HELP: " + help)
	}
	return lipgloss.JoinHorizontal(lipgloss.Left,
		mutedStyle.Render("HUMAN: "), commandStyle.Render(human),
		mutedStyle.Render("   HELP: "), commandStyle.Render(help),
	)
}
