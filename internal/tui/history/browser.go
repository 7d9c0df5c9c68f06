// Package history implements the Bubble Tea browser over audited decisions.
package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/Dicklesworthstone/safeexec/internal/db"
	"github.com/Dicklesworthstone/safeexec/internal/tui/components"
	"github.com/Dicklesworthstone/safeexec/internal/tui/styles"
	"github.com/Dicklesworthstone/safeexec/internal/tui/theme"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"
)

const (
	pageSize               = 15
	defaultRefreshInterval = 2 * time.Second
)

var (
	tierFilters    = []string{"", "sensitive", "denylisted"}
	outcomeFilters = []string{"", "APPROVED", "DENIED", "BLOCKED", "EXEC_FAILED"}
)

// BrowserKeyMap defines the browser key bindings.
type BrowserKeyMap struct {
	Up            key.Binding
	Down          key.Binding
	NextPage      key.Binding
	PrevPage      key.Binding
	Search        key.Binding
	ClearSearch   key.Binding
	Select        key.Binding
	FilterTier    key.Binding
	FilterOutcome key.Binding
	Refresh       key.Binding
	Quit          key.Binding
}

// DefaultBrowserKeyMap returns the default key bindings.
func DefaultBrowserKeyMap() BrowserKeyMap {
	return BrowserKeyMap{
		Up:            key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:          key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		NextPage:      key.NewBinding(key.WithKeys("right", "l", "n"), key.WithHelp("→/n", "next page")),
		PrevPage:      key.NewBinding(key.WithKeys("left", "h", "p"), key.WithHelp("←/p", "prev page")),
		Search:        key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		ClearSearch:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear/back")),
		Select:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		FilterTier:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "tier")),
		FilterOutcome: key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "outcome")),
		Refresh:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type refreshMsg struct{}

type dataMsg struct {
	rows        []*db.Decision
	totalCount  int
	err         error
	refreshedAt time.Time
}

// Model is the history browser.
type Model struct {
	source          Source
	refreshInterval time.Duration

	rows        []*db.Decision
	totalCount  int
	page        int
	pageCount   int
	selectedIdx int
	detail      bool

	searching     bool
	searchInput   textinput.Model
	searchQuery   string
	tierFilter    int
	outcomeFilter int

	width       int
	height      int
	ready       bool
	lastErr     error
	refreshedAt time.Time

	keyMap BrowserKeyMap
	styles *styles.Styles

	// OnSelect is called with the decision ID when a row is opened.
	OnSelect func(id string)
	// OnBack replaces quitting on esc with nothing left to clear.
	OnBack func()
}

// New creates a browser over src. A non-positive interval uses the default.
func New(src Source, refreshInterval time.Duration) Model {
	ti := textinput.New()
	ti.Placeholder = "search command or reason"
	ti.CharLimit = 200
	if refreshInterval <= 0 {
		refreshInterval = defaultRefreshInterval
	}
	return Model{
		source:          src,
		refreshInterval: refreshInterval,
		searchInput:     ti,
		pageCount:       1,
		keyMap:          DefaultBrowserKeyMap(),
		styles:          styles.New(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadDataCmd(), tickCmd(m.refreshInterval))
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return refreshMsg{} })
}

func (m Model) loadDataCmd() tea.Cmd {
	src := m.source
	query := m.searchQuery
	tier := tierFilters[m.tierFilter]
	outcome := outcomeFilters[m.outcomeFilter]
	page := m.page
	return func() tea.Msg {
		rows, total, err := loadHistoryData(src, query, tier, outcome, page)
		return dataMsg{rows: rows, totalCount: total, err: err, refreshedAt: time.Now()}
	}
}

// loadHistoryData filters and pages decisions, newest first. Search is a
// fuzzy match over command and reason.
func loadHistoryData(src Source, query, tier, outcome string, page int) ([]*db.Decision, int, error) {
	if src == nil {
		return nil, 0, nil
	}
	all, err := src.Load()
	if err != nil {
		return nil, 0, err
	}

	filtered := make([]*db.Decision, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		d := all[i]
		if tier != "" && !strings.EqualFold(d.Tier, tier) {
			continue
		}
		if outcome != "" && !strings.EqualFold(d.Outcome, outcome) {
			continue
		}
		filtered = append(filtered, d)
	}

	if q := strings.TrimSpace(query); q != "" {
		targets := make([]string, len(filtered))
		for i, d := range filtered {
			targets[i] = strings.ToLower(d.Command + " " + d.Reason)
		}
		hit := make(map[int]bool)
		for _, match := range fuzzy.Find(strings.ToLower(q), targets) {
			hit[match.Index] = true
		}
		matched := filtered[:0:0]
		for i, d := range filtered {
			if hit[i] {
				matched = append(matched, d)
			}
		}
		filtered = matched
	}

	total := len(filtered)
	start := page * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := min(start+pageSize, total)
	return filtered[start:end], total, nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case refreshMsg:
		return m, tea.Batch(m.loadDataCmd(), tickCmd(m.refreshInterval))

	case dataMsg:
		m.rows = msg.rows
		m.totalCount = msg.totalCount
		m.lastErr = msg.err
		m.refreshedAt = msg.refreshedAt
		m.pageCount = max((msg.totalCount+pageSize-1)/pageSize, 1)
		if m.selectedIdx >= len(m.rows) {
			m.selectedIdx = max(len(m.rows)-1, 0)
		}
		if len(m.rows) == 0 {
			m.detail = false
		}
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.searchInput.Blur()
		m.searchQuery = strings.TrimSpace(m.searchInput.Value())
		m.page = 0
		m.selectedIdx = 0
		return m, m.loadDataCmd()
	case tea.KeyEsc:
		m.searching = false
		m.searchInput.Blur()
		m.searchInput.SetValue(m.searchQuery)
		return m, nil
	}
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.ClearSearch):
		if m.detail {
			m.detail = false
			return m, nil
		}
		if m.searchQuery != "" {
			m.searchQuery = ""
			m.searchInput.SetValue("")
			m.page = 0
			m.selectedIdx = 0
			return m, m.loadDataCmd()
		}
		if m.OnBack != nil {
			m.OnBack()
			return m, nil
		}
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Up):
		if m.selectedIdx > 0 {
			m.selectedIdx--
		}

	case key.Matches(msg, m.keyMap.Down):
		if m.selectedIdx < len(m.rows)-1 {
			m.selectedIdx++
		}

	case key.Matches(msg, m.keyMap.NextPage):
		if m.page < m.pageCount-1 {
			m.page++
			m.selectedIdx = 0
			return m, m.loadDataCmd()
		}

	case key.Matches(msg, m.keyMap.PrevPage):
		if m.page > 0 {
			m.page--
			m.selectedIdx = 0
			return m, m.loadDataCmd()
		}

	case key.Matches(msg, m.keyMap.Search):
		m.searching = true
		m.searchInput.SetValue(m.searchQuery)
		return m, tea.Batch(m.searchInput.Focus(), textinput.Blink)

	case key.Matches(msg, m.keyMap.Select):
		if len(m.rows) == 0 {
			return m, nil
		}
		m.detail = !m.detail
		if m.detail && m.OnSelect != nil {
			m.OnSelect(m.rows[m.selectedIdx].ID)
		}

	case key.Matches(msg, m.keyMap.FilterTier):
		m.tierFilter = (m.tierFilter + 1) % len(tierFilters)
		m.page = 0
		m.selectedIdx = 0
		return m, m.loadDataCmd()

	case key.Matches(msg, m.keyMap.FilterOutcome):
		m.outcomeFilter = (m.outcomeFilter + 1) % len(outcomeFilters)
		m.page = 0
		m.selectedIdx = 0
		return m, m.loadDataCmd()

	case key.Matches(msg, m.keyMap.Refresh):
		return m, m.loadDataCmd()
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading history..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderSearchBar())
	b.WriteString("\n\n")

	switch {
	case m.lastErr != nil:
		b.WriteString(m.styles.Warning.Render("Error: " + m.lastErr.Error()))
	case m.detail && m.selectedIdx < len(m.rows):
		b.WriteString(m.renderDetail(m.rows[m.selectedIdx]))
	case len(m.rows) == 0 && m.searchQuery != "":
		b.WriteString(m.styles.Dimmed.Render(fmt.Sprintf("No results for %q", m.searchQuery)))
	case len(m.rows) == 0:
		b.WriteString(m.styles.Dimmed.Render("No decisions recorded yet"))
	default:
		b.WriteString(m.renderTable())
	}

	b.WriteString("\n\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	title := styles.GradientTitle("safeexec History Browser")
	var filters []string
	if tier := tierFilters[m.tierFilter]; tier != "" {
		filters = append(filters, "tier="+tier)
	}
	if outcome := outcomeFilters[m.outcomeFilter]; outcome != "" {
		filters = append(filters, "outcome="+outcome)
	}
	if len(filters) == 0 {
		return title
	}
	return title + "  " + m.styles.Dimmed.Render("["+strings.Join(filters, " ")+"]")
}

func (m Model) renderSearchBar() string {
	if m.searching {
		return m.searchInput.View()
	}
	if m.searchQuery != "" {
		return m.styles.Dimmed.Render("search: ") + m.styles.Highlight.Render(m.searchQuery)
	}
	return m.styles.Dimmed.Render("press / to search")
}

func (m Model) renderTable() string {
	cmdWidth := 40
	if m.width > 0 {
		cmdWidth = max(m.width-50, 20)
	}

	header := fmt.Sprintf("  %-8s  %-19s  %-12s  %-10s  %s", "ID", "TIME", "OUTCOME", "TIER", "COMMAND")
	lines := []string{m.styles.SectionHead.Render(header)}
	for i, d := range m.rows {
		outcome := lipgloss.NewStyle().
			Foreground(theme.Current.OutcomeColor(d.Outcome)).
			Render(fmt.Sprintf("%-12s", outcomeShort(d.Outcome)))
		line := fmt.Sprintf("  %-8s  %-19s  %s  %-10s  %s",
			shortID(d.ID),
			d.Timestamp.Local().Format("2006-01-02 15:04:05"),
			outcome,
			d.Tier,
			components.NewCommandBox(d.Command).RenderCompact(cmdWidth),
		)
		if i == m.selectedIdx {
			line = m.styles.Selected.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderDetail(d *db.Decision) string {
	width := 76
	if m.width > 8 {
		width = m.width - 8
	}

	field := func(label, value string) string {
		return m.styles.Dimmed.Render(fmt.Sprintf("%-9s", label)) + " " + m.styles.Normal.Render(value)
	}
	override := "no"
	if d.OverrideUsed {
		override = m.styles.Warning.Render("yes")
	}

	lines := []string{
		m.styles.RenderOutcomeBadge(d.Outcome) + " " + m.styles.RenderTierBadge(d.Tier),
		"",
		field("id", d.ID),
		field("time", d.Timestamp.Local().Format(time.RFC3339)),
		field("reason", d.Reason),
		field("rule", d.Rule),
		field("actor", d.Actor),
		field("override", override),
		"",
		components.NewCommandBox(d.Command).RenderWrapped(width),
		"",
		components.DecisionTimeline(d.Timestamp, d.Tier, d.Outcome, d.ExitCode).Render(),
	}
	return m.styles.Panel.Render(strings.Join(lines, "\n"))
}

func (m Model) renderFooter() string {
	status := fmt.Sprintf("page %d/%d · %d decisions", m.page+1, max(m.pageCount, 1), m.totalCount)
	if !m.refreshedAt.IsZero() {
		status += " · updated " + formatTimeAgo(m.refreshedAt)
	}
	help := "↑/↓ move · ←/→ page · / search · t tier · o outcome · enter details · q quit"
	return m.styles.Dimmed.Render(status) + "\n" + m.styles.Dimmed.Render(help)
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func outcomeShort(outcome string) string {
	if outcome == "EXEC_FAILED" {
		return "FAILED"
	}
	return outcome
}

func formatTimeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
