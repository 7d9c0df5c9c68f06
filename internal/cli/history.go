package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Dicklesworthstone/safeexec/internal/audit"
	"github.com/Dicklesworthstone/safeexec/internal/db"
	"github.com/Dicklesworthstone/safeexec/internal/output"
	"github.com/Dicklesworthstone/safeexec/internal/tui"
	"github.com/Dicklesworthstone/safeexec/internal/tui/history"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

var (
	flagHistoryQuery   string
	flagHistoryOutcome string
	flagHistorySince   string
	flagHistoryLimit   int
	flagHistoryIndex   bool
	flagHistoryFollow  bool
	flagHistoryTUI     bool
	flagHistoryTheme   string
)

func init() {
	historyCmd.Flags().StringVarP(&flagHistoryQuery, "query", "q", "", "case-insensitive search in reason and command")
	historyCmd.Flags().StringVar(&flagHistoryOutcome, "outcome", "", "filter by outcome (APPROVED, DENIED, BLOCKED, EXEC_FAILED)")
	historyCmd.Flags().StringVar(&flagHistorySince, "since", "", "only entries after this time (RFC3339, YYYY-MM-DD, or a duration like 24h)")
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 50, "max entries to show (0 for all)")
	historyCmd.Flags().BoolVar(&flagHistoryIndex, "index", false, "read the SQLite history index instead of the audit log")
	historyCmd.Flags().BoolVarP(&flagHistoryFollow, "follow", "f", false, "keep printing new entries as they are appended")
	historyCmd.Flags().BoolVar(&flagHistoryTUI, "tui", false, "open the interactive history browser")
	historyCmd.Flags().StringVar(&flagHistoryTheme, "theme", "", "browser theme (mocha, latte)")

	_ = historyCmd.RegisterFlagCompletionFunc("outcome", completeOutcomes)

	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse and search approval decisions",
	Long: `Browse and search the audit log of approval decisions.

SAFE commands are not recorded; every APPROVED, DENIED, BLOCKED and
EXEC_FAILED decision is.

Examples:
  safeexec history                          # Show recent decisions
  safeexec history -q "git push"            # Search reason and command
  safeexec history --outcome DENIED         # Only denials
  safeexec history --since 24h              # Decisions from the last day
  safeexec history --index -j               # Read the index (includes exit codes)
  safeexec history --follow                 # Tail the audit log
  safeexec history --tui                    # Interactive browser`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := historyFilter(time.Now())
		if err != nil {
			return err
		}
		rt, err := loadConfigOnly(cmd)
		if err != nil {
			return err
		}

		if flagHistoryTUI {
			var src history.Source = history.LogSource{Path: rt.auditPath()}
			if flagHistoryIndex {
				src = history.DBSource{Path: rt.dbPath()}
			}
			opts := tui.DefaultOptions()
			if flagHistoryTheme != "" {
				opts.Theme = flagHistoryTheme
			}
			if err := tui.RunHistory(src, opts); err != nil {
				return fmt.Errorf("tui: %w", err)
			}
			return nil
		}

		decisions, err := loadDecisions(rt, filter)
		if err != nil {
			return err
		}

		out, err := newWriter(cmd)
		if err != nil {
			return err
		}
		if out.Structured() && !flagHistoryFollow {
			return out.Write(decisions)
		}
		printDecisions(cmd, out, decisions)

		if !flagHistoryFollow {
			return nil
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		follower, err := audit.NewFollower(rt.auditPath(), true)
		if err != nil {
			return err
		}
		defer follower.Stop()
		if err := follower.Start(ctx); err != nil {
			return err
		}
		return followEntries(ctx, follower, filter, func(e audit.Entry) error {
			if out.Structured() {
				return out.WriteNDJSON(e)
			}
			fmt.Fprintln(cmd.OutOrStdout(), entryLine(e))
			return nil
		}, rt.logger.Warn)
	},
}

// historyFilter builds the filter from flags; now anchors relative --since values.
func historyFilter(now time.Time) (audit.Filter, error) {
	f := audit.Filter{
		Outcome: strings.ToUpper(strings.TrimSpace(flagHistoryOutcome)),
		Query:   flagHistoryQuery,
		Limit:   flagHistoryLimit,
	}
	if f.Outcome != "" && !audit.KnownOutcome(f.Outcome) {
		return f, fmt.Errorf("invalid outcome %q (must be APPROVED, DENIED, BLOCKED, or EXEC_FAILED)", flagHistoryOutcome)
	}
	if f.Limit < 0 {
		return f, fmt.Errorf("--limit must not be negative")
	}
	if flagHistorySince != "" {
		since, err := parseSince(flagHistorySince, now)
		if err != nil {
			return f, err
		}
		f.Since = since
	}
	return f, nil
}

// parseSince accepts RFC3339, a date, or a duration back from now.
func parseSince(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return now.Add(-d), nil
	}
	return time.Time{}, fmt.Errorf("invalid --since %q (use RFC3339, YYYY-MM-DD, or a duration like 24h)", s)
}

// loadDecisions reads from the index with --index, otherwise from the log.
func loadDecisions(rt *app, filter audit.Filter) ([]*db.Decision, error) {
	if flagHistoryIndex {
		path := rt.dbPath()
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return []*db.Decision{}, nil
			}
			return nil, err
		}
		conn, err := db.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening history index: %w", err)
		}
		defer conn.Close()
		return conn.ListDecisions(filter)
	}

	entries, skipped, err := audit.ReadEntries(rt.auditPath())
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		rt.logger.Warn("skipped malformed audit lines", "count", skipped, "path", rt.auditPath())
	}
	matched := filter.Apply(entries)
	decisions := make([]*db.Decision, 0, len(matched))
	for _, e := range matched {
		decisions = append(decisions, &db.Decision{Entry: e})
	}
	return decisions, nil
}

func printDecisions(cmd *cobra.Command, out *output.Writer, decisions []*db.Decision) {
	if out.Structured() {
		for _, d := range decisions {
			_ = out.WriteNDJSON(d)
		}
		return
	}
	if len(decisions) == 0 {
		if !flagHistoryFollow {
			fmt.Fprintln(cmd.OutOrStdout(), "No decisions recorded.")
		}
		return
	}

	headers := []string{"TIME", "OUTCOME", "TIER", "ACTOR", "COMMAND", "REASON"}
	if flagHistoryIndex {
		headers = append(headers, "EXIT")
	}
	rows := make([][]string, 0, len(decisions))
	for _, d := range decisions {
		row := []string{
			d.Timestamp.Local().Format("2006-01-02 15:04:05"),
			d.Outcome,
			d.Tier,
			d.Actor,
			runewidth.Truncate(d.Command, 48, "..."),
			runewidth.Truncate(d.Reason, 40, "..."),
		}
		if flagHistoryIndex {
			exit := "-"
			if d.ExitCode != nil {
				exit = strconv.Itoa(*d.ExitCode)
			}
			row = append(row, exit)
		}
		rows = append(rows, row)
	}
	out.Table(headers, rows)
}

// followEntries forwards matching entries to emit until ctx ends or the
// follower stops.
func followEntries(ctx context.Context, f *audit.Follower, filter audit.Filter, emit func(audit.Entry) error, warn func(msg any, keyvals ...any)) error {
	errs := f.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-f.Entries():
			if !ok {
				return nil
			}
			if !filter.Match(e) {
				continue
			}
			if err := emit(e); err != nil {
				return err
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			warn("reading audit log", "error", err)
		}
	}
}

func entryLine(e audit.Entry) string {
	line := fmt.Sprintf("%s  %-11s %-10s %s", e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Outcome, e.Tier, e.Command)
	if e.Reason != "" {
		line += "  # " + e.Reason
	}
	return line
}
