package cli

import (
	"fmt"

	"github.com/Dicklesworthstone/safeexec/internal/git"
	"github.com/Dicklesworthstone/safeexec/internal/guardrails"
	"github.com/spf13/cobra"
)

var flagLintInstallHook bool

func init() {
	lintCmd.Flags().BoolVar(&flagLintInstallHook, "install-hook", false, "install a git pre-commit hook that runs safeexec lint")

	rootCmd.AddCommand(lintCmd)
}

var lintCmd = &cobra.Command{
	Use:   "lint [files...]",
	Short: "Check the repository against the guardrails",
	Long: `Lint tracked files (git ls-files) or the given files.

Checks:
  CONTAINMENT  top-level entries outside guardrails.allowed_top_level
  DUPLICATE    copy/backup/versioned file names (foo_v2.py, copy_of_x)
  ABS_PATH     hard-coded absolute paths like /home/... or /etc/...
  CHANGELOG    in pull requests, the changelog must be updated
  SAFETY       direct ssh/scp/rsync or sudo in scripts

Exits 1 when any violation is found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadConfigOnly(cmd)
		if err != nil {
			return err
		}

		out, err := newWriter(cmd)
		if err != nil {
			return err
		}

		if flagLintInstallHook {
			if !git.IsRepo(rt.project) {
				return fmt.Errorf("%s is not inside a git repository", rt.project)
			}
			if err := git.InstallHook(rt.project); err != nil {
				return err
			}
			if out.Structured() {
				return out.Write(map[string]any{"status": "installed", "hook": "pre-commit"})
			}
			out.Success("installed pre-commit hook")
			return nil
		}

		report, err := guardrails.LintRepo(rt.project, rt.cfg.Guardrails, args)
		if err != nil {
			return err
		}

		if out.Structured() {
			if err := out.Write(report); err != nil {
				return err
			}
		} else if report.Passed() {
			fmt.Fprintln(cmd.OutOrStdout(), "All guardrails checks passed")
		} else {
			w := cmd.ErrOrStderr()
			for _, v := range report.Violations {
				fmt.Fprintf(w, "  ✗ %s\n", v)
			}
			fmt.Fprintf(w, "\n%d violation(s) in %d file(s) checked\n", len(report.Violations), report.Files)
		}

		if !report.Passed() {
			return &ExitError{Code: 1}
		}
		return nil
	},
}
