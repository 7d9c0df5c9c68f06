// Package cli implements the Cobra command-line interface for safeexec.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Dicklesworthstone/safeexec/internal/core"
	"github.com/Dicklesworthstone/safeexec/internal/output"
	"github.com/spf13/cobra"
)

// Version information set by goreleaser
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flag values
var (
	flagConfig   string
	flagOutput   string
	flagJSON     bool
	flagVerbose  bool
	flagDB       string
	flagAuditLog string
	flagActor    string
	flagProject  string
	flagReason   string
)

var rootCmd = &cobra.Command{
	Use:   "safeexec --reason <text> -- <program> [args...]",
	Short: "Safe-exec gateway - human approval for sensitive agent commands",
	Long: `safeexec sits between an automated agent and the shell.

Every command is classified before it runs:
  DENYLISTED - Blocked outright (privilege escalation, wiping the tree)
  SENSITIVE  - Runs only after a human answers "y" at the prompt
  SAFE       - Runs immediately

Every approval decision is appended to the audit log before the command
starts. Set ALLOW_DENYLIST_OVERRIDE=1 to route a denylisted command to the
prompt instead of blocking it.

Examples:
  safeexec --reason "Deploy hotfix" -- git push origin main
  safeexec --reason "List files" -- ls -la
  safeexec check -- rm -rf /
  safeexec history --outcome DENIED`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		output.SetOutputMode(GetOutput() == "json")
		if flagProject == "" {
			return nil
		}
		if err := os.Chdir(flagProject); err != nil {
			return fmt.Errorf("changing directory to %s: %w", flagProject, err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && flagReason == "" {
			// When no command given, show quick reference card
			showQuickReference(cmd.OutOrStdout())
			return nil
		}
		if len(args) > 0 && cmd.ArgsLenAtDash() != 0 {
			return &ExitError{Code: 1, Err: fmt.Errorf("%w: place -- before the command, e.g. safeexec --reason \"...\" -- %s", core.ErrInvalidInvocation, args[0])}
		}
		return runGateway(cmd, flagReason, args, false)
	},
}

// ExitError carries a process exit status out of a command. Err, when set,
// is printed to stderr; a nil Err means the command already reported itself.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Execute runs the root command and returns the process exit status.
func Execute() int {
	return exitStatus(rootCmd.ErrOrStderr(), rootCmd.Execute())
}

func exitStatus(stderr io.Writer, err error) int {
	if err == nil {
		return 0
	}
	code := 1
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.Code
		if exitErr.Err == nil {
			return code
		}
		err = exitErr.Err
	}
	if output.IsJSON() {
		_ = output.OutputJSONError(err, code)
		return code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return code
}

// runGateway classifies argv, resolves approval, and runs it. The child's exit
// code becomes ours; every gateway-level failure is exit 1.
func runGateway(cmd *cobra.Command, reason string, argv []string, alwaysPrompt bool) error {
	rt, err := loadApp(cmd)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	defer rt.Close()

	override := core.OverrideFromEnv(os.Getenv(rt.cfg.General.OverrideEnv))
	inv, err := core.NewInvocation(reason, argv, override)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw := rt.gateway(cmd)
	gw.AlwaysPrompt = alwaysPrompt
	res, err := gw.Run(ctx, inv)
	code := core.ExitCodeFor(res, err)
	if code == 0 {
		return nil
	}
	if err != nil && !errors.Is(err, core.ErrBlocked) && !errors.Is(err, core.ErrDenied) {
		return &ExitError{Code: code, Err: err}
	}
	return &ExitError{Code: code}
}

// GetOutput returns the configured output format.
// Precedence: CLI flags > SAFEEXEC_OUTPUT_FORMAT env > default
func GetOutput() string {
	if flagJSON {
		return "json"
	}
	if flagOutput != "" && flagOutput != "text" {
		return flagOutput
	}
	if envFormat := os.Getenv("SAFEEXEC_OUTPUT_FORMAT"); envFormat != "" {
		switch envFormat {
		case "json", "yaml", "text":
			return envFormat
		}
	}
	if flagOutput == "" {
		return "text"
	}
	return flagOutput
}

// newWriter builds an output writer bound to the command's streams.
func newWriter(cmd *cobra.Command) (*output.Writer, error) {
	format, err := output.ParseFormat(GetOutput())
	if err != nil {
		return nil, err
	}
	return output.New(format, output.WithOutput(cmd.OutOrStdout()), output.WithErrorOutput(cmd.ErrOrStderr())), nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "project config file path")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "text", "output format: text, json, yaml (env: SAFEEXEC_OUTPUT_FORMAT)")
	rootCmd.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "shorthand for --output=json")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging on stderr")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "history index path")
	rootCmd.PersistentFlags().StringVar(&flagAuditLog, "audit-log", "", "audit log path")
	rootCmd.PersistentFlags().StringVar(&flagActor, "actor", "", "actor recorded in the audit log")
	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "C", "", "project directory")

	rootCmd.Flags().StringVarP(&flagReason, "reason", "r", "", "why the command should run (required)")
}
