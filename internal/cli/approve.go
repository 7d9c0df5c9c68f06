package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(approveCmd)
}

var approveCmd = &cobra.Command{
	Use:   "approve <reason> <command-string>",
	Short: "Ask for approval of any command, then run it",
	Long: `Show the approval prompt for a command regardless of its tier.

The command string is split the way a shell would split it; it is not run
through a shell. On "y" the decision is logged as APPROVED and the command
runs; anything else is logged as DENIED. A denylisted command is still
blocked unless the override variable is set.

Examples:
  safeexec approve "Rotate staging keys" "./scripts/rotate.sh --env staging"
  safeexec approve "Clean build cache" -- rm -rf ./build`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		argv, err := commandArgs(args[1:])
		if err != nil {
			return &ExitError{Code: 1, Err: err}
		}
		return runGateway(cmd, args[0], argv, true)
	},
}
