package cli

import (
	"strings"

	"github.com/Dicklesworthstone/safeexec/internal/audit"
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:       "completion [bash|zsh|fish|powershell]",
	Short:     "Generate shell completion scripts",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(out, true)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		default:
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

var outcomeDescriptions = map[string]string{
	audit.OutcomeApproved:   "approved at the prompt",
	audit.OutcomeDenied:     "denied or no answer",
	audit.OutcomeBlocked:    "denylisted, never prompted",
	audit.OutcomeExecFailed: "approved but the program failed to start",
}

func completeOutcomes(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	out := make([]string, 0, len(outcomeDescriptions))
	for _, o := range []string{audit.OutcomeApproved, audit.OutcomeDenied, audit.OutcomeBlocked, audit.OutcomeExecFailed} {
		if toComplete != "" && !strings.HasPrefix(o, strings.ToUpper(toComplete)) {
			continue
		}
		out = append(out, o+"\t"+outcomeDescriptions[o])
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func completeTiers(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var out []string
	for _, t := range []string{"denylist", "sensitive"} {
		if strings.HasPrefix(t, strings.ToLower(toComplete)) {
			out = append(out, t)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
