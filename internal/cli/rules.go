package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/Dicklesworthstone/safeexec/internal/core"
	"github.com/Dicklesworthstone/safeexec/internal/output"
	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"
)

var (
	flagRulesTier       string
	flagRulesFormat     string
	flagRulesOutputFile string
	flagCheckExitCode   bool
)

func init() {
	rulesListCmd.Flags().StringVarP(&flagRulesTier, "tier", "T", "", "only list one tier (denylist, sensitive)")
	_ = rulesListCmd.RegisterFlagCompletionFunc("tier", completeTiers)

	rulesExportCmd.Flags().StringVarP(&flagRulesFormat, "format", "f", "json", "export format: json, yaml")
	rulesExportCmd.Flags().StringVar(&flagRulesOutputFile, "file", "", "write to a file instead of stdout")

	checkCmd.Flags().BoolVar(&flagCheckExitCode, "exit-code", false, "exit 1 when the command would not run unattended")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesExportCmd)
	rulesCmd.AddCommand(rulesVersionCmd)

	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(checkCmd)
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect the classification rules",
	Long: `Inspect the rules used to classify commands.

Rules are regular expressions matched against the command line (argv joined
with single spaces). The denylist is consulted first; a command matching no
rule is SAFE. Extra rules come from [rules] in the config file and can only
make classification stricter.`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules grouped by tier",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRules(cmd)
		if err != nil {
			return err
		}
		tiers := []core.Tier{core.TierDenylisted, core.TierSensitive}
		if flagRulesTier != "" {
			tier, err := core.ParseTier(flagRulesTier)
			if err != nil {
				return err
			}
			if tier == core.TierSafe {
				return fmt.Errorf("the safe tier has no rules: a command is safe when nothing matches")
			}
			tiers = []core.Tier{tier}
		}

		out, err := newWriter(cmd)
		if err != nil {
			return err
		}
		if out.Structured() {
			result := make(map[string][]ruleJSON, len(tiers))
			for _, tier := range tiers {
				result[string(tier)] = rulesJSON(rt.Rules(tier))
			}
			return out.Write(result)
		}

		w := cmd.OutOrStdout()
		for _, tier := range tiers {
			rules := rt.Rules(tier)
			fmt.Fprintf(w, "\n%s (%d rules):\n", tier.Label(), len(rules))
			for _, r := range rules {
				fmt.Fprintf(w, "  %s\n", r.Pattern)
				if r.Description != "" {
					fmt.Fprintf(w, "    # %s", r.Description)
					if r.Source != "builtin" {
						fmt.Fprintf(w, " (%s)", r.Source)
					}
					fmt.Fprintln(w)
				}
			}
		}
		fmt.Fprintln(w)
		return nil
	},
}

var rulesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export rules for external tools",
	Long: `Export the full rule table with its version and hash.

Available formats:
  json - indented JSON (default)
  yaml - YAML

Examples:
  safeexec rules export                      # JSON to stdout
  safeexec rules export -f yaml              # YAML to stdout
  safeexec rules export --file rules.json    # JSON to file`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRules(cmd)
		if err != nil {
			return err
		}
		format, err := output.ParseFormat(flagRulesFormat)
		if err != nil || format == output.FormatText {
			return fmt.Errorf("unknown format: %s (use json or yaml)", flagRulesFormat)
		}

		target := cmd.OutOrStdout()
		if flagRulesOutputFile != "" {
			f, err := os.Create(flagRulesOutputFile)
			if err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			defer f.Close()
			target = f
		}

		export := rt.Export()
		if err := output.New(format, output.WithOutput(target)).Write(export); err != nil {
			return err
		}
		if flagRulesOutputFile == "" {
			return nil
		}

		out, err := newWriter(cmd)
		if err != nil {
			return err
		}
		if out.Structured() {
			return out.Write(map[string]any{
				"status": "exported",
				"format": format,
				"file":   flagRulesOutputFile,
				"sha256": export.SHA256,
				"count":  rt.Len(),
			})
		}
		out.Success(fmt.Sprintf("exported %d rules to %s", rt.Len(), flagRulesOutputFile))
		return nil
	},
}

var rulesVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the rule table version and hash",
	Long: `Show the rule table version and SHA256 hash.

The hash covers every pattern (builtin and configured) and changes whenever
a rule is added or edited, so external tools can detect drift.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRules(cmd)
		if err != nil {
			return err
		}
		out, err := newWriter(cmd)
		if err != nil {
			return err
		}
		payload := map[string]any{
			"version":   core.RulesVersion,
			"sha256":    rt.ComputeHash(),
			"denylist":  len(rt.Rules(core.TierDenylisted)),
			"sensitive": len(rt.Rules(core.TierSensitive)),
		}
		if out.Structured() {
			return out.Write(payload)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "rules %s\n", core.RulesVersion)
		fmt.Fprintf(w, "  sha256:    %s\n", payload["sha256"])
		fmt.Fprintf(w, "  denylist:  %d\n", payload["denylist"])
		fmt.Fprintf(w, "  sensitive: %d\n", payload["sensitive"])
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <command...>",
	Short: "Show how a command would be classified",
	Long: `Classify a command without running or logging it.

Pass the argv after --, or a single quoted string which is split the way a
shell would split it.

Use --exit-code to exit 1 when the command is not SAFE (it would prompt or
be blocked). This is useful in hooks.

Examples:
  safeexec check -- git push origin main
  safeexec check "rm -rf /" --exit-code -j`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		argv, err := commandArgs(args)
		if err != nil {
			return err
		}
		rt, err := loadRules(cmd)
		if err != nil {
			return err
		}
		c, err := rt.Classify(argv)
		if err != nil {
			return err
		}

		resp := map[string]any{
			"command":      core.QuoteArgv(argv),
			"tier":         string(c.Tier),
			"needs_prompt": c.Tier == core.TierSensitive,
			"blocked":      c.Tier == core.TierDenylisted,
		}
		if c.Rule != nil {
			resp["rule"] = c.Rule.Description
			resp["pattern"] = c.Rule.Pattern
		}

		out, err := newWriter(cmd)
		if err != nil {
			return err
		}
		if out.Structured() {
			if err := out.Write(resp); err != nil {
				return err
			}
		} else {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Command:  %s\n", resp["command"])
			fmt.Fprintf(w, "Tier:     %s\n", c.Tier.Label())
			if c.Rule != nil {
				fmt.Fprintf(w, "Rule:     %s\n", c.Rule.Description)
				fmt.Fprintf(w, "Pattern:  %s\n", c.Rule.Pattern)
			}
		}

		// Exit code handling for hooks integration
		if flagCheckExitCode && c.Tier != core.TierSafe {
			return &ExitError{Code: 1}
		}
		return nil
	},
}

// loadRules builds the rule table from configuration.
func loadRules(cmd *cobra.Command) (*core.RuleTable, error) {
	rt, err := loadConfigOnly(cmd)
	if err != nil {
		return nil, err
	}
	return rt.buildRules()
}

// commandArgs returns args as an argv; a single argument containing
// whitespace is split with shell quoting rules.
func commandArgs(args []string) ([]string, error) {
	if len(args) != 1 || !strings.ContainsAny(args[0], " \t") {
		return args, nil
	}
	argv, err := shellwords.Parse(args[0])
	if err != nil {
		return nil, fmt.Errorf("parsing command: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: no command given", core.ErrInvalidInvocation)
	}
	return argv, nil
}

type ruleJSON struct {
	Pattern     string `json:"pattern"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source"`
}

func rulesJSON(rules []*core.Rule) []ruleJSON {
	out := make([]ruleJSON, 0, len(rules))
	for _, r := range rules {
		out = append(out, ruleJSON{Pattern: r.Pattern, Description: r.Description, Source: r.Source})
	}
	return out
}
