package cli

import (
	"fmt"
	"runtime"

	"github.com/Dicklesworthstone/safeexec/internal/config"
	"github.com/Dicklesworthstone/safeexec/internal/core"
	"github.com/Dicklesworthstone/safeexec/internal/git"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadConfigOnly(cmd)
		if err != nil {
			return err
		}
		rules, err := rt.buildRules()
		if err != nil {
			return err
		}
		userConfig, projectConfig := config.ConfigPaths(rt.project, flagConfig)

		payload := map[string]any{
			"version":        version,
			"commit":         commit,
			"build_date":     date,
			"go_version":     runtime.Version(),
			"rules_version":  core.RulesVersion,
			"rules_sha256":   rules.ComputeHash(),
			"user_config":    userConfig,
			"project_config": projectConfig,
			"audit_path":     rt.auditPath(),
			"db_path":        rt.dbPath(),
			"project_path":   rt.project,
		}
		if branch, err := git.GetBranch(rt.project); err == nil {
			payload["git_branch"] = branch
		}

		out, err := newWriter(cmd)
		if err != nil {
			return err
		}
		if out.Structured() {
			return out.Write(payload)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "safeexec %s\n", version)
		fmt.Fprintf(w, "  commit:  %s\n", commit)
		fmt.Fprintf(w, "  built:   %s\n", date)
		fmt.Fprintf(w, "  go:      %s\n", payload["go_version"])
		fmt.Fprintf(w, "  rules:   %s (%.12s)\n", core.RulesVersion, payload["rules_sha256"])
		fmt.Fprintf(w, "  config:  %s\n", projectConfig)
		fmt.Fprintf(w, "  audit:   %s\n", payload["audit_path"])
		fmt.Fprintf(w, "  db:      %s\n", payload["db_path"])
		fmt.Fprintf(w, "  project: %s\n", rt.project)
		if branch, ok := payload["git_branch"]; ok {
			fmt.Fprintf(w, "  branch:  %s\n", branch)
		}
		return nil
	},
}
