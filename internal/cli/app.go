package cli

import (
	"fmt"
	"os"

	"github.com/Dicklesworthstone/safeexec/internal/audit"
	"github.com/Dicklesworthstone/safeexec/internal/config"
	"github.com/Dicklesworthstone/safeexec/internal/core"
	"github.com/Dicklesworthstone/safeexec/internal/db"
	"github.com/Dicklesworthstone/safeexec/internal/utils"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// app is everything a command needs after configuration is resolved.
type app struct {
	project string
	cfg     config.Config
	logger  *log.Logger
	rules   *core.RuleTable
	audit   *audit.Logger
	index   *db.DB
	actor   string
}

// loadApp resolves configuration and opens the audit log. The history
// index is best-effort: if it cannot be opened the gateway runs without it.
func loadApp(cmd *cobra.Command) (*app, error) {
	rt, err := loadConfigOnly(cmd)
	if err != nil {
		return nil, err
	}

	if rt.rules, err = rt.buildRules(); err != nil {
		return nil, err
	}

	opts := []audit.Option{audit.WithLogger(rt.logger.WithPrefix("audit"))}
	if rt.cfg.History.Enabled {
		dbPath := rt.dbPath()
		index, err := db.OpenAndMigrate(dbPath)
		if err != nil {
			rt.logger.Warn("history index unavailable, continuing without it", "path", dbPath, "error", err)
		} else {
			rt.index = index
			opts = append(opts, audit.WithMirror(index))
		}
	}
	rt.audit = audit.NewLogger(rt.auditPath(), opts...)
	rt.actor = resolveActor(rt.cfg.Audit.Actor)
	return rt, nil
}

// loadConfigOnly resolves configuration and the logger without touching
// the audit log or the index.
func loadConfigOnly(cmd *cobra.Command) (*app, error) {
	project, err := projectPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(config.LoadOptions{
		ProjectDir:    project,
		ConfigPath:    flagConfig,
		FlagOverrides: flagOverrides(),
	})
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := utils.InitLogger(utils.LoggerOptions{
		Level:  cfg.General.LogLevel,
		Output: cmd.ErrOrStderr(),
		Prefix: "safeexec",
	})
	utils.SetDefaultLogger(logger)

	return &app{project: project, cfg: cfg, logger: logger}, nil
}

// buildRules compiles the builtin rules plus the configured extras.
func (rt *app) buildRules() (*core.RuleTable, error) {
	rules, err := core.NewRuleTable(core.RuleOptions{
		OverrideEnv:    rt.cfg.General.OverrideEnv,
		ExtraDenylist:  rt.cfg.Rules.Denylist,
		ExtraSensitive: rt.cfg.Rules.Sensitive,
	})
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	return rules, nil
}

// Close releases the history index.
func (rt *app) Close() {
	if rt.index != nil {
		if err := rt.index.Close(); err != nil {
			rt.logger.Debug("closing history index", "error", err)
		}
	}
}

func (rt *app) auditPath() string {
	return config.ResolvePath(rt.project, rt.cfg.Audit.Path)
}

func (rt *app) dbPath() string {
	return config.ResolvePath(rt.project, rt.cfg.History.DatabasePath)
}

// gateway wires the runtime to the command's streams.
func (rt *app) gateway(cmd *cobra.Command) *core.Gateway {
	return &core.Gateway{
		Rules: rt.rules,
		Audit: rt.audit,
		Runner: core.ProcessRunner{
			Stdin:       cmd.InOrStdin(),
			Stdout:      cmd.OutOrStdout(),
			Stderr:      cmd.ErrOrStderr(),
			GracePeriod: core.DefaultGracePeriod,
		},
		Renderer:    promptRenderer(cmd.OutOrStdout()),
		In:          cmd.InOrStdin(),
		Out:         cmd.OutOrStdout(),
		Logger:      rt.logger.WithPrefix("gateway"),
		Actor:       rt.actor,
		OverrideEnv: rt.cfg.General.OverrideEnv,
	}
}

// flagOverrides maps global flags onto config keys.
func flagOverrides() map[string]any {
	overrides := map[string]any{}
	if flagAuditLog != "" {
		overrides["audit.path"] = flagAuditLog
	}
	if flagDB != "" {
		overrides["history.database_path"] = flagDB
	}
	if flagActor != "" {
		overrides["audit.actor"] = flagActor
	}
	if flagVerbose {
		overrides["general.log_level"] = "debug"
	}
	return overrides
}

// projectPath returns the project directory (the working directory after -C).
func projectPath() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	return wd, nil
}

// resolveActor picks the audit actor.
// Precedence: config/flag > SAFEEXEC_ACTOR > AGENT_NAME > user@host
func resolveActor(configured string) string {
	if configured != "" {
		return configured
	}
	if actor := os.Getenv("SAFEEXEC_ACTOR"); actor != "" {
		return actor
	}
	if actor := os.Getenv("AGENT_NAME"); actor != "" {
		return actor
	}
	user := os.Getenv("USER")
	if user == "" {
		user = "unknown"
	}
	host, _ := os.Hostname()
	if host == "" {
		host = "localhost"
	}
	return user + "@" + host
}
