// Package config loads safeexec configuration.
//
// Precedence, lowest to highest: built-in defaults, the user file
// (~/.safeexec/config.toml), the project file (<project>/.safeexec/config.toml
// or --config), SAFEEXEC_* environment variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// DirName is the per-user and per-project state directory.
const DirName = ".safeexec"

// Config is the full configuration.
type Config struct {
	General    GeneralConfig    `toml:"general" mapstructure:"general" json:"general" yaml:"general"`
	Audit      AuditConfig      `toml:"audit" mapstructure:"audit" json:"audit" yaml:"audit"`
	Rules      RulesConfig      `toml:"rules" mapstructure:"rules" json:"rules" yaml:"rules"`
	History    HistoryConfig    `toml:"history" mapstructure:"history" json:"history" yaml:"history"`
	Guardrails GuardrailsConfig `toml:"guardrails" mapstructure:"guardrails" json:"guardrails" yaml:"guardrails"`
}

type GeneralConfig struct {
	// OverrideEnv names the variable that requests a denylist override.
	OverrideEnv string `toml:"override_env" mapstructure:"override_env" json:"override_env" yaml:"override_env"`
	LogLevel    string `toml:"log_level" mapstructure:"log_level" json:"log_level" yaml:"log_level"`
}

type AuditConfig struct {
	// Path is relative to the project directory unless absolute.
	Path string `toml:"path" mapstructure:"path" json:"path" yaml:"path"`
	// Actor is recorded in each entry; empty means user@host.
	Actor string `toml:"actor" mapstructure:"actor" json:"actor" yaml:"actor"`
}

type RulesConfig struct {
	Denylist  []string `toml:"denylist" mapstructure:"denylist" json:"denylist" yaml:"denylist"`
	Sensitive []string `toml:"sensitive" mapstructure:"sensitive" json:"sensitive" yaml:"sensitive"`
}

type HistoryConfig struct {
	Enabled bool `toml:"enabled" mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	// DatabasePath is relative to the project directory unless absolute.
	DatabasePath string `toml:"database_path" mapstructure:"database_path" json:"database_path" yaml:"database_path"`
}

type GuardrailsConfig struct {
	// AllowedTopLevel lists permitted top-level entries; empty disables the check.
	AllowedTopLevel  []string `toml:"allowed_top_level" mapstructure:"allowed_top_level" json:"allowed_top_level" yaml:"allowed_top_level"`
	AbsPathAllowlist []string `toml:"abs_path_allowlist" mapstructure:"abs_path_allowlist" json:"abs_path_allowlist" yaml:"abs_path_allowlist"`
	SudoAllowlist    []string `toml:"sudo_allowlist" mapstructure:"sudo_allowlist" json:"sudo_allowlist" yaml:"sudo_allowlist"`
	SSHAllowlist     []string `toml:"ssh_allowlist" mapstructure:"ssh_allowlist" json:"ssh_allowlist" yaml:"ssh_allowlist"`
	ChangelogPath    string   `toml:"changelog_path" mapstructure:"changelog_path" json:"changelog_path" yaml:"changelog_path"`
	BaseRef          string   `toml:"base_ref" mapstructure:"base_ref" json:"base_ref" yaml:"base_ref"`
}

// LoadOptions controls Load.
type LoadOptions struct {
	// ProjectDir is the project root; empty means the working directory.
	ProjectDir string
	// ConfigPath replaces the project config file.
	ConfigPath string
	// FlagOverrides are dotted keys set by command-line flags.
	FlagOverrides map[string]any
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			OverrideEnv: "ALLOW_DENYLIST_OVERRIDE",
			LogLevel:    "warn",
		},
		Audit: AuditConfig{
			Path: filepath.Join("notes", "approvals.log"),
		},
		History: HistoryConfig{
			Enabled:      true,
			DatabasePath: filepath.Join(DirName, "history.db"),
		},
		Guardrails: GuardrailsConfig{
			AbsPathAllowlist: []string{"security/DENYLIST.md", "scripts/safe_exec.sh"},
			SudoAllowlist:    []string{"security/DENYLIST.md"},
			SSHAllowlist:     []string{"scripts/safe_ssh.sh"},
			ChangelogPath:    "notes/CHANGELOG.md",
			BaseRef:          "origin/main",
		},
	}
}

// envBindings maps SAFEEXEC_* variables to keys.
var envBindings = map[string]string{
	"general.override_env":  "SAFEEXEC_OVERRIDE_ENV",
	"general.log_level":     "SAFEEXEC_LOG_LEVEL",
	"audit.path":            "SAFEEXEC_AUDIT_PATH",
	"audit.actor":           "SAFEEXEC_AUDIT_ACTOR",
	"history.enabled":       "SAFEEXEC_HISTORY_ENABLED",
	"history.database_path": "SAFEEXEC_HISTORY_DB",
}

// Load resolves configuration with full precedence and validates it.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	setDefaults(v)

	userPath, projectPath := ConfigPaths(opts.ProjectDir, opts.ConfigPath)
	if err := mergeConfigFile(v, userPath); err != nil {
		return Config{}, err
	}
	if err := mergeConfigFile(v, projectPath); err != nil {
		return Config{}, err
	}

	for key, env := range envBindings {
		raw, ok := os.LookupEnv(env)
		if !ok {
			continue
		}
		val, err := ParseValue(key, raw)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", env, err)
		}
		v.Set(key, val)
	}

	for key, val := range opts.FlagOverrides {
		v.Set(key, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("general.override_env", d.General.OverrideEnv)
	v.SetDefault("general.log_level", d.General.LogLevel)
	v.SetDefault("audit.path", d.Audit.Path)
	v.SetDefault("audit.actor", d.Audit.Actor)
	v.SetDefault("rules.denylist", d.Rules.Denylist)
	v.SetDefault("rules.sensitive", d.Rules.Sensitive)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.database_path", d.History.DatabasePath)
	v.SetDefault("guardrails.allowed_top_level", d.Guardrails.AllowedTopLevel)
	v.SetDefault("guardrails.abs_path_allowlist", d.Guardrails.AbsPathAllowlist)
	v.SetDefault("guardrails.sudo_allowlist", d.Guardrails.SudoAllowlist)
	v.SetDefault("guardrails.ssh_allowlist", d.Guardrails.SSHAllowlist)
	v.SetDefault("guardrails.changelog_path", d.Guardrails.ChangelogPath)
	v.SetDefault("guardrails.base_ref", d.Guardrails.BaseRef)
}

// mergeConfigFile merges a TOML file into v. Empty or missing paths are skipped.
func mergeConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat config %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}

	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := v.MergeConfigMap(raw); err != nil {
		return fmt.Errorf("merge config %s: %w", path, err)
	}
	return nil
}

// ConfigPaths returns the user and project config file paths.
func ConfigPaths(projectDir, configPath string) (string, string) {
	userPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		userPath = filepath.Join(home, DirName, "config.toml")
	}
	return userPath, projectConfigPath(projectDir, configPath)
}

func projectConfigPath(projectDir, configPath string) string {
	if configPath != "" {
		return configPath
	}
	return filepath.Join(projectDir, DirName, "config.toml")
}

var envName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks a resolved configuration.
func Validate(cfg Config) error {
	var errs []string

	if !envName.MatchString(cfg.General.OverrideEnv) {
		errs = append(errs, fmt.Sprintf("general.override_env %q is not a valid variable name", cfg.General.OverrideEnv))
	}
	switch strings.ToLower(cfg.General.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("general.log_level must be debug, info, warn or error (got %q)", cfg.General.LogLevel))
	}
	if strings.TrimSpace(cfg.Audit.Path) == "" {
		errs = append(errs, "audit.path is required")
	}
	if cfg.History.Enabled && strings.TrimSpace(cfg.History.DatabasePath) == "" {
		errs = append(errs, "history.database_path is required when history is enabled")
	}
	for _, p := range cfg.Rules.Denylist {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Sprintf("rules.denylist: invalid pattern %q: %v", p, err))
		}
	}
	for _, p := range cfg.Rules.Sensitive {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Sprintf("rules.sensitive: invalid pattern %q: %v", p, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ResolvePath makes a configured path absolute relative to projectDir.
func ResolvePath(projectDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return filepath.Join(projectDir, path)
}
