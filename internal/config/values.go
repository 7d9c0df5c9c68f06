package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

type valueKind int

const (
	kindString valueKind = iota
	kindBool
	kindStringSlice
)

// keyKinds lists every settable key and its value type.
var keyKinds = map[string]valueKind{
	"general.override_env":          kindString,
	"general.log_level":             kindString,
	"audit.path":                    kindString,
	"audit.actor":                   kindString,
	"rules.denylist":                kindStringSlice,
	"rules.sensitive":               kindStringSlice,
	"history.enabled":               kindBool,
	"history.database_path":         kindString,
	"guardrails.allowed_top_level":  kindStringSlice,
	"guardrails.abs_path_allowlist": kindStringSlice,
	"guardrails.sudo_allowlist":     kindStringSlice,
	"guardrails.ssh_allowlist":      kindStringSlice,
	"guardrails.changelog_path":     kindString,
	"guardrails.base_ref":           kindString,
}

// Keys returns every settable key.
func Keys() []string {
	keys := make([]string, 0, len(keyKinds))
	for k := range keyKinds {
		keys = append(keys, k)
	}
	return keys
}

// GetValue returns the value at a dotted key; a section name returns the section.
func GetValue(cfg Config, key string) (any, bool) {
	switch key {
	case "general":
		return cfg.General, true
	case "audit":
		return cfg.Audit, true
	case "rules":
		return cfg.Rules, true
	case "history":
		return cfg.History, true
	case "guardrails":
		return cfg.Guardrails, true

	case "general.override_env":
		return cfg.General.OverrideEnv, true
	case "general.log_level":
		return cfg.General.LogLevel, true
	case "audit.path":
		return cfg.Audit.Path, true
	case "audit.actor":
		return cfg.Audit.Actor, true
	case "rules.denylist":
		return cfg.Rules.Denylist, true
	case "rules.sensitive":
		return cfg.Rules.Sensitive, true
	case "history.enabled":
		return cfg.History.Enabled, true
	case "history.database_path":
		return cfg.History.DatabasePath, true
	case "guardrails.allowed_top_level":
		return cfg.Guardrails.AllowedTopLevel, true
	case "guardrails.abs_path_allowlist":
		return cfg.Guardrails.AbsPathAllowlist, true
	case "guardrails.sudo_allowlist":
		return cfg.Guardrails.SudoAllowlist, true
	case "guardrails.ssh_allowlist":
		return cfg.Guardrails.SSHAllowlist, true
	case "guardrails.changelog_path":
		return cfg.Guardrails.ChangelogPath, true
	case "guardrails.base_ref":
		return cfg.Guardrails.BaseRef, true
	}
	return nil, false
}

// ParseValue converts a command-line string to the key's type. Lists are
// comma-separated; blank items are dropped.
func ParseValue(key, raw string) (any, error) {
	kind, ok := keyKinds[key]
	if !ok {
		return nil, fmt.Errorf("unsupported config key %q", key)
	}
	return parseValueByKind(raw, kind)
}

func parseValueByKind(raw string, kind valueKind) (any, error) {
	switch kind {
	case kindString:
		return strings.TrimSpace(raw), nil
	case kindBool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid bool %q", raw)
		}
		return b, nil
	case kindStringSlice:
		var out []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value kind %d", kind)
}

// WriteValue sets key in the TOML file at path, creating the file and any
// intermediate tables. Other content is preserved.
func WriteValue(path, key string, value any) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("config path is required")
	}
	parts := strings.Split(key, ".")
	if len(parts) < 2 {
		return fmt.Errorf("key %q must be section.name", key)
	}

	doc := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return fmt.Errorf("decode config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	table := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := table[part]
		if !ok {
			child := map[string]any{}
			table[part] = child
			table = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("config key %q is not a table", part)
		}
		table = child
	}
	table[parts[len(parts)-1]] = value

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
