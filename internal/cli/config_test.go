package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/Dicklesworthstone/safeexec/internal/testutil"
)

func TestConfigCommand_ShowsDefaults(t *testing.T) {
	newTestProject(t)

	stdout, _, err := executeCommand(rootCmd, "config")
	testutil.RequireNoError(t, err, "config")
	testutil.RequireContains(t, stdout, `override_env = "ALLOW_DENYLIST_OVERRIDE"`, "toml output")

	resetFlags()
	stdout, _, err = executeCommand(rootCmd, "config", "-j")
	testutil.RequireNoError(t, err, "config -j")
	var cfg map[string]any
	testutil.RequireNoError(t, json.Unmarshal([]byte(stdout), &cfg), "decode")
	if _, ok := cfg["audit"]; !ok {
		t.Fatal("expected an audit section")
	}
}

func TestConfigSetAndGet(t *testing.T) {
	h := newTestProject(t)

	_, stderr, err := executeCommand(rootCmd, "config", "set", "audit.actor", "ci-bot")
	testutil.RequireNoError(t, err, "set")
	testutil.RequireContains(t, stderr, "set audit.actor", "success message")
	testutil.RequireContains(t, h.ReadFile(".safeexec/config.toml"), "ci-bot", "written to project file")

	resetFlags()
	stdout, _, err := executeCommand(rootCmd, "config", "get", "audit.actor")
	testutil.RequireNoError(t, err, "get")
	testutil.RequireEqual(t, "ci-bot\n", stdout, "value")

	resetFlags()
	_, _, err = executeCommand(rootCmd, "config", "set", "rules.sensitive", `\bterraform\s+apply\b,\bhelm\s+upgrade\b`)
	testutil.RequireNoError(t, err, "set list")

	resetFlags()
	stdout, _, err = executeCommand(rootCmd, "config", "get", "rules.sensitive", "-j")
	testutil.RequireNoError(t, err, "get list")
	var got struct {
		Key   string   `json:"key"`
		Value []string `json:"value"`
	}
	testutil.RequireNoError(t, json.Unmarshal([]byte(stdout), &got), "decode")
	testutil.RequireLen(t, got.Value, 2, "two patterns")

	resetFlags()
	stdout, _, err = executeCommand(rootCmd, "check", "--", "helm", "upgrade", "web")
	testutil.RequireNoError(t, err, "check")
	testutil.RequireContains(t, stdout, "SENSITIVE", "configured rule in effect")
}

func TestConfigSet_Global(t *testing.T) {
	h := newTestProject(t)
	home := os.Getenv("HOME")

	_, _, err := executeCommand(rootCmd, "config", "set", "--global", "general.log_level", "info")
	testutil.RequireNoError(t, err, "set --global")

	data, err := os.ReadFile(filepath.Join(home, ".safeexec", "config.toml"))
	testutil.RequireNoError(t, err, "read user config")
	testutil.RequireContains(t, string(data), "info", "written to user file")
	if h.Exists(".safeexec/config.toml") {
		t.Fatal("project file should not be touched")
	}
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown get", []string{"config", "get", "nope.key"}},
		{"unknown set", []string{"config", "set", "nope.key", "x"}},
		{"bad bool", []string{"config", "set", "history.enabled", "maybe"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			newTestProject(t)
			if _, _, err := executeCommand(rootCmd, tc.args...); err == nil {
				t.Fatalf("expected an error for %v", tc.args)
			}
		})
	}
}

func TestCompleteConfigKeys(t *testing.T) {
	keys := completeConfigKeys("rules.")
	testutil.RequireLen(t, keys, 2, "rules keys")
	testutil.RequireEqual(t, "rules.denylist", keys[0], "sorted")
	testutil.RequireLen(t, completeConfigKeys("zzz"), 0, "no match")
}
