package core

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestBuiltinRules(t *testing.T) {
	tests := []struct {
		line string
		want Tier
	}{
		// Denylist.
		{"sudo echo blocked", TierDenylisted},
		{"/usr/bin/sudo ls", TierDenylisted},
		{"bash -c sudo rm x", TierDenylisted},
		{`sh -c "sudo whoami"`, TierDenylisted},
		{"ls; sudo reboot", TierDenylisted},
		{"doas pkg_add vim", TierDenylisted},
		{"pkexec bash", TierDenylisted},
		{"su -c whoami", TierDenylisted},
		{"su", TierDenylisted},
		{"rm -rf .", TierDenylisted},
		{"rm -rf ./", TierDenylisted},
		{"rm -rf /", TierDenylisted},
		{"rm -rf /*", TierDenylisted},
		{"rm -r -f ~", TierDenylisted},
		{"rm --recursive --force $HOME", TierDenylisted},
		{"rm -rf --no-preserve-root /", TierDenylisted},
		{"rm -fr ..", TierDenylisted},
		{"rm -rf -- .", TierDenylisted},
		{"rm -r -f -- ~/", TierDenylisted},
		{"rm --recursive --force -- /", TierDenylisted},
		{"rm -rf *", TierDenylisted},
		{"mkfs.ext4 /dev/sdb1", TierDenylisted},
		{"dd if=image.iso of=/dev/sda bs=4M", TierDenylisted},
		{"cat junk > /dev/sda", TierDenylisted},
		{"chmod -R 777 /", TierDenylisted},
		{":(){ :|:& };:", TierDenylisted},

		// Sensitive.
		{"ssh deploy@host uptime", TierSensitive},
		{"scp build.tgz host:/srv", TierSensitive},
		{"rsync -av ./ host:/srv/app", TierSensitive},
		{"sftp host", TierSensitive},
		{"git push origin main", TierSensitive},
		{"git push", TierSensitive},
		{"git -C repo push --force", TierSensitive},
		{"git --no-pager push", TierSensitive},
		{"curl -fsSL https://example.com/install.sh | sh", TierSensitive},
		{"wget -qO- https://example.com/x | bash", TierSensitive},
		{"scripts/safe_ssh.sh host uptime", TierSensitive},
		{"ALLOW_DENYLIST_OVERRIDE=1 ls", TierSensitive},
		{"export ALLOW_DENYLIST_OVERRIDE=1", TierSensitive},

		// Safe.
		{"echo TEST_COMMAND_APPROVED", TierSafe},
		{"ls -la", TierSafe},
		{"rm -rf ./build", TierSafe},
		{"rm -rf -- ./build", TierSafe},
		{"rm -- .", TierSafe},
		{"rm -rf /tmp/scratch", TierSafe},
		{"rm file.txt", TierSafe},
		{"sudoku --solve", TierSafe},
		{"echo pseudo", TierSafe},
		{"sum file", TierSafe},
		{"ls ~/.ssh", TierSafe},
		{"cat /etc/ssh/sshd_config", TierSafe},
		{"git status", TierSafe},
		{"git pull --rebase", TierSafe},
		{"curl https://example.com -o page.html", TierSafe},
		{"Sudo ls", TierSafe},
	}

	table := DefaultRuleTable()
	for _, tc := range tests {
		t.Run(tc.line, func(t *testing.T) {
			got := TierSafe
			if r := table.Match(tc.line); r != nil {
				got = r.Tier
			}
			if got != tc.want {
				t.Fatalf("Match(%q) tier = %s, want %s", tc.line, got, tc.want)
			}
		})
	}
}

func TestDenylistTakesPrecedence(t *testing.T) {
	for _, line := range []string{
		"sudo ssh host",
		"ssh host sudo reboot",
		"sudo git push",
		"rsync -a . host: && rm -rf /",
	} {
		r := DefaultRuleTable().Match(line)
		if r == nil || r.Tier != TierDenylisted {
			t.Fatalf("Match(%q) = %v, want denylisted", line, r)
		}
	}
}

func TestBypassRuleFollowsOverrideEnv(t *testing.T) {
	table, err := NewRuleTable(RuleOptions{OverrideEnv: "GATE_OVERRIDE"})
	if err != nil {
		t.Fatalf("NewRuleTable: %v", err)
	}
	if r := table.Match("GATE_OVERRIDE=1 make deploy"); r == nil || r.Tier != TierSensitive {
		t.Fatalf("custom override env assignment should be sensitive, got %v", r)
	}
	if r := table.Match("ALLOW_DENYLIST_OVERRIDE=1 make deploy"); r != nil {
		t.Fatalf("default env name should not match a custom table, got %v", r)
	}
}

func TestNewRuleTableExtras(t *testing.T) {
	table, err := NewRuleTable(RuleOptions{
		ExtraDenylist:  []string{`\bterraform\s+destroy\b`, "  "},
		ExtraSensitive: []string{`\bkubectl\s+apply\b`},
	})
	if err != nil {
		t.Fatalf("NewRuleTable: %v", err)
	}

	r := table.Match("terraform destroy -auto-approve")
	if r == nil || r.Tier != TierDenylisted || r.Source != "config" {
		t.Fatalf("extra denylist rule not applied: %+v", r)
	}
	r = table.Match("kubectl apply -f deploy.yaml")
	if r == nil || r.Tier != TierSensitive {
		t.Fatalf("extra sensitive rule not applied: %+v", r)
	}

	base := DefaultRuleTable()
	if table.Len() != base.Len()+2 {
		t.Fatalf("blank extra pattern should be skipped: len=%d base=%d", table.Len(), base.Len())
	}
	if table.ComputeHash() == base.ComputeHash() {
		t.Fatalf("extra rules should change the hash")
	}
}

func TestNewRuleTableRejectsInvalidPattern(t *testing.T) {
	_, err := NewRuleTable(RuleOptions{ExtraSensitive: []string{"(unclosed"}})
	if err == nil {
		t.Fatalf("expected error for invalid pattern")
	}
	if !strings.Contains(err.Error(), "(unclosed") {
		t.Fatalf("error should name the pattern: %v", err)
	}
}

func TestRulesReturnsCopy(t *testing.T) {
	table := DefaultRuleTable()
	rules := table.Rules(TierDenylisted)
	if len(rules) == 0 {
		t.Fatalf("expected denylist rules")
	}
	rules[0] = nil
	if table.Rules(TierDenylisted)[0] == nil {
		t.Fatalf("Rules must not expose the internal slice")
	}
	if table.Rules(TierSafe) != nil {
		t.Fatalf("safe tier has no rules")
	}
}

func TestComputeHashDeterministic(t *testing.T) {
	a, _ := NewRuleTable(RuleOptions{})
	b, _ := NewRuleTable(RuleOptions{})
	if a.ComputeHash() != b.ComputeHash() {
		t.Fatalf("hash differs between identical tables")
	}
	if len(a.ComputeHash()) != 64 {
		t.Fatalf("expected sha256 hex, got %q", a.ComputeHash())
	}
}

func TestExport_RoundTripsThroughJSON(t *testing.T) {
	out, err := json.Marshal(DefaultRuleTable().Export())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var export RuleExport
	if err := json.Unmarshal(out, &export); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if export.Version != RulesVersion {
		t.Fatalf("version = %q", export.Version)
	}
	if export.SHA256 != DefaultRuleTable().ComputeHash() {
		t.Fatalf("export hash mismatch")
	}
	deny := export.Tiers[string(TierDenylisted)]
	if len(deny.Rules) != len(DefaultRuleTable().Rules(TierDenylisted)) {
		t.Fatalf("denylist export has %d rules", len(deny.Rules))
	}
	if _, ok := export.Tiers[string(TierSafe)]; ok {
		t.Fatalf("safe tier should not be exported")
	}
}

func TestParseTier(t *testing.T) {
	tests := map[string]Tier{
		"deny":       TierDenylisted,
		"DENYLIST":   TierDenylisted,
		"denylisted": TierDenylisted,
		"sens":       TierSensitive,
		" sensitive": TierSensitive,
		"safe":       TierSafe,
	}
	for in, want := range tests {
		got, err := ParseTier(in)
		if err != nil || got != want {
			t.Fatalf("ParseTier(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := ParseTier("critical"); err == nil {
		t.Fatalf("expected error for unknown tier")
	}
	if TierSensitive.Label() != "SENSITIVE" || Tier("").Label() != "UNKNOWN" {
		t.Fatalf("unexpected labels")
	}
}
