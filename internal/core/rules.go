// Package core implements the command gate: rule table, classification,
// the approval workflow, and process execution.
package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// RulesVersion identifies the builtin rule table. Bump it whenever a builtin
// pattern is added, removed, or changed.
const RulesVersion = "1.3.0"

// DefaultOverrideEnv is the environment variable that requests a denylist override.
const DefaultOverrideEnv = "ALLOW_DENYLIST_OVERRIDE"

// Tier is the classification tier of a command.
type Tier string

const (
	TierSafe       Tier = "safe"
	TierSensitive  Tier = "sensitive"
	TierDenylisted Tier = "denylisted"
)

// Label returns the upper-case tier name used in prompts and logs.
func (t Tier) Label() string {
	if t == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(string(t))
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierSafe, TierSensitive, TierDenylisted:
		return true
	}
	return false
}

// ParseTier parses a tier name. Accepts the short forms "deny" and "sens".
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "safe":
		return TierSafe, nil
	case "sensitive", "sens":
		return TierSensitive, nil
	case "denylisted", "denylist", "deny":
		return TierDenylisted, nil
	}
	return "", fmt.Errorf("invalid tier %q (must be denylist or sensitive)", s)
}

// Rule is a single (matcher, description) pair.
type Rule struct {
	// Tier is the tier a match puts the command in.
	Tier Tier
	// Pattern is the regex source.
	Pattern string
	// Compiled is the compiled regex, matched against the joined command line.
	Compiled *regexp.Regexp
	// Description explains what the rule guards against.
	Description string
	// Source indicates where this rule came from: "builtin" or "config".
	Source string
}

// Matches reports whether the rule matches a command line.
func (r *Rule) Matches(line string) bool {
	return r != nil && r.Compiled != nil && r.Compiled.MatchString(line)
}

type ruleSpec struct {
	pattern     string
	description string
}

// cmdWord builds a pattern that matches name in command position: at the start
// of the line, after whitespace, a shell operator, a quote, or a path separator
// (so /usr/bin/sudo and bash -c "sudo ..." both match).
func cmdWord(name string) string {
	return `(^|[\s;&|(` + "`" + `'"/=])` + regexp.QuoteMeta(name) + `($|[\s;&|)` + "`" + `'"])`
}

// rmTargets are the delete targets that wipe the working tree, home, or root.
const rmTargets = `(\.|\./|\.\.|\.\./|/|/\*|~|~/|\*|\./\*|\$HOME|\$\{HOME\}|\$PWD)`

var builtinDenylist = []ruleSpec{
	{cmdWord("sudo"), "privilege escalation via sudo"},
	{cmdWord("doas"), "privilege escalation via doas"},
	{cmdWord("pkexec"), "privilege escalation via pkexec"},
	{cmdWord("su"), "privilege escalation via su"},
	{`(^|[\s;&|(/])rm\s+((-[a-zA-Z]+|--recursive|--force|--no-preserve-root)\s+)+(--\s+)?` + rmTargets + `($|[\s;&|)])`, "recursive delete of the working tree, home, or filesystem root"},
	{`(^|[\s;&|(/])mkfs(\.\w+)?\s`, "filesystem creation on a device"},
	{`(^|[\s;&|(/])dd\s.*\bof=/dev/`, "raw write to a block device"},
	{`>\s*/dev/(sd|hd|nvme|disk|mmcblk)`, "redirect into a block device"},
	{`(^|[\s;&|(/])chmod\s+-R\s+\S+\s+/($|\s)`, "recursive permission change on /"},
	{`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`, "fork bomb"},
}

var builtinSensitive = []ruleSpec{
	{cmdWord("ssh"), "direct remote shell (use the sanctioned wrapper)"},
	{cmdWord("scp"), "direct remote copy"},
	{cmdWord("rsync"), "direct remote sync"},
	{cmdWord("sftp"), "direct remote file transfer"},
	{`(^|[\s;&|(/])git\s+(-C\s+\S+\s+|-c\s+\S+\s+|--\S+\s+)*push($|\s)`, "git push mutates a remote"},
	{`(^|[\s;&|(/])(curl|wget)\s.*\|\s*(sudo\s+)?(ba|z|da)?sh($|\s)`, "piping a download into a shell"},
	{`(^|[\s;&|(/])safe_ssh(\.sh)?($|\s)`, "remote access through the ssh wrapper"},
}

// bypassRule flags commands that try to set the override variable inline.
func bypassRule(overrideEnv string) ruleSpec {
	return ruleSpec{
		pattern:     `(^|[\s;&|(` + "`" + `'"])(export\s+)?` + regexp.QuoteMeta(overrideEnv) + `=`,
		description: "inline assignment of the denylist override variable",
	}
}

// RuleOptions configures NewRuleTable.
type RuleOptions struct {
	// OverrideEnv is the override variable name guarded by the bypass rule.
	OverrideEnv string
	// ExtraDenylist and ExtraSensitive are regex patterns appended after the builtins.
	ExtraDenylist  []string
	ExtraSensitive []string
}

// RuleTable holds the denylist and sensitive lists. It is immutable once built
// and safe to share between goroutines.
type RuleTable struct {
	denylist  []*Rule
	sensitive []*Rule
}

// NewRuleTable builds a table from the builtin rules plus configured extras.
// An invalid extra pattern is an error: a table that silently drops a rule
// would under-classify.
func NewRuleTable(opts RuleOptions) (*RuleTable, error) {
	overrideEnv := strings.TrimSpace(opts.OverrideEnv)
	if overrideEnv == "" {
		overrideEnv = DefaultOverrideEnv
	}

	t := &RuleTable{}
	t.denylist = mustCompileRules(TierDenylisted, builtinDenylist)
	t.sensitive = mustCompileRules(TierSensitive, append(append([]ruleSpec{}, builtinSensitive...), bypassRule(overrideEnv)))

	extraDeny, err := compileExtraRules(TierDenylisted, opts.ExtraDenylist)
	if err != nil {
		return nil, err
	}
	extraSens, err := compileExtraRules(TierSensitive, opts.ExtraSensitive)
	if err != nil {
		return nil, err
	}
	t.denylist = append(t.denylist, extraDeny...)
	t.sensitive = append(t.sensitive, extraSens...)
	return t, nil
}

func mustCompileRules(tier Tier, specs []ruleSpec) []*Rule {
	rules := make([]*Rule, 0, len(specs))
	for _, s := range specs {
		compiled, err := regexp.Compile(s.pattern)
		if err != nil {
			// Built-in patterns must always be valid.
			panic(fmt.Sprintf("invalid builtin pattern %q: %v", s.pattern, err))
		}
		rules = append(rules, &Rule{
			Tier:        tier,
			Pattern:     s.pattern,
			Compiled:    compiled,
			Description: s.description,
			Source:      "builtin",
		})
	}
	return rules
}

func compileExtraRules(tier Tier, patterns []string) ([]*Rule, error) {
	rules := make([]*Rule, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		compiled, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", tier, p, err)
		}
		rules = append(rules, &Rule{
			Tier:        tier,
			Pattern:     p,
			Compiled:    compiled,
			Description: "configured " + string(tier) + " rule",
			Source:      "config",
		})
	}
	return rules, nil
}

// Match returns the first rule matching line, checking the denylist before
// the sensitive list. It returns nil when nothing matches.
func (t *RuleTable) Match(line string) *Rule {
	if r := matchRules(line, t.denylist); r != nil {
		return r
	}
	return matchRules(line, t.sensitive)
}

func matchRules(line string, rules []*Rule) *Rule {
	for _, r := range rules {
		if r.Compiled.MatchString(line) {
			return r
		}
	}
	return nil
}

// Rules returns a copy of the rules for a tier.
func (t *RuleTable) Rules(tier Tier) []*Rule {
	var src []*Rule
	switch tier {
	case TierDenylisted:
		src = t.denylist
	case TierSensitive:
		src = t.sensitive
	default:
		return nil
	}
	out := make([]*Rule, len(src))
	copy(out, src)
	return out
}

// Len returns the total number of rules.
func (t *RuleTable) Len() int {
	return len(t.denylist) + len(t.sensitive)
}

var defaultTable = mustDefaultTable()

func mustDefaultTable() *RuleTable {
	t, err := NewRuleTable(RuleOptions{})
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultRuleTable returns the process-wide builtin table.
func DefaultRuleTable() *RuleTable {
	return defaultTable
}

// RuleExport is the exported rule set for external tools such as the linter.
type RuleExport struct {
	Version     string                `json:"version" yaml:"version"`
	GeneratedAt time.Time             `json:"generated_at" yaml:"generated_at"`
	SHA256      string                `json:"sha256" yaml:"sha256"`
	Tiers       map[string]TierExport `json:"tiers" yaml:"tiers"`
}

// TierExport represents one tier's rules for export.
type TierExport struct {
	Description string        `json:"description" yaml:"description"`
	Rules       []RuleDetails `json:"rules" yaml:"rules"`
}

// RuleDetails represents a single rule for export.
type RuleDetails struct {
	Pattern     string `json:"pattern" yaml:"pattern"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Source      string `json:"source" yaml:"source"`
}

// Export returns the table in a structured, deterministic form.
func (t *RuleTable) Export() *RuleExport {
	export := &RuleExport{
		Version:     RulesVersion,
		GeneratedAt: time.Now().UTC(),
		Tiers:       make(map[string]TierExport),
		SHA256:      t.ComputeHash(),
	}

	tiers := []struct {
		tier        Tier
		rules       []*Rule
		description string
	}{
		{TierDenylisted, t.denylist, "Blocked unless the override is set and a human approves"},
		{TierSensitive, t.sensitive, "Allowed after a human approves"},
	}
	for _, tier := range tiers {
		details := make([]RuleDetails, 0, len(tier.rules))
		for _, r := range tier.rules {
			details = append(details, RuleDetails{
				Pattern:     r.Pattern,
				Description: r.Description,
				Source:      r.Source,
			})
		}
		export.Tiers[string(tier.tier)] = TierExport{
			Description: tier.description,
			Rules:       details,
		}
	}
	return export
}

// ComputeHash returns a deterministic hash of all rules for version tracking.
func (t *RuleTable) ComputeHash() string {
	all := make([]string, 0, t.Len())
	for _, r := range t.denylist {
		all = append(all, fmt.Sprintf("%s:%s", TierDenylisted, r.Pattern))
	}
	for _, r := range t.sensitive {
		all = append(all, fmt.Sprintf("%s:%s", TierSensitive, r.Pattern))
	}
	sort.Strings(all)

	h := sha256.New()
	for _, p := range all {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
