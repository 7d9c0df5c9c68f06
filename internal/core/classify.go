package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidInvocation is returned for an empty argv or a missing reason.
var ErrInvalidInvocation = errors.New("invalid invocation")

// Classification is the tier of a command plus the rule that put it there.
type Classification struct {
	// Tier is SAFE, SENSITIVE, or DENYLISTED.
	Tier Tier
	// Rule is the matching rule, nil for SAFE.
	Rule *Rule
	// CommandLine is the argv joined with single spaces, the string rules match against.
	CommandLine string
}

// RuleDescription returns the matching rule's description, or "" for SAFE.
func (c Classification) RuleDescription() string {
	if c.Rule == nil {
		return ""
	}
	return c.Rule.Description
}

// Classify determines the tier of argv. The denylist takes precedence over
// the sensitive list. It has no side effects.
func (t *RuleTable) Classify(argv []string) (Classification, error) {
	if len(argv) == 0 || argv[0] == "" {
		return Classification{}, fmt.Errorf("%w: empty command", ErrInvalidInvocation)
	}

	line := JoinArgv(argv)
	c := Classification{Tier: TierSafe, CommandLine: line}
	if rule := t.Match(line); rule != nil {
		c.Tier = rule.Tier
		c.Rule = rule
	}
	return c, nil
}

// Classify is a convenience function using the default table.
func Classify(argv []string) (Classification, error) {
	return defaultTable.Classify(argv)
}

// JoinArgv reconstructs the command line rules are matched against.
func JoinArgv(argv []string) string {
	return strings.Join(argv, " ")
}

var shellSafe = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)

// QuoteArgv rejoins argv with POSIX shell quoting so the logged command can be
// pasted back into a shell and yields the same argv.
func QuoteArgv(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = quoteArg(arg)
	}
	return strings.Join(quoted, " ")
}

func quoteArg(arg string) string {
	if arg == "" {
		return "''"
	}
	if shellSafe.MatchString(arg) {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
