package core

import (
	"fmt"
	"strings"
)

// Invocation is one request to run a command: the human-supplied reason, the
// argv, and whether a denylist override was requested. It is immutable; argv
// is copied on the way in and on the way out.
type Invocation struct {
	reason   string
	argv     []string
	override bool
}

// NewInvocation validates and builds an Invocation.
func NewInvocation(reason string, argv []string, override bool) (Invocation, error) {
	if strings.TrimSpace(reason) == "" {
		return Invocation{}, fmt.Errorf("%w: --reason is required", ErrInvalidInvocation)
	}
	if len(argv) == 0 || argv[0] == "" {
		return Invocation{}, fmt.Errorf("%w: no command given", ErrInvalidInvocation)
	}
	cp := make([]string, len(argv))
	copy(cp, argv)
	return Invocation{reason: reason, argv: cp, override: override}, nil
}

// Reason returns the justification.
func (i Invocation) Reason() string { return i.reason }

// Argv returns a copy of the command vector.
func (i Invocation) Argv() []string {
	cp := make([]string, len(i.argv))
	copy(cp, i.argv)
	return cp
}

// OverrideRequested reports whether the denylist override was requested.
func (i Invocation) OverrideRequested() bool { return i.override }

// CommandLine returns the argv joined with spaces.
func (i Invocation) CommandLine() string { return JoinArgv(i.argv) }

// QuotedCommand returns the argv rejoined with shell quoting.
func (i Invocation) QuotedCommand() string { return QuoteArgv(i.argv) }

// OverrideFromEnv interprets an override variable's value. Only explicit
// truthy values count; anything else (including unset) is no override.
func OverrideFromEnv(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
