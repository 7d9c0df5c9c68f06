package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Dicklesworthstone/safeexec/internal/audit"
	"github.com/Dicklesworthstone/safeexec/internal/utils"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Gateway errors. ErrSpawnFailure and ErrInvalidInvocation complete the set.
var (
	ErrBlocked      = errors.New("command is denylisted")
	ErrDenied       = errors.New("command was not approved")
	ErrAuditFailure = errors.New("audit log write failed")
)

// AuditSink records decisions. Append must be durable when it returns nil.
type AuditSink interface {
	Append(e audit.Entry) error
	RecordExit(id string, exitCode int)
}

// Gateway wires the classifier, approval workflow, audit log and executor.
type Gateway struct {
	Rules    *RuleTable
	Audit    AuditSink
	Runner   Runner
	Renderer PromptRenderer

	// In is the approver's input; Out receives the prompt and outcome lines.
	In  io.Reader
	Out io.Writer

	Logger *log.Logger
	// Actor is recorded with every entry.
	Actor string
	// OverrideEnv names the override variable in the BLOCKED hint.
	OverrideEnv string
	// AlwaysPrompt puts safe commands through the approval prompt too.
	AlwaysPrompt bool

	Now   func() time.Time
	NewID func() string
}

// Result describes how an invocation ended.
type Result struct {
	Classification Classification
	// Decision is zero when no approval was involved.
	Decision Decision
	// Outcome is the audited outcome, empty for safe commands run directly.
	Outcome Outcome
	// OverrideUsed is true when a denylisted command reached the prompt.
	OverrideUsed bool
	EntryID      string
	Executed     bool
	// ExitCode is the child's exit code when Executed, otherwise 1.
	ExitCode int
}

// Run processes one invocation: classify, resolve approval, audit, execute.
// The audit entry for a grant is written before the child starts; if it cannot
// be written the command does not run.
func (g *Gateway) Run(ctx context.Context, inv Invocation) (Result, error) {
	res := Result{ExitCode: 1}
	if err := g.check(); err != nil {
		return res, err
	}
	logger := g.logger()

	c, err := g.Rules.Classify(inv.Argv())
	if err != nil {
		return res, err
	}
	res.Classification = c
	logger.Debug("classified command", "tier", c.Tier, "rule", c.RuleDescription(), "command", c.CommandLine)

	wf := NewWorkflow(inv, c, g.Renderer)
	if g.AlwaysPrompt {
		wf.RequireApproval()
	}

	if wf.State() == StateNotRequired {
		logger.Debug("safe command, running without approval")
		return g.execute(ctx, inv, res)
	}

	dec, werr := wf.Resolve(ctx, g.In, g.out())
	if werr != nil {
		logger.Warn("approval prompt failed, denying", "error", werr)
	}
	res.Decision = dec
	res.Outcome = dec.Outcome
	res.OverrideUsed = wf.OverrideActive()

	entry := g.entry(inv, c, dec.Outcome, res.OverrideUsed)
	res.EntryID = entry.ID

	switch dec.Outcome {
	case OutcomeBlocked:
		g.printf("BLOCKED: %s matches denylist rule %q\n", inv.QuotedCommand(), c.RuleDescription())
		if g.OverrideEnv != "" {
			g.printf("Set %s=1 to request a reviewed override.\n", g.OverrideEnv)
		}
		g.appendBestEffort(entry)
		return res, ErrBlocked

	case OutcomeApproved:
		if err := g.Audit.Append(entry); err != nil {
			g.printf("ABORTED: approval could not be recorded; command not executed.\n")
			return res, fmt.Errorf("%w: %w", ErrAuditFailure, err)
		}
		g.printf("Approved.\n")
		return g.execute(ctx, inv, res)

	default:
		g.printf("Denied.\n")
		g.appendBestEffort(entry)
		if werr != nil {
			return res, fmt.Errorf("%w: %w", ErrDenied, werr)
		}
		return res, ErrDenied
	}
}

func (g *Gateway) execute(ctx context.Context, inv Invocation, res Result) (Result, error) {
	code, err := g.Runner.Run(ctx, inv.Argv())
	if err != nil {
		res.ExitCode = 1
		var spawnErr *SpawnError
		if errors.As(err, &spawnErr) && res.EntryID != "" {
			failed := g.entry(inv, res.Classification, OutcomeExecFailed, res.OverrideUsed)
			failed.ID = res.EntryID
			g.appendBestEffort(failed)
		}
		return res, err
	}

	res.Executed = true
	res.ExitCode = code
	if res.EntryID != "" {
		g.Audit.RecordExit(res.EntryID, code)
	}
	g.logger().Debug("command finished", "exit_code", code)
	return res, nil
}

func (g *Gateway) entry(inv Invocation, c Classification, outcome Outcome, override bool) audit.Entry {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	newID := uuid.NewString
	if g.NewID != nil {
		newID = g.NewID
	}
	return audit.Entry{
		ID:           newID(),
		Timestamp:    now().UTC(),
		Outcome:      string(outcome),
		Reason:       inv.Reason(),
		Command:      inv.QuotedCommand(),
		OverrideUsed: override,
		Tier:         string(c.Tier),
		Rule:         c.RuleDescription(),
		Actor:        g.Actor,
	}
}

func (g *Gateway) appendBestEffort(e audit.Entry) {
	if err := g.Audit.Append(e); err != nil {
		g.logger().Warn("could not record decision", "outcome", e.Outcome, "error", err)
	}
}

func (g *Gateway) check() error {
	switch {
	case g.Rules == nil:
		return errors.New("gateway has no rule table")
	case g.Audit == nil:
		return errors.New("gateway has no audit sink")
	case g.Runner == nil:
		return errors.New("gateway has no runner")
	}
	return nil
}

func (g *Gateway) logger() *log.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return utils.WithPrefix("gateway")
}

func (g *Gateway) out() io.Writer {
	if g.Out != nil {
		return g.Out
	}
	return os.Stdout
}

func (g *Gateway) printf(format string, args ...any) {
	fmt.Fprintf(g.out(), format, args...)
}

// ExitCodeFor maps a Run result to the process exit code: the child's code
// after a clean execution, 1 for every gateway-level failure.
func ExitCodeFor(res Result, err error) int {
	if err != nil {
		return 1
	}
	if !res.Executed {
		return 1
	}
	return res.ExitCode
}
