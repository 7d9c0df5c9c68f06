package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Workflow errors.
var (
	ErrWorkflowConsumed    = errors.New("approval workflow already resolved")
	ErrApprovalNotRequired = errors.New("approval not required for a safe command")
)

// maxAnswerBytes bounds how much of an answer line is kept.
const maxAnswerBytes = 4096

// State is an approval workflow state.
type State string

const (
	StateNotRequired State = "NOT_REQUIRED"
	StatePrompting   State = "PROMPTING"
	StateApproved    State = "APPROVED"
	StateDenied      State = "DENIED"
	StateBlocked     State = "BLOCKED"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case StateApproved, StateDenied, StateBlocked:
		return true
	}
	return false
}

// Outcome is the audited result of a gated invocation.
type Outcome string

const (
	OutcomeApproved Outcome = "APPROVED"
	OutcomeDenied   Outcome = "DENIED"
	OutcomeBlocked  Outcome = "BLOCKED"
	// OutcomeExecFailed records that an authorized command could not be started.
	OutcomeExecFailed Outcome = "EXEC_FAILED"
)

// Decision is the terminal result of a workflow.
type Decision struct {
	Outcome Outcome
	// Responded is true when a human answered, false when the workflow
	// denied on its own (end of input, read error) or blocked without asking.
	Responded bool
}

// InitialState computes where a workflow starts.
func InitialState(tier Tier, override bool) State {
	switch tier {
	case TierSafe:
		return StateNotRequired
	case TierSensitive:
		return StatePrompting
	case TierDenylisted:
		if override {
			return StatePrompting
		}
		return StateBlocked
	}
	// Unknown tiers are treated like the denylist without override.
	return StateBlocked
}

// Decide maps one line of input to an outcome. Only "y" (any case, surrounding
// whitespace ignored) approves; everything else denies.
func Decide(answer string) Outcome {
	if strings.EqualFold(strings.TrimSpace(answer), "y") {
		return OutcomeApproved
	}
	return OutcomeDenied
}

// Workflow is the approval state machine for a single invocation. It resolves
// at most once.
type Workflow struct {
	mu             sync.Mutex
	inv            Invocation
	class          Classification
	state          State
	overrideActive bool
	consumed       bool
	renderer       PromptRenderer
}

// NewWorkflow creates the workflow for an invocation and its classification.
// A nil renderer uses PlainRenderer.
func NewWorkflow(inv Invocation, c Classification, renderer PromptRenderer) *Workflow {
	if renderer == nil {
		renderer = PlainRenderer{}
	}
	state := InitialState(c.Tier, inv.OverrideRequested())
	return &Workflow{
		inv:            inv,
		class:          c,
		state:          state,
		overrideActive: c.Tier == TierDenylisted && state == StatePrompting,
		renderer:       renderer,
	}
}

// State returns the current state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// OverrideActive reports whether this workflow is prompting for a denylisted command.
func (w *Workflow) OverrideActive() bool {
	return w.overrideActive
}

// RequireApproval moves a NOT_REQUIRED workflow to PROMPTING so that even a
// safe command is put to the approver. Other states are unchanged.
func (w *Workflow) RequireApproval() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateNotRequired && !w.consumed {
		w.state = StatePrompting
	}
}

// View returns what the approver is shown.
func (w *Workflow) View() PromptView {
	return PromptView{
		Reason:   w.inv.Reason(),
		Command:  w.inv.QuotedCommand(),
		Tier:     w.class.Tier,
		Rule:     w.class.RuleDescription(),
		Override: w.overrideActive,
	}
}

// Resolve drives the workflow to a terminal state. For PROMPTING it renders
// the prompt to out and reads exactly one line from in. End of input before a
// complete line, or any read error, denies. Cancelling ctx while waiting
// denies and returns the context error. BLOCKED resolves without prompting.
// A second call returns ErrWorkflowConsumed.
func (w *Workflow) Resolve(ctx context.Context, in io.Reader, out io.Writer) (Decision, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.consumed {
		return Decision{}, ErrWorkflowConsumed
	}

	switch w.state {
	case StateNotRequired:
		return Decision{}, ErrApprovalNotRequired
	case StateBlocked:
		w.consumed = true
		return Decision{Outcome: OutcomeBlocked}, nil
	case StatePrompting:
	default:
		return Decision{}, fmt.Errorf("workflow in unexpected state %s", w.state)
	}

	w.consumed = true
	if err := w.renderer.RenderPrompt(out, w.View()); err != nil {
		w.state = StateDenied
		return Decision{Outcome: OutcomeDenied}, fmt.Errorf("rendering prompt: %w", err)
	}

	answer, err := readAnswer(ctx, in)
	if err != nil {
		w.state = StateDenied
		switch {
		case errors.Is(err, io.EOF):
			return Decision{Outcome: OutcomeDenied}, nil
		case ctx.Err() != nil:
			return Decision{Outcome: OutcomeDenied}, fmt.Errorf("waiting for answer: %w", err)
		}
		return Decision{Outcome: OutcomeDenied}, fmt.Errorf("reading answer: %w", err)
	}

	outcome := Decide(answer)
	if outcome == OutcomeApproved {
		w.state = StateApproved
	} else {
		w.state = StateDenied
	}
	return Decision{Outcome: outcome, Responded: true}, nil
}

// readAnswer waits for one line from in or for ctx to end. On cancellation
// the pending read is abandoned; the process is about to exit.
func readAnswer(ctx context.Context, in io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := readLine(in)
		done <- result{line, err}
	}()
	select {
	case r := <-done:
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// readLine reads up to and including the next newline, one byte at a time so
// nothing past the answer is consumed: the child inherits the same stdin.
func readLine(r io.Reader) (string, error) {
	if r == nil {
		return "", io.EOF
	}
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n == 1 {
			if buf[0] == '\n' {
				return sb.String(), nil
			}
			if sb.Len() < maxAnswerBytes {
				sb.WriteByte(buf[0])
			}
		}
		if err != nil {
			return sb.String(), err
		}
	}
}
