package core

import (
	"fmt"
	"io"

	"github.com/Dicklesworthstone/safeexec/internal/utils"
)

// PromptView is everything the approver sees for one decision.
type PromptView struct {
	Reason   string
	Command  string
	Tier     Tier
	Rule     string
	Override bool
}

// PromptRenderer draws the approval prompt, ending with the question.
type PromptRenderer interface {
	RenderPrompt(w io.Writer, view PromptView) error
}

// PromptQuestion ends every prompt.
const PromptQuestion = "Approve? [y/N] "

// OverrideNotice is shown whenever a denylisted command reaches the prompt.
const OverrideNotice = "DENYLIST OVERRIDE IN EFFECT: this command is denylisted and is only reachable because the override is set"

// PlainRenderer renders the prompt without styling.
type PlainRenderer struct{}

// RenderPrompt implements PromptRenderer.
func (PlainRenderer) RenderPrompt(w io.Writer, v PromptView) error {
	v = SanitizeView(v)
	if _, err := fmt.Fprintln(w, "=== APPROVAL REQUIRED ==="); err != nil {
		return err
	}
	if v.Override {
		if _, err := fmt.Fprintf(w, "!!! %s !!!\n", OverrideNotice); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "Reason:  %s\n", v.Reason)
	fmt.Fprintf(w, "Command: %s\n", v.Command)
	fmt.Fprintf(w, "Tier:    %s\n", v.Tier.Label())
	if v.Rule != "" {
		fmt.Fprintf(w, "Rule:    %s\n", v.Rule)
	}
	_, err := fmt.Fprint(w, PromptQuestion)
	return err
}

// SanitizeView strips terminal escapes and control characters from the
// agent-supplied fields so nothing can be hidden from the approver.
func SanitizeView(v PromptView) PromptView {
	v.Reason = utils.SanitizeLine(v.Reason)
	v.Command = utils.SanitizeLine(v.Command)
	return v
}
