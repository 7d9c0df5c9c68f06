package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Dicklesworthstone/safeexec/internal/core"
	"github.com/Dicklesworthstone/safeexec/internal/testutil"
	"github.com/Dicklesworthstone/safeexec/internal/tui/styles"
)

func TestStyledRenderer_RendersPanel(t *testing.T) {
	r := styledRenderer{styles: styles.New(), width: 80}

	var buf bytes.Buffer
	err := r.RenderPrompt(&buf, core.PromptView{
		Reason:  "rotate keys",
		Command: "git push origin main",
		Tier:    core.TierSensitive,
		Rule:    "git push mutates a remote",
	})
	testutil.RequireNoError(t, err, "render")
	out := buf.String()

	testutil.RequireContains(t, out, "APPROVAL REQUIRED", "title")
	testutil.RequireContains(t, out, "rotate keys", "reason")
	testutil.RequireContains(t, out, "git push origin main", "command")
	testutil.RequireContains(t, out, "git push mutates a remote", "rule")
	testutil.RequireNotContains(t, out, "DENYLIST OVERRIDE", "no override notice")
	if !strings.HasSuffix(out, core.PromptQuestion) {
		t.Fatalf("expected output to end with the question, got %q", out)
	}
}

func TestStyledRenderer_OverrideAndSanitize(t *testing.T) {
	r := styledRenderer{styles: styles.New(), width: 80}

	var buf bytes.Buffer
	err := r.RenderPrompt(&buf, core.PromptView{
		Reason:   "cleanup\x1b[2K",
		Command:  "sudo ls",
		Tier:     core.TierDenylisted,
		Override: true,
	})
	testutil.RequireNoError(t, err, "render")
	out := buf.String()

	testutil.RequireContains(t, out, "DENYLIST OVERRIDE", "override notice")
	testutil.RequireNotContains(t, out, "\x1b[2K", "escape stripped from reason")
}
