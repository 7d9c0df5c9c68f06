package cli

import (
	"strings"
	"testing"

	"github.com/Dicklesworthstone/safeexec/internal/testutil"
	"github.com/spf13/cobra"
)

func TestCompleteOutcomes(t *testing.T) {
	all, directive := completeOutcomes(nil, nil, "")
	testutil.RequireLen(t, all, 4, "all outcomes")
	testutil.RequireEqual(t, cobra.ShellCompDirectiveNoFileComp, directive, "directive")

	got, _ := completeOutcomes(nil, nil, "de")
	testutil.RequireLen(t, got, 1, "prefix match")
	if !strings.HasPrefix(got[0], "DENIED\t") {
		t.Fatalf("expected DENIED with a description, got %q", got[0])
	}
}

func TestCompleteTiers(t *testing.T) {
	all, _ := completeTiers(nil, nil, "")
	testutil.RequireLen(t, all, 2, "both tiers")

	got, _ := completeTiers(nil, nil, "SEN")
	testutil.RequireLen(t, got, 1, "case-insensitive prefix")
	testutil.RequireEqual(t, "sensitive", got[0], "tier")
}

func TestCompletionCommand(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			newTestProject(t)
			stdout, _, err := executeCommand(rootCmd, "completion", shell)
			testutil.RequireNoError(t, err, "completion")
			testutil.RequireContains(t, stdout, "safeexec", "script mentions the binary")
		})
	}

	newTestProject(t)
	if _, _, err := executeCommand(rootCmd, "completion", "tcsh"); err == nil {
		t.Fatal("expected an error for an unsupported shell")
	}
}
