package guardrails

import (
	"os"
	"path/filepath"

	"github.com/Dicklesworthstone/safeexec/internal/config"
	"github.com/Dicklesworthstone/safeexec/internal/git"
	"github.com/Dicklesworthstone/safeexec/internal/utils"
)

// PullRequestEnv and PullRequestEvent gate the changelog check.
const (
	PullRequestEnv   = "GITHUB_EVENT_NAME"
	PullRequestEvent = "pull_request"
)

// Report is the result of LintRepo.
type Report struct {
	Root       string       `json:"root"`
	Files      int          `json:"files"`
	Violations []Violation  `json:"violations"`
	Summary    []CheckCount `json:"summary,omitempty"`
}

// Passed reports whether no violations were found.
func (r Report) Passed() bool {
	return len(r.Violations) == 0
}

// LintRepo lints the tracked files of the repository containing dir.
// When files is non-empty it replaces git ls-files.
func LintRepo(dir string, cfg config.GuardrailsConfig, files []string) (Report, error) {
	logger := utils.WithPrefix("guardrails")

	root := dir
	if r, err := git.GetRoot(dir); err == nil {
		root = r
	} else if len(files) == 0 {
		return Report{}, err
	}

	if len(files) == 0 {
		tracked, err := git.TrackedFiles(root)
		if err != nil {
			return Report{}, err
		}
		files = tracked
	}

	opts := OptionsFromConfig(cfg)
	if os.Getenv(PullRequestEnv) == PullRequestEvent {
		changed, err := git.ChangedFiles(root, cfg.BaseRef)
		if err != nil {
			// No base ref outside a PR checkout.
			logger.Debug("skipping changelog check", "base", cfg.BaseRef, "error", err)
		} else {
			opts.CheckChangelog = true
			opts.ChangedFiles = changed
		}
	}

	readFile := func(name string) ([]byte, error) {
		return os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
	}
	violations := Lint(files, readFile, opts)
	if violations == nil {
		violations = []Violation{}
	}
	logger.Debug("lint finished", "files", len(files), "violations", len(violations))

	return Report{
		Root:       root,
		Files:      len(files),
		Violations: violations,
		Summary:    Summary(violations),
	}, nil
}
