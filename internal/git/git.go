// Package git wraps the git CLI for repository discovery, tracked-file
// listing and the lint pre-commit hook.
package git

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// HookMarker identifies a hook written by InstallHook.
const HookMarker = "# installed by safeexec"

const preCommitHook = `#!/bin/sh
` + HookMarker + `
exec safeexec lint
`

func expandUserPath(path string) (string, error) {
	if path == "" {
		return "", errors.New("path is required")
	}
	if path == "~" || path == "~/" || path == `~\` {
		return os.UserHomeDir()
	}
	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		rest := strings.ReplaceAll(path[2:], `\`, "/")
		return filepath.Join(home, filepath.FromSlash(rest)), nil
	}
	return path, nil
}

func runGit(repoPath string, args ...string) (string, error) {
	if strings.TrimSpace(repoPath) == "" {
		return "", errors.New("repoPath is required")
	}
	dir, err := expandUserPath(repoPath)
	if err != nil {
		return "", err
	}

	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg == "" {
			return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
		}
		return "", fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), msg, err)
	}
	return stdout.String(), nil
}

// IsRepo reports whether path is inside a git work tree.
func IsRepo(path string) bool {
	out, err := runGit(path, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// GetRoot returns the top-level directory of the work tree containing path.
func GetRoot(path string) (string, error) {
	out, err := runGit(path, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	root := strings.TrimSpace(out)
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	return root, nil
}

// GetBranch returns the current branch name.
func GetBranch(path string) (string, error) {
	out, err := runGit(path, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// TrackedFiles returns the repository-relative paths from git ls-files.
func TrackedFiles(repoPath string) ([]string, error) {
	out, err := runGit(repoPath, "ls-files")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// ChangedFiles returns the paths changed between base and HEAD
// (three-dot diff, i.e. since the merge base).
func ChangedFiles(repoPath, base string) ([]string, error) {
	if strings.TrimSpace(base) == "" {
		return nil, errors.New("base ref is required")
	}
	out, err := runGit(repoPath, "diff", "--name-only", base+"...HEAD")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// InstallHook writes a pre-commit hook that runs safeexec lint. An existing
// hook not written by safeexec is left alone.
func InstallHook(repoPath string) error {
	root, err := GetRoot(repoPath)
	if err != nil {
		return fmt.Errorf("not a git repository: %w", err)
	}
	hooksDir := filepath.Join(root, ".git", "hooks")
	if err := os.MkdirAll(hooksDir, 0750); err != nil {
		return fmt.Errorf("creating hooks dir: %w", err)
	}
	hookPath := filepath.Join(hooksDir, "pre-commit")
	if existing, err := os.ReadFile(hookPath); err == nil {
		if !strings.Contains(string(existing), HookMarker) {
			return fmt.Errorf("pre-commit hook already exists at %s", hookPath)
		}
	}
	// #nosec G306 -- hooks must be executable
	if err := os.WriteFile(hookPath, []byte(preCommitHook), 0755); err != nil {
		return fmt.Errorf("writing hook: %w", err)
	}
	return nil
}

func splitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
