package git

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

func ensureGitRepo(repoPath string) error {
	if IsRepo(repoPath) {
		return nil
	}
	if err := os.MkdirAll(repoPath, 0750); err != nil {
		return err
	}
	cmd := exec.Command("git", "init", "-q", repoPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git init: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

func ensureGitIdentity(repoPath string) error {
	if strings.TrimSpace(repoPath) == "" {
		return errors.New("repoPath is required")
	}
	if _, err := runGit(repoPath, "config", "--get", "user.name"); err != nil {
		if _, err := runGit(repoPath, "config", "user.name", "safeexec"); err != nil {
			return err
		}
	}
	if _, err := runGit(repoPath, "config", "--get", "user.email"); err != nil {
		if _, err := runGit(repoPath, "config", "user.email", "safeexec@localhost"); err != nil {
			return err
		}
	}
	return nil
}

func gitAdd(repoPath string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	_, err := runGit(repoPath, append([]string{"add", "--"}, paths...)...)
	return err
}

func stagedChangesExist(repoPath string) (bool, error) {
	out, err := runGit(repoPath, "diff", "--cached", "--name-only")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

func gitCommitIfNeeded(repoPath, message string) (bool, error) {
	if strings.TrimSpace(message) == "" {
		return false, errors.New("commit message is required")
	}
	has, err := stagedChangesExist(repoPath)
	if err != nil {
		return false, err
	}
	if !has {
		return false, nil
	}
	if _, err := runGit(repoPath, "commit", "-q", "-m", message); err != nil {
		return false, err
	}
	return true, nil
}
