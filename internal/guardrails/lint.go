// Package guardrails implements the static repository lint: banned
// filename patterns, absolute paths, changelog presence on pull requests and
// direct sudo/ssh usage in scripts.
package guardrails

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/Dicklesworthstone/safeexec/internal/config"
)

// Check names.
const (
	CheckContainment = "CONTAINMENT"
	CheckDuplicate   = "DUPLICATE"
	CheckAbsPath     = "ABS_PATH"
	CheckChangelog   = "CHANGELOG"
	CheckSafety      = "SAFETY"
)

// Violation is one lint finding. Line is zero for file-level findings.
type Violation struct {
	Check   string `json:"check"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Check, v.Message)
}

// Options configures Lint.
type Options struct {
	AllowedTopLevel  []string
	AbsPathAllowlist []string
	SudoAllowlist    []string
	SSHAllowlist     []string
	ChangelogPath    string
	// CheckChangelog enables the changelog check against ChangedFiles.
	CheckChangelog bool
	ChangedFiles   []string
}

// OptionsFromConfig builds Options from the guardrails config section.
func OptionsFromConfig(cfg config.GuardrailsConfig) Options {
	return Options{
		AllowedTopLevel:  cfg.AllowedTopLevel,
		AbsPathAllowlist: cfg.AbsPathAllowlist,
		SudoAllowlist:    cfg.SudoAllowlist,
		SSHAllowlist:     cfg.SSHAllowlist,
		ChangelogPath:    cfg.ChangelogPath,
	}
}

// ReadFileFunc returns the content of a repository-relative path.
type ReadFileFunc func(name string) ([]byte, error)

var duplicatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`_v\d+\.`),
	regexp.MustCompile(`(?i)[_-]copy[_.\-]`),
	regexp.MustCompile(`(?i)[_-]final[_.\-]`),
	regexp.MustCompile(`(?i)[_-]backup[_.\-]`),
	regexp.MustCompile(`(?i)^new_`),
	regexp.MustCompile(`(?i)^copy[_ ]of[_ ]`),
}

var scannableExtensions = map[string]bool{
	".mjs": true, ".js": true, ".ts": true, ".json": true,
	".yml": true, ".yaml": true, ".md": true, ".sh": true,
}

var scriptExtensions = map[string]bool{
	".sh": true, ".mjs": true, ".js": true, ".ts": true,
}

var (
	absPathRE       = regexp.MustCompile(`/(?:Users|home|etc|var|tmp|opt|usr)/\S+`)
	absSkipRE       = regexp.MustCompile(`^\s*(//|#|\*|/)`)
	patternDefRE    = regexp.MustCompile(`RegExp|RE\s*=|regexp\.`)
	commentRE       = regexp.MustCompile(`^\s*(#|//)`)
	remoteCommandRE = regexp.MustCompile(`\b(ssh|scp|rsync)\s+[^|]`)
	sudoRE          = regexp.MustCompile(`\bsudo\b`)
)

// Lint runs every check over files. It performs no I/O beyond readFile, so
// repeated runs over the same inputs return identical results. Unreadable
// files are skipped.
func Lint(files []string, readFile ReadFileFunc, opts Options) []Violation {
	var violations []Violation
	violations = append(violations, checkContainment(files, opts)...)
	violations = append(violations, checkDuplicates(files)...)

	allowAbs := toSet(opts.AbsPathAllowlist)
	allowSudo := toSet(opts.SudoAllowlist)
	allowSSH := toSet(opts.SSHAllowlist)
	for _, f := range files {
		ext := path.Ext(f)
		scanAbs := scannableExtensions[ext] && !allowAbs[f]
		scanScript := scriptExtensions[ext]
		if !scanAbs && !scanScript {
			continue
		}
		data, err := readFile(f)
		if err != nil {
			continue
		}
		lines := strings.Split(string(data), "\n")
		if scanAbs {
			violations = append(violations, checkAbsPaths(f, lines)...)
		}
		if scanScript {
			violations = append(violations, checkSafety(f, lines, allowSSH[f], allowSudo[f])...)
		}
	}

	if opts.CheckChangelog {
		violations = append(violations, checkChangelog(opts)...)
	}
	return violations
}

func checkContainment(files []string, opts Options) []Violation {
	if len(opts.AllowedTopLevel) == 0 {
		return nil
	}
	allowed := toSet(opts.AllowedTopLevel)
	var out []Violation
	for _, f := range files {
		top := strings.SplitN(f, "/", 2)[0]
		if !allowed[top] {
			out = append(out, Violation{
				Check:   CheckContainment,
				File:    f,
				Message: fmt.Sprintf("%q is outside allowed top-level entries.", f),
			})
		}
	}
	return out
}

func checkDuplicates(files []string) []Violation {
	var out []Violation
	for _, f := range files {
		name := path.Base(f)
		for _, re := range duplicatePatterns {
			if re.MatchString(name) {
				out = append(out, Violation{
					Check:   CheckDuplicate,
					File:    f,
					Message: fmt.Sprintf("%q matches banned pattern %s.", f, re.String()),
				})
			}
		}
	}
	return out
}

func checkAbsPaths(f string, lines []string) []Violation {
	var out []Violation
	for i, line := range lines {
		if i == 0 && strings.HasPrefix(line, "#!") {
			continue
		}
		if absSkipRE.MatchString(line) || patternDefRE.MatchString(line) {
			continue
		}
		if containsAbsPath(line) {
			out = append(out, Violation{
				Check:   CheckAbsPath,
				File:    f,
				Line:    i + 1,
				Message: fmt.Sprintf("\"%s:%d\" contains what looks like an absolute path.", f, i+1),
			})
		}
	}
	return out
}

// containsAbsPath reports a match not directly preceded by http: or https:.
func containsAbsPath(line string) bool {
	for _, loc := range absPathRE.FindAllStringIndex(line, -1) {
		prefix := line[:loc[0]]
		if strings.HasSuffix(prefix, "http:") || strings.HasSuffix(prefix, "https:") {
			continue
		}
		return true
	}
	return false
}

func checkSafety(f string, lines []string, sshAllowed, sudoAllowed bool) []Violation {
	var out []Violation
	for i, line := range lines {
		if commentRE.MatchString(line) {
			continue
		}
		n := i + 1
		if !sshAllowed && remoteCommandRE.MatchString(line) && !strings.Contains(line, "safe_ssh") {
			out = append(out, Violation{
				Check:   CheckSafety,
				File:    f,
				Line:    n,
				Message: fmt.Sprintf("\"%s:%d\" contains direct ssh/scp/rsync. Use the ssh wrapper instead.", f, n),
			})
		}
		if !sudoAllowed && sudoRE.MatchString(line) {
			out = append(out, Violation{
				Check:   CheckSafety,
				File:    f,
				Line:    n,
				Message: fmt.Sprintf("\"%s:%d\" contains 'sudo'. Sudo is forbidden in repo scripts.", f, n),
			})
		}
	}
	return out
}

func checkChangelog(opts Options) []Violation {
	target := opts.ChangelogPath
	if target == "" {
		return nil
	}
	for _, f := range opts.ChangedFiles {
		if f == target {
			return nil
		}
	}
	return []Violation{{
		Check:   CheckChangelog,
		File:    target,
		Message: fmt.Sprintf("%s was not updated in this PR.", target),
	}}
}

// Summary counts violations per check, sorted by check name.
func Summary(violations []Violation) []CheckCount {
	counts := map[string]int{}
	for _, v := range violations {
		counts[v.Check]++
	}
	out := make([]CheckCount, 0, len(counts))
	for check, n := range counts {
		out = append(out, CheckCount{Check: check, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Check < out[j].Check })
	return out
}

// CheckCount is one row of Summary.
type CheckCount struct {
	Check string `json:"check"`
	Count int    `json:"count"`
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
