package audit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Dicklesworthstone/safeexec/internal/utils"
	"github.com/charmbracelet/log"
)

// Mirror receives a copy of every appended entry, e.g. a queryable index.
// Mirror failures never fail an append.
type Mirror interface {
	Record(e Entry) error
	RecordExit(id string, exitCode int) error
}

// Logger appends entries to a log file. Each append opens the file with
// O_APPEND, takes an exclusive advisory lock where the platform has one, and
// writes the whole line in a single write, so concurrent gateway processes
// never interleave partial lines. It never reads, truncates, or rewrites.
type Logger struct {
	path   string
	mirror Mirror
	logger *log.Logger
}

// Option configures a Logger.
type Option func(*Logger)

// WithMirror sets the best-effort mirror.
func WithMirror(m Mirror) Option {
	return func(l *Logger) {
		l.mirror = m
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(lg *log.Logger) Option {
	return func(l *Logger) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// NewLogger creates a logger for path. The file and its directory are
// created on first append.
func NewLogger(path string, opts ...Option) *Logger {
	l := &Logger{
		path:   path,
		logger: utils.WithPrefix("audit"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the log file path.
func (l *Logger) Path() string {
	return l.path
}

// Append writes one entry. A nil error means the full line reached the file.
func (l *Logger) Append(e Entry) error {
	line, err := e.Encode()
	if err != nil {
		return err
	}
	if err := l.write(line); err != nil {
		return fmt.Errorf("appending to audit log %s: %w", l.path, err)
	}

	if l.mirror != nil {
		if err := l.mirror.Record(e); err != nil {
			l.logger.Warn("history index update failed", "id", e.ID, "error", err)
		}
	}
	return nil
}

// RecordExit forwards a child's exit code to the mirror. The log itself is
// not touched.
func (l *Logger) RecordExit(id string, exitCode int) {
	if l.mirror == nil || id == "" {
		return
	}
	if err := l.mirror.RecordExit(id, exitCode); err != nil {
		l.logger.Warn("history index exit code update failed", "id", id, "error", err)
	}
}

func (l *Logger) write(line []byte) (err error) {
	if l.path == "" {
		return fmt.Errorf("audit log path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	unlock, err := lockFile(f)
	if err != nil {
		return fmt.Errorf("locking: %w", err)
	}
	defer unlock()

	n, err := f.Write(line)
	if err != nil {
		return err
	}
	if n != len(line) {
		return io.ErrShortWrite
	}
	return f.Sync()
}
