package audit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Dicklesworthstone/safeexec/internal/utils"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Follower tails an audit log and emits entries as they are appended.
//
// It watches the parent directory so the log may be created or restored
// after the follower starts. A file that shrinks is read again from the top.
type Follower struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *log.Logger

	debounceWindow time.Duration
	entries        chan Entry
	errors         chan error

	mu      sync.Mutex
	offset  int64
	partial []byte
	dirty   bool
	timer   *time.Timer

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewFollower creates a follower for path. With fromEnd set, entries already
// in the file are skipped.
func NewFollower(path string, fromEnd bool) (*Follower, error) {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	f := &Follower{
		path:           path,
		watcher:        fsw,
		logger:         utils.WithPrefix("follow"),
		debounceWindow: 50 * time.Millisecond,
		entries:        make(chan Entry, 64),
		errors:         make(chan error, 16),
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
	if fromEnd {
		if st, err := os.Stat(path); err == nil {
			f.offset = st.Size()
		}
	}
	return f, nil
}

// Entries returns new entries in file order. It is closed on Stop.
func (f *Follower) Entries() <-chan Entry {
	return f.entries
}

// Errors returns read errors. It is closed on Stop.
func (f *Follower) Errors() <-chan error {
	return f.errors
}

// Start reads anything past the initial offset and begins watching.
func (f *Follower) Start(ctx context.Context) error {
	if f == nil || f.watcher == nil {
		return fmt.Errorf("follower is not initialized")
	}
	f.startOnce.Do(func() {
		go f.loop(ctx)
	})
	return nil
}

// Stop stops watching and closes the channels. A later Start is a no-op.
func (f *Follower) Stop() error {
	if f == nil {
		return nil
	}
	// Never started: no loop will close the channels.
	f.startOnce.Do(func() {
		close(f.entries)
		close(f.errors)
		close(f.doneCh)
	})
	f.stopOnce.Do(func() {
		close(f.stopCh)
		_ = f.watcher.Close()
		<-f.doneCh
	})
	return nil
}

func (f *Follower) loop(ctx context.Context) {
	defer close(f.doneCh)
	defer close(f.entries)
	defer close(f.errors)

	f.drain(ctx)

	for {
		var timerC <-chan time.Time
		f.mu.Lock()
		if f.timer != nil {
			timerC = f.timer.C
		}
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-f.stopCh:
			return
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.sendError(err)
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			f.record()
		case <-timerC:
			f.flush(ctx)
		}
	}
}

func (f *Follower) record() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.dirty = true
	if f.timer == nil {
		f.timer = time.NewTimer(f.debounceWindow)
		return
	}
	if !f.timer.Stop() {
		select {
		case <-f.timer.C:
		default:
		}
	}
	f.timer.Reset(f.debounceWindow)
}

func (f *Follower) flush(ctx context.Context) {
	f.mu.Lock()
	dirty := f.dirty
	f.dirty = false
	f.timer = nil
	f.mu.Unlock()

	if dirty {
		f.drain(ctx)
	}
}

// drain reads from the current offset to EOF and emits complete lines.
func (f *Follower) drain(ctx context.Context) {
	entries, err := f.readNew()
	if err != nil {
		f.sendError(err)
	}
	for _, e := range entries {
		select {
		case f.entries <- e:
		case <-ctx.Done():
			return
		case <-f.stopCh:
			return
		}
	}
}

func (f *Follower) readNew() ([]Entry, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	st, err := file.Stat()
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if st.Size() < f.offset {
		f.logger.Debug("audit log shrank, rereading", "path", f.path)
		f.offset = 0
		f.partial = nil
	}
	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	f.offset += int64(len(data))

	buf := append(f.partial, data...)
	last := bytes.LastIndexByte(buf, '\n')
	if last < 0 {
		f.partial = buf
		return nil, nil
	}
	f.partial = append([]byte(nil), buf[last+1:]...)

	var entries []Entry
	for _, line := range bytes.Split(buf[:last], []byte{'\n'}) {
		e, err := ParseLine(line)
		if errors.Is(err, ErrEmptyLine) {
			continue
		}
		if err != nil {
			f.logger.Debug("skipping unparsable audit line", "error", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (f *Follower) sendError(err error) {
	if err == nil {
		return
	}
	select {
	case f.errors <- err:
	default:
		f.logger.Warn("follow error dropped", "error", err)
	}
}
