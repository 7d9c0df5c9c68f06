package testutil

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
)

// RunCall records a single Run invocation.
type RunCall struct {
	Argv []string
}

// MockRunner records and simulates command execution. It satisfies the
// gateway's Runner interface without spawning anything.
type MockRunner struct {
	mu sync.Mutex

	// RecordedCalls contains every argv that was run.
	RecordedCalls []RunCall

	// Stdout receives Output on each call, standing in for the child's
	// inherited stdout.
	Stdout io.Writer
	Output string

	ExitCode int
	Err      error

	// RunFunc, if set, replaces the static behavior.
	RunFunc func(ctx context.Context, argv []string) (int, error)
}

// NewMockRunner creates a mock that exits with code and writes output.
func NewMockRunner(stdout io.Writer, output string, code int) *MockRunner {
	return &MockRunner{Stdout: stdout, Output: output, ExitCode: code}
}

// NewMockRunnerFunc creates a mock with dynamic behavior.
func NewMockRunnerFunc(fn func(ctx context.Context, argv []string) (int, error)) *MockRunner {
	return &MockRunner{RunFunc: fn}
}

// Run records the call and returns the configured result.
func (m *MockRunner) Run(ctx context.Context, argv []string) (int, error) {
	m.mu.Lock()
	m.RecordedCalls = append(m.RecordedCalls, RunCall{Argv: slices.Clone(argv)})
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, argv)
	}
	if m.Stdout != nil && m.Output != "" {
		fmt.Fprintln(m.Stdout, m.Output)
	}
	return m.ExitCode, m.Err
}

// CallCount returns the number of recorded calls.
func (m *MockRunner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RecordedCalls)
}

// LastCall returns the most recent call, or nil if none.
func (m *MockRunner) LastCall() *RunCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.RecordedCalls) == 0 {
		return nil
	}
	call := m.RecordedCalls[len(m.RecordedCalls)-1]
	return &call
}

// WasCalled returns true if anything was run.
func (m *MockRunner) WasCalled() bool {
	return m.CallCount() > 0
}

// WasCalledWith returns true if argv was run exactly.
func (m *MockRunner) WasCalledWith(argv ...string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, call := range m.RecordedCalls {
		if slices.Equal(call.Argv, argv) {
			return true
		}
	}
	return false
}

// Reset clears recorded calls.
func (m *MockRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordedCalls = nil
}
