// Package testutil provides shared test helpers and fixtures for safeexec.
//
// Philosophy:
// - Prefer real files and a real SQLite index over mocks; mock only the child process.
// - Keep helpers small, composable, and deterministic.
// - Register cleanup via t.Cleanup so tests stay leak-free.
//
// Most gateway tests start with:
//
//	h := testutil.NewHarness(t)
//	runner := testutil.NewMockRunner(&stdout, "MARKER", 0)
//	testutil.WriteEntries(t, h.AuditPath, testutil.MakeEntry(testutil.EntryWithOutcome("DENIED")))
package testutil
