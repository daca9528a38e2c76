// Package orchestrator runs one update cycle for a managed binary:
// discover, compare, download, validate, stop, swap, start, verify and
// notify, rolling back to the previous binary when the new one fails to
// start.
//
// RunUpdateCycle never returns an error: every failure is folded into a
// release.Outcome whose exit code the CLI reports. Cycles are serialized by
// an exclusive lock file; a concurrent call is refused, not queued.
package orchestrator
