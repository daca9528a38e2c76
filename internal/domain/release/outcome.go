package release

import (
	"errors"
	"fmt"
	"time"
)

// Kind tags the variant of an Outcome.
type Kind string

const (
	// KindNoUpdateNeeded means the installed build is already the latest.
	KindNoUpdateNeeded Kind = "no_update_needed"
	// KindUpdated means the new build is installed and the service runs it.
	KindUpdated Kind = "updated"
	// KindFailed means the cycle stopped at Stage.
	KindFailed Kind = "failed"
)

// Stage names the step of the cycle where a failure happened.
type Stage string

const (
	StageLock     Stage = "lock"
	StageDiscover Stage = "discover"
	StageDownload Stage = "download"
	StageValidate Stage = "validate"
	StageStop     Stage = "stop"
	StageSwap     Stage = "swap"
	StageRestart  Stage = "restart"
)

// Severity orders notifications.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Rank maps a severity to a comparable number; unknown values rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityError:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// Exit codes of the orchestration entry point.
const (
	ExitOK             = 0
	ExitFailed         = 1
	ExitRollbackFailed = 2
)

// Outcome is the terminal result of one update cycle.
type Outcome struct {
	Kind Kind
	// OldVersion and NewVersion are set for KindUpdated.
	OldVersion string
	NewVersion string
	// Stage and Err are set for KindFailed.
	Stage Stage
	Err   error

	RunID      string
	Service    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// NoUpdateNeeded builds the no-op outcome.
func NoUpdateNeeded(version string) *Outcome {
	return &Outcome{Kind: KindNoUpdateNeeded, OldVersion: version, NewVersion: version}
}

// Updated builds the success outcome.
func Updated(oldVersion, newVersion string) *Outcome {
	return &Outcome{Kind: KindUpdated, OldVersion: oldVersion, NewVersion: newVersion}
}

// Failed builds a failure outcome. The sentinel classifies the failure and
// cause explains it; either may be nil.
func Failed(stage Stage, sentinel, cause error) *Outcome {
	var err error

	switch {
	case sentinel != nil && cause != nil:
		err = fmt.Errorf("%w: %w", sentinel, cause)
	case sentinel != nil:
		err = sentinel
	default:
		err = cause
	}

	return &Outcome{Kind: KindFailed, Stage: stage, Err: err}
}

// Reason is the human-readable failure reason, empty unless failed.
func (o *Outcome) Reason() string {
	if o.Kind != KindFailed || o.Err == nil {
		return ""
	}

	return o.Err.Error()
}

// RollbackFailed reports whether the cycle left the service stopped.
func (o *Outcome) RollbackFailed() bool {
	return o.Kind == KindFailed && errors.Is(o.Err, ErrRollbackFailed)
}

// Severity returns the notification tier for the outcome.
func (o *Outcome) Severity() Severity {
	switch {
	case o.RollbackFailed():
		return SeverityCritical
	case o.Kind == KindFailed:
		return SeverityError
	default:
		return SeverityInfo
	}
}

// ExitCode returns the process exit status for the outcome.
func (o *Outcome) ExitCode() int {
	switch {
	case o.RollbackFailed():
		return ExitRollbackFailed
	case o.Kind == KindFailed:
		return ExitFailed
	default:
		return ExitOK
	}
}

// Duration is the wall-clock time the cycle took.
func (o *Outcome) Duration() time.Duration {
	if o.StartedAt.IsZero() || o.FinishedAt.IsZero() {
		return 0
	}

	return o.FinishedAt.Sub(o.StartedAt)
}

// String renders the outcome as a one-line summary.
func (o *Outcome) String() string {
	switch o.Kind {
	case KindNoUpdateNeeded:
		if o.NewVersion == "" {
			return fmt.Sprintf("%s is up to date", o.Service)
		}

		return fmt.Sprintf("%s is up to date (%s)", o.Service, o.NewVersion)
	case KindUpdated:
		return fmt.Sprintf("%s updated from %s to %s", o.Service, orUnknown(o.OldVersion), orUnknown(o.NewVersion))
	case KindFailed:
		if o.RollbackFailed() {
			return fmt.Sprintf("%s update failed at %s and rollback failed, service needs attention: %s",
				o.Service, o.Stage, o.Reason())
		}

		return fmt.Sprintf("%s update failed at %s: %s", o.Service, o.Stage, o.Reason())
	default:
		return string(o.Kind)
	}
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}

	return v
}
