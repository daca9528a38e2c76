package history

import (
	"time"

	"github.com/shamu4life/helper-scripts/internal/domain/release"
)

// Record is the persisted summary of one cycle.
type Record struct {
	RunID      string
	Service    string
	Outcome    release.Kind
	Stage      release.Stage
	OldVersion string
	NewVersion string
	Error      string
	ExitCode   int
	StartedAt  time.Time
	FinishedAt time.Time
	// InstalledVersion is the last version known to be installed. It
	// survives failed cycles.
	InstalledVersion string
}

// FromOutcome builds a record from a finished cycle. previous, when not
// nil, supplies the installed version for outcomes that do not carry one.
func FromOutcome(o *release.Outcome, previous *Record) *Record {
	r := &Record{
		RunID:      o.RunID,
		Service:    o.Service,
		Outcome:    o.Kind,
		Stage:      o.Stage,
		OldVersion: o.OldVersion,
		NewVersion: o.NewVersion,
		Error:      o.Reason(),
		ExitCode:   o.ExitCode(),
		StartedAt:  o.StartedAt,
		FinishedAt: o.FinishedAt,
	}

	switch {
	case o.Kind != release.KindFailed && o.NewVersion != "":
		r.InstalledVersion = o.NewVersion
	case previous != nil:
		r.InstalledVersion = previous.InstalledVersion
	}

	return r
}
