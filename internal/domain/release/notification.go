package release

import "time"

// Notification is the structured message handed to notifiers once per cycle.
type Notification struct {
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Severity   Severity  `json:"severity"`
	Service    string    `json:"service"`
	Outcome    Kind      `json:"outcome"`
	Stage      Stage     `json:"stage,omitempty"`
	OldVersion string    `json:"old_version,omitempty"`
	NewVersion string    `json:"new_version,omitempty"`
	RunID      string    `json:"run_id"`
	Host       string    `json:"host,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewNotification renders the notification describing an outcome.
func NewNotification(o *Outcome, host string) *Notification {
	title := "Update succeeded"

	switch {
	case o.RollbackFailed():
		title = "Update failed, rollback failed"
	case o.Kind == KindFailed:
		title = "Update failed"
	case o.Kind == KindNoUpdateNeeded:
		title = "Already up to date"
	}

	ts := o.FinishedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	return &Notification{
		Title:      title + ": " + o.Service,
		Message:    o.String(),
		Severity:   o.Severity(),
		Service:    o.Service,
		Outcome:    o.Kind,
		Stage:      o.Stage,
		OldVersion: o.OldVersion,
		NewVersion: o.NewVersion,
		RunID:      o.RunID,
		Host:       host,
		Timestamp:  ts.UTC(),
	}
}
