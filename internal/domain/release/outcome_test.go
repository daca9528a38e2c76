package release

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errTestCause = errors.New("connection refused")

// TestFailedWrapsSentinelAndCause verifies both errors stay reachable through errors.Is.
func TestFailedWrapsSentinelAndCause(t *testing.T) {
	t.Parallel()

	o := Failed(StageDownload, ErrDownloadFailed, errTestCause)

	require.Equal(t, KindFailed, o.Kind)
	require.Equal(t, StageDownload, o.Stage)
	require.ErrorIs(t, o.Err, ErrDownloadFailed)
	require.ErrorIs(t, o.Err, errTestCause)
	require.Contains(t, o.Reason(), "connection refused")
}

// TestOutcomeSeverityAndExitCode checks the severity tier and exit status of each variant.
func TestOutcomeSeverityAndExitCode(t *testing.T) {
	t.Parallel()

	noop := NoUpdateNeeded("1.0.0")
	require.Equal(t, SeverityInfo, noop.Severity())
	require.Equal(t, ExitOK, noop.ExitCode())

	updated := Updated("1.1.0", "1.2.0")
	require.Equal(t, SeverityInfo, updated.Severity())
	require.Equal(t, ExitOK, updated.ExitCode())
	require.Empty(t, updated.Reason())

	failed := Failed(StageStop, ErrServiceStopFailed, errTestCause)
	require.Equal(t, SeverityError, failed.Severity())
	require.Equal(t, ExitFailed, failed.ExitCode())
	require.False(t, failed.RollbackFailed())

	rollback := Failed(StageRestart, ErrRollbackFailed, errTestCause)
	require.Equal(t, SeverityCritical, rollback.Severity())
	require.Equal(t, ExitRollbackFailed, rollback.ExitCode())
	require.True(t, rollback.RollbackFailed())
}

// TestOutcomeString covers the summary line used in notifications.
func TestOutcomeString(t *testing.T) {
	t.Parallel()

	o := Updated("", "1.2.0")
	o.Service = "filebrowser"
	require.Equal(t, "filebrowser updated from unknown to 1.2.0", o.String())

	o = Failed(StageRestart, ErrRollbackFailed, nil)
	o.Service = "filebrowser"
	require.Contains(t, o.String(), "rollback failed")
}

// TestNewNotification verifies the structured message mirrors the outcome.
func TestNewNotification(t *testing.T) {
	t.Parallel()

	finished := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	o := Updated("1.1.0", "1.2.0")
	o.Service = "yt-dlp"
	o.RunID = "run-1"
	o.FinishedAt = finished

	n := NewNotification(o, "media-box")
	require.Equal(t, SeverityInfo, n.Severity)
	require.Equal(t, KindUpdated, n.Outcome)
	require.Equal(t, "1.1.0", n.OldVersion)
	require.Equal(t, "1.2.0", n.NewVersion)
	require.Equal(t, "media-box", n.Host)
	require.Equal(t, finished, n.Timestamp)
	require.Contains(t, n.Title, "yt-dlp")
}

// TestSeverityRank checks ordering of severities, unknown ranks lowest.
func TestSeverityRank(t *testing.T) {
	t.Parallel()

	require.Less(t, SeverityInfo.Rank(), SeverityError.Rank())
	require.Less(t, SeverityError.Rank(), SeverityCritical.Rank())
	require.Zero(t, Severity("debug").Rank())
}
