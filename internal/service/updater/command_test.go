package updater

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shamu4life/helper-scripts/internal/domain/release"
	"github.com/shamu4life/helper-scripts/internal/repository/history"
)

// TestExitCode maps outcomes and plain errors to exit statuses.
func TestExitCode(t *testing.T) {
	t.Parallel()

	require.Equal(t, release.ExitOK, ExitCode(nil))
	require.Equal(t, release.ExitFailed, ExitCode(errors.New("bad config")))

	failed := &OutcomeError{Outcome: release.Failed(release.StageDownload, release.ErrDownloadFailed, nil)}
	require.Equal(t, release.ExitFailed, ExitCode(failed))
	require.ErrorIs(t, failed, release.ErrDownloadFailed)

	rollback := &OutcomeError{Outcome: release.Failed(release.StageRestart, release.ErrRollbackFailed, nil)}
	require.Equal(t, release.ExitRollbackFailed, ExitCode(fmt.Errorf("run: %w", rollback)))
}

// writeConfig stores a minimal configuration whose history lives in dir.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()

	contents := fmt.Sprintf(`
service:
  name: filebrowser
  binary: %s
source:
  type: url
  url: https://downloads.example.com/filebrowser
history_file: %s
`, filepath.Join(dir, "filebrowser"), filepath.Join(dir, "history.json"))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

// TestStatus_Empty reports that nothing ran yet.
func TestStatus_Empty(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, Status(context.Background(), &StatusOptions{
		ConfigPath: writeConfig(t, t.TempDir()),
		Output:     &out,
	}))
	require.Equal(t, "filebrowser: no update cycle recorded yet\n", out.String())
}

// TestStatus_Record prints the stored record.
func TestStatus_Record(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	finished := time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC)

	require.NoError(t, history.NewFileRepository(filepath.Join(dir, "history.json")).Save(context.Background(), &history.Record{
		RunID:            "run-9",
		Service:          "filebrowser",
		Outcome:          release.KindUpdated,
		OldVersion:       "2.30.0",
		NewVersion:       "2.31.2",
		StartedAt:        finished.Add(-4 * time.Second),
		FinishedAt:       finished,
		InstalledVersion: "2.31.2",
	}))

	var out bytes.Buffer
	require.NoError(t, Status(context.Background(), &StatusOptions{
		ConfigPath: writeConfig(t, dir),
		Output:     &out,
	}))

	text := out.String()
	require.Contains(t, text, "Installed:")
	require.Contains(t, text, "2.31.2")
	require.Contains(t, text, "updated")
	require.Contains(t, text, "4s")
	require.Contains(t, text, "run-9")
	require.NotContains(t, text, "Error:")
}

// TestRun_BadConfig fails before any cycle.
func TestRun_BadConfig(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
	require.Equal(t, release.ExitFailed, ExitCode(err))
}
