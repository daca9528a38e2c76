package manager

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shamu4life/helper-scripts/internal/domain/release"
)

// TestMatchesExecutable accepts exact and truncated names.
func TestMatchesExecutable(t *testing.T) {
	t.Parallel()

	require.True(t, matchesExecutable("filebrowser", "filebrowser"))
	require.True(t, matchesExecutable("prometheus-node", "prometheus-node-exporter"))
	require.False(t, matchesExecutable("yt-dlp", "yt-dlp-nightly"))
	require.False(t, matchesExecutable("sh", "filebrowser"))
}

// TestProcess starts, detects and kills a real process.
func TestProcess(t *testing.T) {
	t.Parallel()

	if runtime.GOOS != "linux" {
		t.Skip("process names are read from /proc")
	}

	binary := writeScript(t, t.TempDir(), "hu-proc-test", "while true; do sleep 1; done")
	m := NewProcess(binary, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status, err := m.Status(ctx, "ignored")
	require.NoError(t, err)
	require.Equal(t, release.StatusStopped, status)

	require.NoError(t, m.Start(ctx, "ignored"))

	require.Eventually(t, func() bool {
		status, err = m.Status(ctx, "ignored")
		return err == nil && status == release.StatusRunning
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, m.Stop(ctx, "ignored"))

	status, err = m.Status(ctx, "ignored")
	require.NoError(t, err)
	require.Equal(t, release.StatusStopped, status)
	require.Equal(t, "hu-proc-test", filepath.Base(binary))
}
