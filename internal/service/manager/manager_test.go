package manager

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shamu4life/helper-scripts/internal/config"
	"github.com/shamu4life/helper-scripts/internal/domain/release"
)

// writeScript creates an executable shell script in dir.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))

	return path
}

// TestExpand replaces every placeholder occurrence.
func TestExpand(t *testing.T) {
	t.Parallel()

	got := expand([]string{"rc-service", "{service}", "stop", "--name={service}"}, "filebrowser")
	require.Equal(t, []string{"rc-service", "filebrowser", "stop", "--name=filebrowser"}, got)
}

// TestCommand drives a service through argv templates.
func TestCommand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	state := filepath.Join(dir, "state")
	ctl := writeScript(t, dir, "ctl", `
case "$2" in
  stop) echo stopped > "`+state+`" ;;
  start) echo running > "`+state+`" ;;
  status) grep -q running "`+state+`" 2>/dev/null ;;
  *) echo "bad action $2" >&2; exit 9 ;;
esac`)

	m := NewCommand(
		[]string{ctl, "{service}", "stop"},
		[]string{ctl, "{service}", "start"},
		[]string{ctl, "{service}", "status"},
	)
	ctx := context.Background()

	status, err := m.Status(ctx, "app")
	require.NoError(t, err)
	require.Equal(t, release.StatusStopped, status)

	require.NoError(t, m.Start(ctx, "app"))

	status, err = m.Status(ctx, "app")
	require.NoError(t, err)
	require.Equal(t, release.StatusRunning, status)

	require.NoError(t, m.Stop(ctx, "app"))

	status, err = m.Status(ctx, "app")
	require.NoError(t, err)
	require.Equal(t, release.StatusStopped, status)
}

// TestCommand_Errors reports failing commands with their output.
func TestCommand_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fail := writeScript(t, dir, "fail", `echo "unit not found" >&2; exit 5`)

	m := NewCommand([]string{fail}, nil, []string{filepath.Join(dir, "missing")})

	err := m.Stop(context.Background(), "app")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unit not found")

	require.ErrorIs(t, m.Start(context.Background(), "app"), errEmptyCommand)

	_, err = m.Status(context.Background(), "app")
	require.Error(t, err)
}

// TestSystemd checks the systemctl invocations.
func TestSystemd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	calls := filepath.Join(dir, "calls")
	systemctl := writeScript(t, dir, "systemctl", `
echo "$*" >> "`+calls+`"
[ "$1" = "is-active" ] && exit 3
exit 0`)

	m := &Systemd{systemctl: systemctl}
	ctx := context.Background()

	require.NoError(t, m.Stop(ctx, "filebrowser.service"))
	require.NoError(t, m.Start(ctx, "filebrowser.service"))

	status, err := m.Status(ctx, "filebrowser.service")
	require.NoError(t, err)
	require.Equal(t, release.StatusStopped, status)

	data, err := os.ReadFile(calls)
	require.NoError(t, err)
	require.Equal(t, []string{
		"stop filebrowser.service",
		"start filebrowser.service",
		"is-active --quiet filebrowser.service",
	}, strings.Split(strings.TrimSpace(string(data)), "\n"))
}

// TestNew selects the back end from configuration.
func TestNew(t *testing.T) {
	t.Parallel()

	m, err := New(&config.ServiceConfig{Manager: "systemd"}, time.Second)
	require.NoError(t, err)
	require.IsType(t, &Systemd{}, m.Manager)

	m, err = New(&config.ServiceConfig{Manager: "process", Binary: "/usr/bin/app", Settle: time.Minute}, time.Second)
	require.NoError(t, err)
	require.IsType(t, &Process{}, m.Manager)
	require.Equal(t, time.Minute, m.settle)

	m, err = New(&config.ServiceConfig{
		Manager:       "command",
		HealthAddress: "127.0.0.1:9000",
		HealthService: "app",
	}, time.Second)
	require.NoError(t, err)
	require.IsType(t, &Command{}, m.Manager)
	require.Equal(t, "127.0.0.1:9000", m.healthAddress)

	_, err = New(&config.ServiceConfig{Manager: "launchd"}, time.Second)
	require.ErrorIs(t, err, errUnknownManager)
}
