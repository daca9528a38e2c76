package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/shamu4life/helper-scripts/internal/domain/release"
)

// reservePort finds a free localhost TCP port and returns "127.0.0.1:port".
func reservePort(t *testing.T) string {
	t.Helper()

	var lc net.ListenConfig

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	lis, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	return addr
}

// startHealth serves grpc.health.v1 reporting SERVING for service at addr.
func startHealth(t *testing.T, addr, service string) {
	t.Helper()

	lis, err := net.Listen("tcp", addr)
	require.NoError(t, err)

	srv := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus(service, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	go func() {
		_ = srv.Serve(lis)
	}()

	t.Cleanup(srv.Stop)
}

// script writes an executable shell script.
func script(t *testing.T, path, body string) {
	t.Helper()

	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
}

// build returns a fake service binary printing ver. A broken build refuses
// the --check flag the start script runs.
func build(ver string, broken bool) string {
	check := "exit 0"
	if broken {
		check = "echo 'config error' >&2; exit 1"
	}

	return fmt.Sprintf(`case "$1" in
  --version) echo "version: %s, commit: test, built at: now" ;;
  --check) %s ;;
esac`, ver, check)
}

// service holds the shell scripts emulating an init system.
type service struct {
	ctl   string
	state string
}

// newService creates a control script that runs "<binary> --check" on start.
func newService(t *testing.T, dir, binary string) *service {
	t.Helper()

	s := &service{
		ctl:   filepath.Join(dir, "svc"),
		state: filepath.Join(dir, "svc.state"),
	}

	script(t, s.ctl, fmt.Sprintf(`
case "$2" in
  stop) echo stopped > %[1]q ;;
  start) %[2]q --check || exit 1; echo running > %[1]q ;;
  status) grep -q running %[1]q 2>/dev/null ;;
esac`, s.state, binary))

	require.NoError(t, os.WriteFile(s.state, []byte("running\n"), 0o644))

	return s
}

func (s *service) running(t *testing.T) bool {
	t.Helper()

	data, err := os.ReadFile(s.state)
	require.NoError(t, err)

	return strings.TrimSpace(string(data)) == "running"
}

// releaseServer serves a manifest at /release.yaml and the artifact at /app,
// and records webhook notifications posted to /hook.
type releaseServer struct {
	*httptest.Server

	mu       sync.Mutex
	manifest []byte
	artifact []byte
	hooks    []release.Notification
}

func newReleaseServer(t *testing.T) *releaseServer {
	t.Helper()

	rs := &releaseServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("/release.yaml", func(w http.ResponseWriter, _ *http.Request) {
		rs.mu.Lock()
		defer rs.mu.Unlock()

		_, _ = w.Write(rs.manifest)
	})
	mux.HandleFunc("/app", func(w http.ResponseWriter, _ *http.Request) {
		rs.mu.Lock()
		defer rs.mu.Unlock()

		_, _ = w.Write(rs.artifact)
	})
	mux.HandleFunc("/hook", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		var n release.Notification
		if err := json.Unmarshal(body, &n); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		rs.mu.Lock()
		rs.hooks = append(rs.hooks, n)
		rs.mu.Unlock()
	})

	rs.Server = httptest.NewServer(mux)
	t.Cleanup(rs.Close)

	return rs
}

func (rs *releaseServer) publish(manifest, artifact []byte) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.manifest = manifest
	rs.artifact = artifact
}

func (rs *releaseServer) notifications() []release.Notification {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	return append([]release.Notification(nil), rs.hooks...)
}
