package orchestrator

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/shamu4life/helper-scripts/internal/domain/release"
)

var errFake = errors.New("fake failure")

// fakeSource returns a fixed descriptor or error.
type fakeSource struct {
	desc *release.Descriptor
	err  error
}

func (s *fakeSource) LatestRelease(context.Context) (*release.Descriptor, error) {
	if s.err != nil {
		return nil, s.err
	}

	d := *s.desc

	return &d, nil
}

// fakeManager records calls. startFailures makes the first N starts fail;
// a negative value makes every start fail. stopHangs makes Stop block until
// its context is done.
type fakeManager struct {
	mu            sync.Mutex
	calls         []string
	stopErr       error
	stopHangs     bool
	startFailures int
	status        release.ServiceStatus
	stopGate      chan struct{}
	stopEntered   chan struct{}
}

func (m *fakeManager) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, call)
}

func (m *fakeManager) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.calls...)
}

func (m *fakeManager) Stop(ctx context.Context, _ string) error {
	m.record("stop")

	if m.stopHangs {
		<-ctx.Done()
		return ctx.Err()
	}

	if m.stopEntered != nil {
		close(m.stopEntered)
		m.stopEntered = nil
	}

	if m.stopGate != nil {
		<-m.stopGate
	}

	return m.stopErr
}

func (m *fakeManager) Start(context.Context, string) error {
	m.record("start")

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startFailures != 0 {
		if m.startFailures > 0 {
			m.startFailures--
		}

		return errFake
	}

	return nil
}

func (m *fakeManager) Status(context.Context, string) (release.ServiceStatus, error) {
	m.record("status")

	if m.status != "" {
		return m.status, nil
	}

	return release.StatusRunning, nil
}

// fileProbe treats the binary contents as its version output.
type fileProbe struct {
	mute bool
}

func (p *fileProbe) Version(_ context.Context, binaryPath string) (string, error) {
	if p.mute {
		return "", errFake
	}

	data, err := os.ReadFile(binaryPath)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(data)), nil
}

// fakeNotifier records notifications and the state of their context.
type fakeNotifier struct {
	mu       sync.Mutex
	sent     []*release.Notification
	ctxErrs  []error
	failWith error
}

func (n *fakeNotifier) Notify(ctx context.Context, msg *release.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sent = append(n.sent, msg)
	n.ctxErrs = append(n.ctxErrs, ctx.Err())

	return n.failWith
}

func (n *fakeNotifier) Sent() []*release.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]*release.Notification(nil), n.sent...)
}

// cancellingDownloader cancels the cycle context once the download is done.
type cancellingDownloader struct {
	Downloader

	cancel context.CancelFunc
}

func (d *cancellingDownloader) Download(ctx context.Context, desc *release.Descriptor) (*release.Artifact, error) {
	a, err := d.Downloader.Download(ctx, desc)
	d.cancel()

	return a, err
}
