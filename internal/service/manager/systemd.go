package manager

import (
	"context"

	"github.com/shamu4life/helper-scripts/internal/domain/release"
)

// DefaultSystemctl is the systemctl executable looked up in PATH.
const DefaultSystemctl = "systemctl"

// Systemd controls a unit through systemctl.
type Systemd struct {
	systemctl string
}

// NewSystemd creates a systemd manager using the systemctl from PATH.
func NewSystemd() *Systemd {
	return &Systemd{systemctl: DefaultSystemctl}
}

// Stop runs "systemctl stop <unit>".
func (s *Systemd) Stop(ctx context.Context, unit string) error {
	return run(ctx, []string{s.systemctl, "stop", unit})
}

// Start runs "systemctl start <unit>".
func (s *Systemd) Start(ctx context.Context, unit string) error {
	return run(ctx, []string{s.systemctl, "start", unit})
}

// Status maps "systemctl is-active --quiet <unit>" to running or stopped.
func (s *Systemd) Status(ctx context.Context, unit string) (release.ServiceStatus, error) {
	return probe(ctx, []string{s.systemctl, "is-active", "--quiet", unit})
}
