package manager

import (
	"context"

	"github.com/shamu4life/helper-scripts/internal/domain/release"
)

// Command controls a service through operator-provided argv templates,
// e.g. ["rc-service", "{service}", "stop"].
type Command struct {
	stop   []string
	start  []string
	status []string
}

// NewCommand creates a command manager from the three templates.
func NewCommand(stop, start, status []string) *Command {
	return &Command{
		stop:   append([]string(nil), stop...),
		start:  append([]string(nil), start...),
		status: append([]string(nil), status...),
	}
}

// Stop runs the stop template.
func (c *Command) Stop(ctx context.Context, service string) error {
	return run(ctx, expand(c.stop, service))
}

// Start runs the start template.
func (c *Command) Start(ctx context.Context, service string) error {
	return run(ctx, expand(c.start, service))
}

// Status runs the status template; exit code zero means running.
func (c *Command) Status(ctx context.Context, service string) (release.ServiceStatus, error) {
	return probe(ctx, expand(c.status, service))
}
