package manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/shamu4life/helper-scripts/internal/config"
	"github.com/shamu4life/helper-scripts/internal/domain/release"
)

// ServicePlaceholder is replaced by the service name in command templates.
const ServicePlaceholder = "{service}"

var (
	errUnknownManager = errors.New("unknown service manager")
	errEmptyCommand   = errors.New("command template is empty")
)

// Manager stops, starts and inspects one service.
type Manager interface {
	Stop(ctx context.Context, service string) error
	Start(ctx context.Context, service string) error
	Status(ctx context.Context, service string) (release.ServiceStatus, error)
}

// New builds the manager selected in cfg, wrapped with start verification.
func New(cfg *config.ServiceConfig, timeout time.Duration) (*Verified, error) {
	var inner Manager

	switch cfg.Manager {
	case "", "systemd":
		inner = NewSystemd()
	case "command":
		inner = NewCommand(cfg.StopCommand, cfg.StartCommand, cfg.StatusCommand)
	case "process":
		inner = NewProcess(cfg.Binary, cfg.StartCommand)
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownManager, cfg.Manager)
	}

	opts := []VerifyOption{WithSettle(cfg.Settle)}
	if cfg.HealthAddress != "" {
		opts = append(opts, WithHealthCheck(cfg.HealthAddress, cfg.HealthService, timeout))
	}

	return NewVerified(inner, opts...), nil
}

// expand substitutes the service name into an argv template.
func expand(template []string, service string) []string {
	argv := make([]string, len(template))
	for i, arg := range template {
		argv[i] = strings.ReplaceAll(arg, ServicePlaceholder, service)
	}

	return argv
}

// run executes argv and folds its output into the error on failure.
func run(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errEmptyCommand
	}

	//nolint:gosec // argv comes from operator configuration.
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	var output bytes.Buffer

	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		if out := strings.TrimSpace(output.String()); out != "" {
			return fmt.Errorf("%s: %w: %s", strings.Join(argv, " "), err, out)
		}

		return fmt.Errorf("%s: %w", strings.Join(argv, " "), err)
	}

	return nil
}

// probe runs a status command: exit code zero means running, any other
// exit code means stopped. Failing to run the command at all is an error.
func probe(ctx context.Context, argv []string) (release.ServiceStatus, error) {
	err := run(ctx, argv)
	if err == nil {
		return release.StatusRunning, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return release.StatusStopped, nil
	}

	return "", err
}
