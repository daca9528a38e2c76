package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/shamu4life/helper-scripts/internal/domain/release"
	"github.com/shamu4life/helper-scripts/internal/logger"
)

const (
	// commLength is how much of an executable name Linux keeps in /proc/<pid>/stat.
	commLength = 15

	processPollInterval = 200 * time.Millisecond
)

var errProcessStillRunning = errors.New("process is still running")

// Process manages a binary without a supervisor: Stop kills every process
// running the binary, Start launches it detached.
type Process struct {
	binary string
	start  []string
}

// NewProcess creates a process manager for binary. When start is empty the
// binary itself is launched without arguments.
func NewProcess(binary string, start []string) *Process {
	return &Process{
		binary: binary,
		start:  append([]string(nil), start...),
	}
}

// Stop kills all matching processes and waits until they are gone.
func (p *Process) Stop(ctx context.Context, _ string) error {
	pids, err := p.find()
	if err != nil {
		return err
	}

	for _, pid := range pids {
		var process *os.Process

		process, err = os.FindProcess(pid)
		if err != nil {
			return err
		}

		if err = process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill %d: %w", pid, err)
		}

		logger.DebugKV(ctx, "Process killed", "pid", pid)
	}

	ticker := time.NewTicker(processPollInterval)
	defer ticker.Stop()

	for {
		pids, err = p.find()
		if err != nil {
			return err
		}

		if len(pids) == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", errProcessStillRunning, pids)
		case <-ticker.C:
		}
	}
}

// Start launches the process detached from the updater; it keeps running
// after the cycle ends.
func (p *Process) Start(ctx context.Context, service string) error {
	argv := expand(p.start, service)
	if len(argv) == 0 {
		argv = []string{p.binary}
	}

	//nolint:gosec,noctx // argv comes from operator configuration; the child must outlive ctx.
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", argv[0], err)
	}

	logger.DebugKV(ctx, "Process started", "pid", cmd.Process.Pid)

	// Reap the child if it exits while the updater is still alive.
	go func() {
		_ = cmd.Wait()
	}()

	return nil
}

// Status reports running when at least one matching process exists.
func (p *Process) Status(_ context.Context, _ string) (release.ServiceStatus, error) {
	pids, err := p.find()
	if err != nil {
		return "", err
	}

	if len(pids) == 0 {
		return release.StatusStopped, nil
	}

	return release.StatusRunning, nil
}

// find lists the processes running the managed binary, excluding this one.
func (p *Process) find() ([]int, error) {
	processes, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	name := filepath.Base(p.binary)
	self := os.Getpid()

	var pids []int

	for _, process := range processes {
		if process.Pid() == self {
			continue
		}

		if matchesExecutable(process.Executable(), name) {
			pids = append(pids, process.Pid())
		}
	}

	return pids, nil
}

// matchesExecutable compares a reported executable name with the binary
// name, accepting the truncated form Linux reports for long names.
func matchesExecutable(reported, name string) bool {
	if reported == name {
		return true
	}

	return len(name) > commLength && reported == name[:commLength]
}
