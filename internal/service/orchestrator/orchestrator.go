package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/shamu4life/helper-scripts/internal/domain/release"
	"github.com/shamu4life/helper-scripts/internal/logger"
)

var (
	errBinaryPathRequired  = errors.New("binary path is required")
	errServiceNameRequired = errors.New("service name is required")
	errMissingCollaborator = errors.New("collaborator is not set")
	errServiceNotRunning   = errors.New("service is not running after start")
)

// Timeouts bound each external call. Zero means no limit.
type Timeouts struct {
	Discover time.Duration
	Download time.Duration
	Service  time.Duration
	Probe    time.Duration
	Notify   time.Duration
}

// Config wires an Orchestrator. Notifier is optional.
type Config struct {
	BinaryPath  string
	ServiceName string

	Source     ReleaseSource
	Manager    ServiceManager
	Notifier   Notifier
	Downloader Downloader
	Installer  Installer
	Probe      VersionProbe

	Timeouts Timeouts
	// NotifyOnNoUpdate sends a notification for cycles that change nothing.
	NotifyOnNoUpdate bool
	// LockPath guards against concurrent cycles; see DefaultLockPath.
	LockPath string
	// Host is reported in notifications.
	Host string
}

// Orchestrator runs update cycles for one binary.
type Orchestrator struct {
	cfg Config
	// running refuses re-entry within the process; the lock file covers
	// other processes.
	running sync.Mutex
}

// New validates cfg and creates an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.BinaryPath == "" {
		return nil, errBinaryPathRequired
	}

	if cfg.ServiceName == "" {
		return nil, errServiceNameRequired
	}

	switch {
	case cfg.Source == nil:
		return nil, fmt.Errorf("source: %w", errMissingCollaborator)
	case cfg.Manager == nil:
		return nil, fmt.Errorf("service manager: %w", errMissingCollaborator)
	case cfg.Downloader == nil:
		return nil, fmt.Errorf("downloader: %w", errMissingCollaborator)
	case cfg.Installer == nil:
		return nil, fmt.Errorf("installer: %w", errMissingCollaborator)
	case cfg.Probe == nil:
		return nil, fmt.Errorf("version probe: %w", errMissingCollaborator)
	}

	if cfg.LockPath == "" {
		cfg.LockPath = DefaultLockPath(cfg.BinaryPath)
	}

	if cfg.Host == "" {
		cfg.Host, _ = os.Hostname()
	}

	return &Orchestrator{cfg: cfg}, nil
}

// DefaultLockPath derives a per-binary lock file in the temp dir from the
// absolute binary path.
func DefaultLockPath(binaryPath string) string {
	abs, err := filepath.Abs(binaryPath)
	if err != nil {
		abs = binaryPath
	}

	sum := sha256.Sum256([]byte(filepath.Clean(abs)))

	return filepath.Join(os.TempDir(), "helper-updater-"+hex.EncodeToString(sum[:8])+".lock")
}

// RunUpdateCycle executes one cycle and returns its outcome. It never
// panics on collaborator errors and notifies exactly once per terminal
// outcome, with one exception: a cycle refused at the lock (another cycle
// for the same binary is running, or the lock file cannot be taken)
// returns Failed{lock} without notifying and leaves reporting to the
// cycle that holds the lock.
func (o *Orchestrator) RunUpdateCycle(ctx context.Context) *release.Outcome {
	runID := uuid.NewString()
	startedAt := time.Now()

	ctx = logger.WithName(ctx, "orchestrator")
	ctx = logger.WithFields(ctx, "run_id", runID, "service", o.cfg.ServiceName)

	unlock, err := o.acquire()
	if err != nil {
		out := o.finish(release.Failed(release.StageLock, nil, err), runID, startedAt)
		logger.WarnKV(ctx, "Update cycle refused", "error", err)

		return out
	}

	defer unlock(ctx)

	logger.InfoKV(ctx, "Update cycle started", "binary", o.cfg.BinaryPath)

	c := &cycle{
		Orchestrator: o,
		inst: release.Installation{
			BinaryPath:  o.cfg.BinaryPath,
			ServiceName: o.cfg.ServiceName,
		},
	}

	out := o.finish(c.run(ctx), runID, startedAt)
	o.report(ctx, out)
	o.notify(ctx, out)

	return out
}

// acquire takes the in-process guard and the lock file without blocking.
func (o *Orchestrator) acquire() (func(context.Context), error) {
	if !o.running.TryLock() {
		return nil, release.ErrCycleInProgress
	}

	lock := flock.New(o.cfg.LockPath)

	locked, err := lock.TryLock()
	if err != nil {
		o.running.Unlock()
		return nil, fmt.Errorf("lock %s: %w", o.cfg.LockPath, err)
	}

	if !locked {
		o.running.Unlock()
		return nil, fmt.Errorf("%w: %s is held", release.ErrCycleInProgress, o.cfg.LockPath)
	}

	return func(ctx context.Context) {
		if err := lock.Unlock(); err != nil {
			logger.WarnKV(ctx, "Failed to release lock", "path", o.cfg.LockPath, "error", err)
		}

		o.running.Unlock()
	}, nil
}

func (o *Orchestrator) finish(out *release.Outcome, runID string, startedAt time.Time) *release.Outcome {
	out.RunID = runID
	out.Service = o.cfg.ServiceName
	out.StartedAt = startedAt
	out.FinishedAt = time.Now()

	return out
}

func (o *Orchestrator) report(ctx context.Context, out *release.Outcome) {
	switch {
	case out.RollbackFailed():
		logger.ErrorKV(ctx, "Update failed and rollback failed, service needs attention",
			"stage", out.Stage, "error", out.Err, "duration", out.Duration())
	case out.Kind == release.KindFailed:
		logger.ErrorKV(ctx, "Update failed", "stage", out.Stage, "error", out.Err, "duration", out.Duration())
	default:
		logger.InfoKV(ctx, "Update cycle finished", "outcome", out.Kind,
			"old_version", out.OldVersion, "new_version", out.NewVersion, "duration", out.Duration())
	}
}

// notify sends the single outcome notification. It runs on a context
// detached from cancellation so an interrupted cycle still reports, and
// its errors are only logged.
func (o *Orchestrator) notify(ctx context.Context, out *release.Outcome) {
	if o.cfg.Notifier == nil {
		return
	}

	if out.Kind == release.KindNoUpdateNeeded && !o.cfg.NotifyOnNoUpdate {
		logger.Debug(ctx, "No-op cycle, notification suppressed")
		return
	}

	notifyCtx, cancel := withTimeout(context.WithoutCancel(ctx), o.cfg.Timeouts.Notify)
	defer cancel()

	if err := o.cfg.Notifier.Notify(notifyCtx, release.NewNotification(out, o.cfg.Host)); err != nil {
		logger.WarnKV(ctx, "Notification failed", "error", err)
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}
