package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/shamu4life/helper-scripts/internal/domain/release"
	"github.com/shamu4life/helper-scripts/internal/logger"
)

var (
	errNoPreviousBinary = errors.New("no previous binary to restore")
	errEmptyArtifactURL = errors.New("release descriptor has no artifact url")
)

// cycle holds the state of a single RunUpdateCycle call.
type cycle struct {
	*Orchestrator

	inst     release.Installation
	desc     *release.Descriptor
	artifact *release.Artifact
	backup   *release.Backup
}

// run walks the cycle state machine and returns the terminal outcome.
func (c *cycle) run(ctx context.Context) *release.Outcome {
	desc, err := c.discover(ctx)
	if err != nil {
		return release.Failed(release.StageDiscover, release.ErrSourceUnavailable, err)
	}

	c.desc = desc
	c.inst.CurrentVersion = c.probe(ctx)

	logger.InfoKV(ctx, "Release discovered",
		"installed", c.inst.CurrentVersion, "available", desc.Version, "url", desc.ArtifactURL)

	if desc.HasVersion() && c.inst.CurrentVersion != "" && release.SameVersion(c.inst.CurrentVersion, desc.Version) {
		return release.NoUpdateNeeded(c.inst.CurrentVersion)
	}

	if err = c.download(ctx); err != nil {
		return release.Failed(release.StageDownload, release.ErrDownloadFailed, err)
	}

	defer c.cleanup(ctx)

	if !desc.HasVersion() && c.sameContent(ctx) {
		return release.NoUpdateNeeded(c.inst.CurrentVersion)
	}

	if err = c.cfg.Installer.Validate(ctx, desc, c.artifact); err != nil {
		return release.Failed(release.StageValidate, release.ErrValidationFailed, err)
	}

	// Last point where cancellation is honoured: from here on the service
	// is touched and every step runs to completion under its own timeout.
	if err = ctx.Err(); err != nil {
		return release.Failed(release.StageStop, release.ErrCycleCancelled, err)
	}

	ctx = context.WithoutCancel(ctx)

	if err = c.stop(ctx); err != nil {
		return release.Failed(release.StageStop, release.ErrServiceStopFailed, err)
	}

	if err = c.swap(ctx); err != nil {
		return c.recoverSwap(ctx, err)
	}

	if err = c.start(ctx); err != nil {
		return c.rollback(ctx, err)
	}

	c.discardBackup(ctx)

	return c.verify(ctx)
}

func (c *cycle) discover(ctx context.Context) (*release.Descriptor, error) {
	callCtx, cancel := withTimeout(ctx, c.cfg.Timeouts.Discover)
	defer cancel()

	desc, err := c.cfg.Source.LatestRelease(callCtx)
	if err != nil {
		return nil, err
	}

	if desc == nil || desc.ArtifactURL == "" {
		return nil, errEmptyArtifactURL
	}

	return desc, nil
}

// probe returns the installed version, empty when the binary is missing
// or cannot tell.
func (c *cycle) probe(ctx context.Context) string {
	callCtx, cancel := withTimeout(ctx, c.cfg.Timeouts.Probe)
	defer cancel()

	v, err := c.cfg.Probe.Version(callCtx, c.inst.BinaryPath)
	if err != nil {
		logger.WarnKV(ctx, "Installed version unknown", "binary", c.inst.BinaryPath, "error", err)
		return ""
	}

	return v
}

func (c *cycle) download(ctx context.Context) error {
	callCtx, cancel := withTimeout(ctx, c.cfg.Timeouts.Download)
	defer cancel()

	a, err := c.cfg.Downloader.Download(callCtx, c.desc)
	if err != nil {
		return err
	}

	c.artifact = a

	logger.InfoKV(ctx, "Artifact downloaded", "size", a.Size, "digest", a.Digest.String())

	return nil
}

func (c *cycle) cleanup(ctx context.Context) {
	if err := c.cfg.Downloader.Cleanup(c.artifact); err != nil {
		logger.WarnKV(ctx, "Failed to remove downloaded artifact", "path", c.artifact.Path, "error", err)
	}
}

// sameContent compares the artifact with the live binary when the source
// has no version to compare.
func (c *cycle) sameContent(ctx context.Context) bool {
	installed, err := c.cfg.Installer.CurrentDigest()
	if err != nil {
		logger.WarnKV(ctx, "Cannot hash installed binary", "error", err)
		return false
	}

	if installed == "" || installed != c.artifact.Digest {
		return false
	}

	logger.InfoKV(ctx, "Installed binary matches the release", "digest", installed.String())

	return true
}

func (c *cycle) stop(ctx context.Context) error {
	callCtx, cancel := withTimeout(ctx, c.cfg.Timeouts.Service)
	defer cancel()

	logger.InfoKV(ctx, "Stopping service")

	return c.cfg.Manager.Stop(callCtx, c.inst.ServiceName)
}

func (c *cycle) swap(ctx context.Context) error {
	backup, err := c.cfg.Installer.Swap(c.artifact)
	c.backup = backup

	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Binary replaced", "backup", backup.Path)

	return nil
}

// start starts the service and confirms it reports running.
func (c *cycle) start(ctx context.Context) error {
	callCtx, cancel := withTimeout(ctx, c.cfg.Timeouts.Service)
	defer cancel()

	logger.InfoKV(ctx, "Starting service")

	if err := c.cfg.Manager.Start(callCtx, c.inst.ServiceName); err != nil {
		return err
	}

	status, err := c.cfg.Manager.Status(callCtx, c.inst.ServiceName)
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}

	if status != release.StatusRunning {
		return fmt.Errorf("%w: %s", errServiceNotRunning, status)
	}

	return nil
}

// recoverSwap brings the old service back after a failed swap. The rename
// is the last step of a swap, so the live path still holds the old binary
// unless its content changed anyway; then the backup is restored first.
func (c *cycle) recoverSwap(ctx context.Context, swapErr error) *release.Outcome {
	logger.ErrorKV(ctx, "Swap failed, restarting previous binary", "error", swapErr)

	if c.backup.Exists() {
		if current, err := c.cfg.Installer.CurrentDigest(); err != nil || current != c.backup.Digest {
			if err = c.cfg.Installer.Restore(ctx, c.backup); err != nil {
				return release.Failed(release.StageSwap, release.ErrRollbackFailed,
					fmt.Errorf("swap: %w; restore: %w", swapErr, err))
			}
		}
	}

	if err := c.start(ctx); err != nil {
		return release.Failed(release.StageSwap, release.ErrRollbackFailed,
			fmt.Errorf("swap: %w; restart: %w", swapErr, err))
	}

	c.discardBackup(ctx)

	return release.Failed(release.StageSwap, release.ErrSwapFailed, swapErr)
}

// rollback restores the previous binary after the new one failed to start
// and starts the service once more.
func (c *cycle) rollback(ctx context.Context, startErr error) *release.Outcome {
	logger.ErrorKV(ctx, "New binary failed to start, rolling back", "error", startErr)

	if !c.backup.Exists() {
		return release.Failed(release.StageRestart, release.ErrRollbackFailed,
			fmt.Errorf("start: %w; %w", startErr, errNoPreviousBinary))
	}

	// A half-started service must not run while the binary is restored.
	stopCtx, cancel := withTimeout(ctx, c.cfg.Timeouts.Service)
	if err := c.cfg.Manager.Stop(stopCtx, c.inst.ServiceName); err != nil {
		logger.WarnKV(ctx, "Stopping the failed service returned an error", "error", err)
	}

	cancel()

	if err := c.cfg.Installer.Restore(ctx, c.backup); err != nil {
		return release.Failed(release.StageRestart, release.ErrRollbackFailed,
			fmt.Errorf("start: %w; restore: %w", startErr, err))
	}

	if err := c.start(ctx); err != nil {
		return release.Failed(release.StageRestart, release.ErrRollbackFailed,
			fmt.Errorf("start: %w; restart previous binary: %w", startErr, err))
	}

	c.discardBackup(ctx)

	logger.WarnKV(ctx, "Rolled back to previous binary", "version", c.inst.CurrentVersion)

	return release.Failed(release.StageRestart, release.ErrServiceStartFailed, startErr)
}

func (c *cycle) discardBackup(ctx context.Context) {
	if !c.backup.Exists() {
		return
	}

	if err := c.cfg.Installer.Discard(c.backup); err != nil {
		logger.WarnKV(ctx, "Failed to remove previous binary", "path", c.backup.Path, "error", err)
	}
}

// verify reads the new version and classifies the finished update.
func (c *cycle) verify(ctx context.Context) *release.Outcome {
	newVersion := c.probe(ctx)
	if newVersion == "" {
		newVersion = c.desc.Version
	}

	old := c.inst.CurrentVersion
	if old != "" && newVersion != "" && release.SameVersion(old, newVersion) {
		return release.NoUpdateNeeded(newVersion)
	}

	return release.Updated(old, newVersion)
}
