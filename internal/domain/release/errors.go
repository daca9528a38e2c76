package release

import "errors"

// Stage errors. Every failed cycle carries exactly one of them, wrapped
// together with the underlying cause.
var (
	// ErrSourceUnavailable means the release source could not be queried or returned malformed data.
	ErrSourceUnavailable = errors.New("release source unavailable")
	// ErrDownloadFailed means the artifact transfer failed or produced an empty file.
	ErrDownloadFailed = errors.New("download failed")
	// ErrValidationFailed means the downloaded artifact did not pass the integrity gate.
	ErrValidationFailed = errors.New("artifact validation failed")
	// ErrServiceStopFailed means the managed service could not be stopped; nothing was changed.
	ErrServiceStopFailed = errors.New("service stop failed")
	// ErrSwapFailed means the binary could not be replaced; the previous binary is still in place.
	ErrSwapFailed = errors.New("binary swap failed")
	// ErrServiceStartFailed means the new binary did not start and the previous one was restored.
	ErrServiceStartFailed = errors.New("service start failed")
	// ErrRollbackFailed means the previous state could not be restored. Operator action is required.
	ErrRollbackFailed = errors.New("rollback failed")
	// ErrCycleCancelled means the cycle was interrupted before the service was stopped; nothing was changed.
	ErrCycleCancelled = errors.New("update cycle cancelled before the service was touched")
	// ErrCycleInProgress means another cycle holds the lock for the same binary.
	ErrCycleInProgress = errors.New("update cycle already in progress")
)
