package orchestrator

import (
	"context"

	"github.com/opencontainers/go-digest"

	"github.com/shamu4life/helper-scripts/internal/domain/release"
)

// ReleaseSource returns the latest release descriptor.
type ReleaseSource interface {
	LatestRelease(ctx context.Context) (*release.Descriptor, error)
}

// ServiceManager controls the managed service.
type ServiceManager interface {
	Stop(ctx context.Context, service string) error
	Start(ctx context.Context, service string) error
	Status(ctx context.Context, service string) (release.ServiceStatus, error)
}

// Notifier delivers the outcome notification.
type Notifier interface {
	Notify(ctx context.Context, n *release.Notification) error
}

// Downloader fetches artifacts into a temporary area.
type Downloader interface {
	Download(ctx context.Context, desc *release.Descriptor) (*release.Artifact, error)
	Cleanup(a *release.Artifact) error
}

// Installer owns the live binary path.
type Installer interface {
	Validate(ctx context.Context, desc *release.Descriptor, a *release.Artifact) error
	// Swap must not be interrupted once started, so it takes no context.
	Swap(a *release.Artifact) (*release.Backup, error)
	Restore(ctx context.Context, b *release.Backup) error
	Discard(b *release.Backup) error
	CurrentDigest() (digest.Digest, error)
}

// VersionProbe reads the version of an installed binary.
type VersionProbe interface {
	Version(ctx context.Context, binaryPath string) (string, error)
}
