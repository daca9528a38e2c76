package release

import (
	"strings"

	goversion "github.com/hashicorp/go-version"
	"github.com/opencontainers/go-digest"
)

// Descriptor describes the latest build offered by a release source.
type Descriptor struct {
	// Version is the comparable version token. Empty when the source cannot tell.
	Version string `yaml:"version,omitempty"`
	// ArtifactURL is where the build can be downloaded from.
	ArtifactURL string `yaml:"url"`
	// Digest is the expected content digest of the artifact, e.g. "sha256:...".
	Digest digest.Digest `yaml:"digest,omitempty"`
	// ArchiveMember names the file to extract when the artifact is a tarball.
	ArchiveMember string `yaml:"archive_member,omitempty"`
}

// HasVersion reports whether the descriptor carries a usable version token.
func (d *Descriptor) HasVersion() bool {
	return d != nil && strings.TrimSpace(d.Version) != ""
}

// Installation is what the updater knows about the live binary.
type Installation struct {
	// CurrentVersion is the probed version, empty if the binary is missing or mute.
	CurrentVersion string
	// BinaryPath is the filesystem path of the live executable.
	BinaryPath string
	// ServiceName identifies the managed service.
	ServiceName string
}

// Artifact is a downloaded build waiting in the temporary area.
type Artifact struct {
	// Path is the location of the downloaded (and possibly extracted) file.
	Path string
	// Size is the file size in bytes.
	Size int64
	// Digest is the sha256 digest of the file contents.
	Digest digest.Digest
	// SourceDigest is the digest of the bytes as downloaded, before any extraction.
	SourceDigest digest.Digest
}

// Backup is the retained copy of the binary that was live before a swap.
type Backup struct {
	// Path is empty when there was no binary to back up.
	Path string
	// Digest is the content digest of the backup.
	Digest digest.Digest
}

// Exists reports whether a previous binary was retained.
func (b *Backup) Exists() bool {
	return b != nil && b.Path != ""
}

// ServiceStatus is the state reported by a service manager.
type ServiceStatus string

const (
	// StatusRunning means the service is up.
	StatusRunning ServiceStatus = "running"
	// StatusStopped means the service is not running.
	StatusStopped ServiceStatus = "stopped"
)

// SameVersion compares two version tokens. Identical strings are equal;
// otherwise both must parse as versions, compare equal and carry the same
// build metadata, so "v1.2.0" matches "1.2.0" but "1.2.0+build1" does not
// match "1.2.0+build2". Empty tokens never match.
func SameVersion(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}

	if a == b {
		return true
	}

	va, err := goversion.NewVersion(a)
	if err != nil {
		return false
	}

	vb, err := goversion.NewVersion(b)
	if err != nil {
		return false
	}

	return va.Equal(vb) && va.Metadata() == vb.Metadata()
}
