package source

import (
	"context"

	"github.com/opencontainers/go-digest"

	"github.com/shamu4life/helper-scripts/internal/domain/release"
)

// Static always points at the same URL, typically a "latest/download" link.
// It carries no version, so cycles fall back to comparing content digests.
type Static struct {
	url           string
	digest        digest.Digest
	archiveMember string
}

// NewStatic creates a source for a fixed URL.
func NewStatic(url string, dgst digest.Digest, archiveMember string) *Static {
	return &Static{url: url, digest: dgst, archiveMember: archiveMember}
}

// LatestRelease returns the fixed descriptor.
func (s *Static) LatestRelease(context.Context) (*release.Descriptor, error) {
	return checkDescriptor(&release.Descriptor{
		ArtifactURL:   s.url,
		Digest:        s.digest,
		ArchiveMember: s.archiveMember,
	})
}
