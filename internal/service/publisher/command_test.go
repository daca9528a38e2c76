package publisher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/shamu4life/helper-scripts/internal/domain/release"
)

// TestRun writes a manifest readable as a release descriptor.
func TestRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	artifact := filepath.Join(dir, "linux-amd64-filebrowser.tar.gz")
	require.NoError(t, os.WriteFile(artifact, []byte("tarball"), 0o644))

	output := filepath.Join(dir, "release.yaml")
	require.NoError(t, Run(context.Background(), &Options{
		ArtifactPath:  artifact,
		URL:           "https://downloads.example.com/filebrowser.tar.gz",
		Version:       "2.31.2",
		ArchiveMember: "filebrowser",
		Output:        output,
	}))

	data, err := os.ReadFile(output)
	require.NoError(t, err)

	var got release.Descriptor
	require.NoError(t, yaml.Unmarshal(data, &got))
	require.Equal(t, release.Descriptor{
		Version:       "2.31.2",
		ArtifactURL:   "https://downloads.example.com/filebrowser.tar.gz",
		Digest:        digest.FromString("tarball"),
		ArchiveMember: "filebrowser",
	}, got)
}

// TestDescribe_VersionFromArtifact runs the artifact when no version is given.
func TestDescribe_VersionFromArtifact(t *testing.T) {
	t.Parallel()

	artifact := filepath.Join(t.TempDir(), "tool")
	require.NoError(t, os.WriteFile(artifact, []byte("#!/bin/sh\necho 'tool v3.4.5'\n"), 0o755))

	desc, err := Describe(context.Background(), &Options{
		ArtifactPath:   artifact,
		URL:            "https://downloads.example.com/tool",
		VersionPattern: `v(\S+)`,
	})
	require.NoError(t, err)
	require.Equal(t, "3.4.5", desc.Version)
}

// TestDescribe_Errors rejects incomplete input.
func TestDescribe_Errors(t *testing.T) {
	t.Parallel()

	_, err := Describe(context.Background(), &Options{URL: "https://x"})
	require.ErrorIs(t, err, errArtifactRequired)

	_, err = Describe(context.Background(), &Options{ArtifactPath: "/bin/true"})
	require.ErrorIs(t, err, errURLRequired)

	empty := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	_, err = Describe(context.Background(), &Options{ArtifactPath: empty, URL: "https://x", Version: "1"})
	require.ErrorIs(t, err, errEmptyArtifact)

	_, err = Describe(context.Background(), &Options{ArtifactPath: filepath.Join(t.TempDir(), "nope"), URL: "https://x"})
	require.Error(t, err)
}
