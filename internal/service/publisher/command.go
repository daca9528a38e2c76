package publisher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	"gopkg.in/yaml.v3"

	"github.com/shamu4life/helper-scripts/internal/config"
	"github.com/shamu4life/helper-scripts/internal/domain/release"
	"github.com/shamu4life/helper-scripts/internal/logger"
	"github.com/shamu4life/helper-scripts/internal/service/install"
)

// DefaultOutput is the manifest filename used when none is given.
const DefaultOutput = "release.yaml"

var (
	errArtifactRequired = errors.New("artifact path is required")
	errURLRequired      = errors.New("artifact url is required")
	errEmptyArtifact    = errors.New("artifact is empty")
)

// Options contains inputs for the publisher entry point.
type Options struct {
	// ArtifactPath is the local build to describe.
	ArtifactPath string
	// URL is where clients will download the artifact from.
	URL string
	// Version is the release version; read from the artifact when empty.
	Version string
	// VersionArgs and VersionPattern configure reading the version from the artifact.
	VersionArgs    []string
	VersionPattern string
	// ArchiveMember names the binary inside a tarball artifact.
	ArchiveMember string
	// Output is the manifest path.
	Output string
}

// Run digests the artifact and writes the manifest.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "publisher")

	desc, err := Describe(ctx, opts)
	if err != nil {
		return err
	}

	output := opts.Output
	if output == "" {
		output = DefaultOutput
	}

	contents, err := yaml.Marshal(desc)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(output), contents, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	logger.InfoKV(ctx, "Manifest written",
		"path", output, "version", desc.Version, "digest", desc.Digest.String())
	logger.Infof(ctx, "Upload %s to %s and point the manifest source at the uploaded %s",
		filepath.Base(opts.ArtifactPath), desc.ArtifactURL, filepath.Base(output))

	return nil
}

// Describe builds the descriptor for the artifact without writing it.
func Describe(ctx context.Context, opts *Options) (*release.Descriptor, error) {
	if opts.ArtifactPath == "" {
		return nil, errArtifactRequired
	}

	if opts.URL == "" {
		return nil, errURLRequired
	}

	dgst, size, err := digestFile(opts.ArtifactPath)
	if err != nil {
		return nil, err
	}

	if size == 0 {
		return nil, fmt.Errorf("%s: %w", opts.ArtifactPath, errEmptyArtifact)
	}

	ver := opts.Version
	if ver == "" {
		ver, err = readVersion(ctx, opts)
		if err != nil {
			return nil, err
		}
	}

	return &release.Descriptor{
		Version:       ver,
		ArtifactURL:   opts.URL,
		Digest:        dgst,
		ArchiveMember: opts.ArchiveMember,
	}, nil
}

// readVersion asks a plain executable artifact for its version.
func readVersion(ctx context.Context, opts *Options) (string, error) {
	args := opts.VersionArgs
	if len(args) == 0 {
		args = config.DefaultVersionArgs
	}

	probe, err := install.NewProbe(args, opts.VersionPattern)
	if err != nil {
		return "", err
	}

	path, err := filepath.Abs(opts.ArtifactPath)
	if err != nil {
		return "", err
	}

	ver, err := probe.Version(ctx, path)
	if err != nil {
		return "", fmt.Errorf("read version from artifact (pass --version): %w", err)
	}

	return ver, nil
}

func digestFile(path string) (digest.Digest, int64, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", 0, fmt.Errorf("open artifact: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return "", 0, err
	}

	dgst, err := digest.FromReader(f)
	if err != nil {
		return "", 0, fmt.Errorf("digest artifact: %w", err)
	}

	return dgst, info.Size(), nil
}
