package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/shamu4life/helper-scripts/internal/config"
	"github.com/shamu4life/helper-scripts/internal/domain/release"
	"github.com/shamu4life/helper-scripts/internal/version"
)

// maxMetadataSize caps manifest and API responses; release metadata is small.
const maxMetadataSize = 4 << 20

var (
	errBadHTTPStatus   = errors.New("unexpected http status")
	errEmptyURL        = errors.New("release has no artifact url")
	errUnknownSource   = errors.New("unknown source type")
	errAssetNotFound   = errors.New("release asset not found")
	errInvalidDigest   = errors.New("invalid artifact digest")
	errMissingArtifact = errors.New("release source returned nothing")
)

// Source returns the latest release descriptor.
type Source interface {
	LatestRelease(ctx context.Context) (*release.Descriptor, error)
}

// New builds the source described by the configuration.
func New(cfg *config.SourceConfig, client *http.Client) (Source, error) { //nolint:ireturn // Variant is chosen by configuration.
	if client == nil {
		client = http.DefaultClient
	}

	switch cfg.Type {
	case "github":
		return NewGitHub(cfg.APIURL, cfg.Repository, cfg.Asset, cfg.Token, cfg.ArchiveMember, client), nil
	case "manifest":
		return NewManifest(cfg.URL, client), nil
	case "url":
		return NewStatic(cfg.URL, digest.Digest(cfg.Digest), cfg.ArchiveMember), nil
	default:
		return nil, fmt.Errorf("%s: %w", cfg.Type, errUnknownSource)
	}
}

// checkDescriptor rejects descriptors a download could not act on.
func checkDescriptor(d *release.Descriptor) (*release.Descriptor, error) {
	if d == nil {
		return nil, errMissingArtifact
	}

	d.Version = strings.TrimSpace(d.Version)
	d.ArtifactURL = strings.TrimSpace(d.ArtifactURL)

	if d.ArtifactURL == "" {
		return nil, errEmptyURL
	}

	if d.Digest != "" {
		if err := d.Digest.Validate(); err != nil {
			return nil, fmt.Errorf("%w %q: %w", errInvalidDigest, d.Digest, err)
		}
	}

	return d, nil
}

// fetch performs a GET and returns the capped body of a 200 response.
func fetch(ctx context.Context, client *http.Client, rawURL string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	req.Header.Set("User-Agent", version.UserAgent())

	response, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s, %s: %w", rawURL, response.Status, errBadHTTPStatus)
	}

	return io.ReadAll(io.LimitReader(response.Body, maxMetadataSize))
}
