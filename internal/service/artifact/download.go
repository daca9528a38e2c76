package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"github.com/shamu4life/helper-scripts/internal/domain/release"
	"github.com/shamu4life/helper-scripts/internal/logger"
	"github.com/shamu4life/helper-scripts/internal/version"
)

// tempPattern prefixes every download directory so leftovers are easy to spot.
const tempPattern = "helper-updater-"

var (
	errBadHTTPStatus = errors.New("unexpected http status")
	errEmptyArtifact = errors.New("downloaded artifact is empty")
	errNoDescriptor  = errors.New("release descriptor is nil")
)

// Downloader fetches artifacts into a private temporary directory.
type Downloader struct {
	client  *http.Client
	tempDir string
}

// NewDownloader creates a downloader. An empty tempDir means the system default.
func NewDownloader(client *http.Client, tempDir string) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}

	return &Downloader{client: client, tempDir: tempDir}
}

// Download streams the artifact to disk, hashing it on the way. When the
// descriptor names an archive member, the member is extracted and becomes
// the artifact; SourceDigest still refers to the downloaded bytes.
func (d *Downloader) Download(ctx context.Context, desc *release.Descriptor) (*release.Artifact, error) {
	if desc == nil {
		return nil, errNoDescriptor
	}

	dir, err := os.MkdirTemp(d.tempDir, tempPattern)
	if err != nil {
		return nil, fmt.Errorf("create temporary directory: %w", err)
	}

	a, err := d.download(ctx, dir, desc)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	return a, nil
}

func (d *Downloader) download(ctx context.Context, dir string, desc *release.Descriptor) (*release.Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.ArtifactURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", version.UserAgent())

	response, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%s, %s: %w", desc.ArtifactURL, response.Status, errBadHTTPStatus)
	}

	downloaded := filepath.Join(dir, downloadName(desc.ArtifactURL))

	size, dgst, err := writeFile(downloaded, response.Body)
	if err != nil {
		return nil, err
	}

	if size == 0 {
		return nil, fmt.Errorf("%s: %w", desc.ArtifactURL, errEmptyArtifact)
	}

	logger.InfoKV(ctx, "Downloaded artifact", "path", downloaded, "size", size, "digest", dgst.String())

	a := &release.Artifact{
		Path:         downloaded,
		Size:         size,
		Digest:       dgst,
		SourceDigest: dgst,
	}

	if desc.ArchiveMember == "" {
		return a, nil
	}

	extracted, err := extractMember(downloaded, desc.ArchiveMember, dir)
	if err != nil {
		return nil, err
	}

	extracted.SourceDigest = dgst

	logger.InfoKV(ctx, "Extracted archive member", "member", desc.ArchiveMember, "size", extracted.Size)

	return extracted, nil
}

// Cleanup removes the temporary directory holding the artifact.
func (d *Downloader) Cleanup(a *release.Artifact) error {
	if a == nil || a.Path == "" {
		return nil
	}

	return os.RemoveAll(filepath.Dir(a.Path))
}

// writeFile copies r into a new file at name and returns its size and digest.
func writeFile(name string, r io.Reader) (int64, digest.Digest, error) {
	out, err := os.OpenFile(filepath.Clean(name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, "", err
	}

	digester := digest.Canonical.Digester()

	size, err := io.Copy(io.MultiWriter(out, digester.Hash()), r)
	if err != nil {
		_ = out.Close()
		return 0, "", fmt.Errorf("write %s: %w", name, err)
	}

	if err = out.Close(); err != nil {
		return 0, "", err
	}

	return size, digester.Digest(), nil
}

// downloadName derives a local file name from the artifact URL.
func downloadName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "artifact"
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "artifact"
	}

	return name
}
