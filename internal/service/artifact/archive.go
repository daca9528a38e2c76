package artifact

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/shamu4life/helper-scripts/internal/domain/release"
)

// extractedSuffix keeps the extracted file apart from the downloaded archive.
const extractedSuffix = ".extracted"

var (
	errNotArchive     = errors.New("artifact is not a gzip-compressed tarball")
	errMemberNotFound = errors.New("archive member not found")
)

//nolint:gochecknoglobals // Read-only magic bytes.
var gzipMagic = []byte{0x1f, 0x8b}

// extractMember copies the regular file named member out of a .tar.gz archive.
// The member matches either its full path inside the archive or its base name.
func extractMember(archivePath, member, dir string) (*release.Artifact, error) {
	f, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = f.Close()
	}()

	br := bufio.NewReader(f)

	magic, err := br.Peek(len(gzipMagic))
	if err != nil || !bytes.Equal(magic, gzipMagic) {
		return nil, fmt.Errorf("%s: %w", filepath.Base(archivePath), errNotArchive)
	}

	gz, err := gzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}

	defer func() {
		_ = gz.Close()
	}()

	tr := tar.NewReader(gz)

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: %w", member, errMemberNotFound)
		}

		if err != nil {
			return nil, fmt.Errorf("read archive: %w", err)
		}

		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := path.Clean(hdr.Name)
		if name != member && path.Base(name) != member {
			continue
		}

		target := filepath.Join(dir, path.Base(name)+extractedSuffix)

		size, dgst, err := writeFile(target, tr)
		if err != nil {
			return nil, err
		}

		if size == 0 {
			return nil, fmt.Errorf("%s: %w", member, errEmptyArtifact)
		}

		return &release.Artifact{Path: target, Size: size, Digest: dgst}, nil
	}
}
