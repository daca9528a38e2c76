package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/opencontainers/go-digest"

	"github.com/shamu4life/helper-scripts/internal/domain/release"
	"github.com/shamu4life/helper-scripts/internal/logger"
)

const (
	// DefaultFileMode is applied to installed binaries.
	DefaultFileMode os.FileMode = 0o755

	// backupSuffix names the retained previous binary, next to the live one.
	backupSuffix = ".previous"
	// failedSuffix names the rejected binary kept after a rollback.
	failedSuffix = ".failed"
)

var (
	errEmptyArtifact  = errors.New("artifact is empty")
	errDigestMismatch = errors.New("artifact digest mismatch")
	errNoBackup       = errors.New("no previous binary to restore")
	errBackupChanged  = errors.New("previous binary changed since it was backed up")
	errNotRegular     = errors.New("binary path is not a regular file")
)

// Installer owns the live binary path: it validates candidates, swaps them
// in atomically and restores the previous binary on demand.
type Installer struct {
	binaryPath string
	mode       os.FileMode
}

// NewInstaller creates an installer for the binary at binaryPath.
func NewInstaller(binaryPath string) *Installer {
	return &Installer{
		binaryPath: filepath.Clean(binaryPath),
		mode:       DefaultFileMode,
	}
}

// BinaryPath returns the managed path.
func (i *Installer) BinaryPath() string {
	return i.binaryPath
}

// Validate is the integrity gate run before the service is touched: the
// artifact must be non-empty, accept executable permissions, match the
// published digest if any, and the install directory must be writable.
func (i *Installer) Validate(ctx context.Context, desc *release.Descriptor, a *release.Artifact) error {
	info, err := os.Stat(a.Path)
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}

	if info.Size() == 0 || a.Size == 0 {
		return errEmptyArtifact
	}

	if err = verifyDigest(desc.Digest, a); err != nil {
		return err
	}

	if err = os.Chmod(a.Path, i.mode); err != nil {
		return fmt.Errorf("set executable permission: %w", err)
	}

	opts := goupdate.Options{
		TargetPath: i.binaryPath,
		TargetMode: i.mode,
	}

	if err = opts.CheckPermissions(); err != nil {
		return fmt.Errorf("install directory not writable: %w", err)
	}

	logger.DebugKV(ctx, "Artifact validated", "digest", a.Digest.String(), "size", a.Size)

	return nil
}

// verifyDigest compares the published digest with the downloaded bytes.
func verifyDigest(want digest.Digest, a *release.Artifact) error {
	if want == "" {
		return nil
	}

	if want.Algorithm() == a.SourceDigest.Algorithm() {
		if want != a.SourceDigest {
			return fmt.Errorf("%w: want %s, got %s", errDigestMismatch, want, a.SourceDigest)
		}

		return nil
	}

	// Other algorithms are checked against the artifact file itself.
	f, err := os.Open(a.Path)
	if err != nil {
		return err
	}

	defer func() {
		_ = f.Close()
	}()

	verifier := want.Verifier()
	if _, err = io.Copy(verifier, f); err != nil {
		return err
	}

	if !verifier.Verified() {
		return fmt.Errorf("%w: want %s", errDigestMismatch, want)
	}

	return nil
}

// Swap replaces the live binary with the artifact. The previous binary is
// hard-linked (or copied) to a sibling backup first, then the artifact is
// written to a sibling temp file and renamed over the live path, so the
// path always names a complete executable. Swap takes no context: once
// started it runs to completion.
func (i *Installer) Swap(a *release.Artifact) (*release.Backup, error) {
	backup, err := i.backup()
	if err != nil {
		return nil, fmt.Errorf("back up current binary: %w", err)
	}

	src, err := os.Open(a.Path)
	if err != nil {
		return backup, err
	}

	defer func() {
		_ = src.Close()
	}()

	if err = i.replace(src); err != nil {
		return backup, err
	}

	return backup, nil
}

// backup retains the current binary at the backup path.
func (i *Installer) backup() (*release.Backup, error) {
	info, err := os.Stat(i.binaryPath)
	if errors.Is(err, os.ErrNotExist) {
		return &release.Backup{}, nil
	}

	if err != nil {
		return nil, err
	}

	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", i.binaryPath, errNotRegular)
	}

	backupPath := i.binaryPath + backupSuffix
	_ = os.Remove(backupPath)

	if err = os.Link(i.binaryPath, backupPath); err != nil {
		if err = copyFile(i.binaryPath, backupPath, info.Mode().Perm()); err != nil {
			return nil, err
		}
	}

	dgst, err := fileDigest(backupPath)
	if err != nil {
		return nil, err
	}

	return &release.Backup{Path: backupPath, Digest: dgst}, nil
}

// replace writes r to a sibling temp file and renames it over the binary path.
func (i *Installer) replace(r io.Reader) error {
	dir := filepath.Dir(i.binaryPath)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(i.binaryPath)+".new-*")
	if err != nil {
		return err
	}

	tmpName := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err = io.Copy(tmp, r); err != nil {
		cleanup()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}

	if err = tmp.Chmod(i.mode); err != nil {
		cleanup()
		return err
	}

	if err = tmp.Sync(); err != nil {
		cleanup()
		return err
	}

	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err = os.Rename(tmpName, i.binaryPath); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}

	syncDir(dir)

	return nil
}

// Restore puts the backup back in place the same way Swap installs a
// build, so the binary path never goes missing. The rejected binary is kept
// next to it for inspection, and the backup must still match its digest.
func (i *Installer) Restore(ctx context.Context, b *release.Backup) error {
	if !b.Exists() {
		return errNoBackup
	}

	dgst, err := fileDigest(b.Path)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}

	if dgst != b.Digest {
		return fmt.Errorf("%w: want %s, got %s", errBackupChanged, b.Digest, dgst)
	}

	rejected := i.binaryPath + failedSuffix
	if err = i.keep(rejected); err != nil {
		logger.WarnKV(ctx, "Cannot keep rejected binary", "path", rejected, "error", err)
	}

	src, err := os.Open(b.Path)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}

	defer func() {
		_ = src.Close()
	}()

	if err = i.replace(src); err != nil {
		return fmt.Errorf("restore previous binary: %w", err)
	}

	logger.WarnKV(ctx, "Previous binary restored", "path", i.binaryPath, "rejected", rejected)

	return nil
}

// keep links (or copies) the live binary to path, replacing what was there.
func (i *Installer) keep(path string) error {
	info, err := os.Stat(i.binaryPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return err
	}

	_ = os.Remove(path)

	if err = os.Link(i.binaryPath, path); err != nil {
		return copyFile(i.binaryPath, path, info.Mode().Perm())
	}

	return nil
}

// Discard removes the backup once the new binary is confirmed.
func (i *Installer) Discard(b *release.Backup) error {
	if !b.Exists() {
		return nil
	}

	if err := os.Remove(b.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

// CurrentDigest returns the digest of the live binary, empty if it is missing.
func (i *Installer) CurrentDigest() (digest.Digest, error) {
	dgst, err := fileDigest(i.binaryPath)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}

	return dgst, err
}

func fileDigest(name string) (digest.Digest, error) {
	f, err := os.Open(filepath.Clean(name))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = f.Close()
	}()

	return digest.FromReader(f)
}

func copyFile(from, to string, mode os.FileMode) error {
	src, err := os.Open(filepath.Clean(from))
	if err != nil {
		return err
	}

	defer func() {
		_ = src.Close()
	}()

	dst, err := os.OpenFile(filepath.Clean(to), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err = io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}

	return dst.Close()
}

// syncDir flushes the directory entry after a rename; best effort.
func syncDir(dir string) {
	d, err := os.Open(filepath.Clean(dir))
	if err != nil {
		return
	}

	_ = d.Sync()
	_ = d.Close()
}
