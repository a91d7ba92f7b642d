package files

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/sebas5384/now-php-extra/pkg/errors"
)

// Downloaded is the result of [Download].
type Downloaded struct {
	// Files maps every logical path to its on-disk copy.
	Files *Manifest
	// EntryPath is the filesystem path of the entrypoint.
	EntryPath string
}

// Download writes every file of m under dir, preserving relative paths and
// modes, and resolves the filesystem path of entrypoint.
//
// The entrypoint is checked before anything is written; a missing key yields
// a MISSING_ENTRYPOINT error. Files that already live at their destination
// are left untouched.
func Download(ctx context.Context, m *Manifest, entrypoint, dir string) (*Downloaded, error) {
	if !m.Has(entrypoint) {
		return nil, errors.New(errors.ErrCodeMissingEntrypoint, "entrypoint %q is not in the file manifest", entrypoint)
	}

	out, err := WriteAll(ctx, m, dir)
	if err != nil {
		return nil, err
	}
	ref, _ := out.Get(entrypoint)
	return &Downloaded{Files: out, EntryPath: ref.(FileFsRef).FsPath}, nil
}

// Validate checks that every key of m is a clean relative path: no leading
// "/", no ".." segments, and nothing that [path.Clean] would rewrite.
// Failures are INVALID_PATH.
func Validate(m *Manifest) error {
	for _, k := range m.Keys() {
		if err := errors.ValidatePath(k); err != nil {
			return err
		}
		if path.Clean(k) != k {
			return errors.New(errors.ErrCodeInvalidPath, "path is not in canonical form: %q", k)
		}
	}
	return nil
}

// WriteAll writes every file of m under dir and returns references to the
// written copies. Keys are checked with [Validate] before anything is
// written.
func WriteAll(ctx context.Context, m *Manifest, dir string) (*Manifest, error) {
	if err := Validate(m); err != nil {
		return nil, err
	}
	out := NewManifest()
	for _, e := range m.Entries() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dest := filepath.Join(dir, filepath.FromSlash(e.Name))
		if err := writeFile(e.File, dest); err != nil {
			return nil, fmt.Errorf("write %s: %w", e.Name, err)
		}
		out.Set(e.Name, FileFsRef{FsPath: dest, FileMode: e.File.Mode()})
	}
	return out, nil
}

func writeFile(f File, dest string) error {
	if ref, ok := f.(FileFsRef); ok && samePath(ref.FsPath, dest) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	// OpenFile only applies the mode on creation, and then through umask.
	return os.Chmod(dest, f.Mode())
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
