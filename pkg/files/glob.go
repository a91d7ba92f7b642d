package files

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// MatchAll is the glob pattern that selects every file.
const MatchAll = "**"

// Glob walks dir recursively and returns a manifest of the regular files it
// finds, keyed by their slash-separated path relative to dir.
//
// The pattern [MatchAll] selects everything; any other pattern is matched
// against the relative path with [path.Match]. Keys come out in lexical
// order. A symlink to a file is recorded with its target's mode, since the
// reference reads through it. Dangling links and links to directories are
// skipped.
func Glob(ctx context.Context, pattern, dir string) (*Manifest, error) {
	if pattern != MatchAll {
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, err
		}
	}

	m := NewManifest()
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if pattern != MatchAll {
			if ok, _ := path.Match(pattern, key); !ok {
				return nil
			}
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			info, err = os.Stat(p)
			if os.IsNotExist(err) {
				return nil
			}
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
		}
		m.Set(key, FileFsRef{FsPath: p, FileMode: info.Mode().Perm()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}
