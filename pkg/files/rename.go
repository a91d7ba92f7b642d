package files

import (
	"path"
	"strings"

	"github.com/sebas5384/now-php-extra/pkg/errors"
)

// Rename returns a new manifest whose keys are fn(key), in the original
// order. Two keys mapping to the same name is an INVALID_MANIFEST error.
func Rename(m *Manifest, fn func(string) string) (*Manifest, error) {
	out := NewManifest()
	for _, e := range m.Entries() {
		name := fn(e.Name)
		if out.Has(name) {
			return nil, errors.New(errors.ErrCodeInvalidManifest,
				"renaming %q to %q collides with an existing file", e.Name, name)
		}
		out.Set(name, e.File)
	}
	return out, nil
}

// Prefix relocates every key of m under dir.
func Prefix(m *Manifest, dir string) (*Manifest, error) {
	return Rename(m, func(name string) string {
		return path.Join(dir, name)
	})
}

// StripRoot removes from p every segment that equals any segment of
// documentRoot, then rejoins the remainder with "/".
//
// This is a set difference over segments, not a prefix trim: with root
// "public", "public/css/public/a.css" becomes "css/a.css".
func StripRoot(p, documentRoot string) string {
	root := make(map[string]struct{})
	for _, seg := range strings.Split(documentRoot, "/") {
		root[seg] = struct{}{}
	}

	segs := strings.Split(p, "/")
	kept := segs[:0:0]
	for _, seg := range segs {
		if _, ok := root[seg]; !ok {
			kept = append(kept, seg)
		}
	}
	return strings.Join(kept, "/")
}
