package files

import (
	"bytes"
	"io"
	"os"
)

// DefaultMode is the permission mode used for files that do not carry one.
const DefaultMode os.FileMode = 0o644

// File is the content reference of a manifest entry.
type File interface {
	// Mode returns the permission bits the file is written with.
	Mode() os.FileMode
	// Open returns a reader over the file contents. The caller closes it.
	Open() (io.ReadCloser, error)
}

// FileBlob holds file contents in memory.
type FileBlob struct {
	Data     []byte
	FileMode os.FileMode
}

// Mode returns the blob's mode, or [DefaultMode] when unset.
func (b FileBlob) Mode() os.FileMode {
	if b.FileMode == 0 {
		return DefaultMode
	}
	return b.FileMode
}

// Open returns a reader over the blob data.
func (b FileBlob) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.Data)), nil
}

// FileFsRef points at a file on the local filesystem.
type FileFsRef struct {
	FsPath   string
	FileMode os.FileMode
}

// Mode returns the reference's mode, or [DefaultMode] when unset.
func (r FileFsRef) Mode() os.FileMode {
	if r.FileMode == 0 {
		return DefaultMode
	}
	return r.FileMode
}

// Open opens the referenced file.
func (r FileFsRef) Open() (io.ReadCloser, error) {
	return os.Open(r.FsPath)
}

// Manifest is an ordered mapping of logical path to file.
//
// Iteration follows insertion order. Replacing an existing key keeps its
// original position. The zero value is not usable; call [NewManifest].
type Manifest struct {
	keys  []string
	files map[string]File
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{files: make(map[string]File)}
}

// ManifestOf builds a manifest from entries, in order.
func ManifestOf(entries ...Entry) *Manifest {
	m := NewManifest()
	for _, e := range entries {
		m.Set(e.Name, e.File)
	}
	return m
}

// Entry is a single manifest entry.
type Entry struct {
	Name string
	File File
}

// Set adds or replaces the file stored under name.
func (m *Manifest) Set(name string, f File) {
	if _, ok := m.files[name]; !ok {
		m.keys = append(m.keys, name)
	}
	m.files[name] = f
}

// Get returns the file stored under name.
func (m *Manifest) Get(name string) (File, bool) {
	f, ok := m.files[name]
	return f, ok
}

// Has reports whether name is present.
func (m *Manifest) Has(name string) bool {
	_, ok := m.files[name]
	return ok
}

// Delete removes name. Deleting a missing key is a no-op.
func (m *Manifest) Delete(name string) {
	if _, ok := m.files[name]; !ok {
		return
	}
	delete(m.files, name)
	for i, k := range m.keys {
		if k == name {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (m *Manifest) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order. The slice is a copy.
func (m *Manifest) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Entries returns the entries in insertion order.
func (m *Manifest) Entries() []Entry {
	out := make([]Entry, len(m.keys))
	for i, k := range m.keys {
		out[i] = Entry{Name: k, File: m.files[k]}
	}
	return out
}

// Clone returns a shallow copy; file values are shared.
func (m *Manifest) Clone() *Manifest {
	c := NewManifest()
	for _, k := range m.keys {
		c.Set(k, m.files[k])
	}
	return c
}

// Merge returns a new manifest with the entries of m followed by those of
// other. On a key collision the file from other wins and the key keeps its
// position from m.
func (m *Manifest) Merge(other *Manifest) *Manifest {
	out := m.Clone()
	for _, k := range other.keys {
		out.Set(k, other.files[k])
	}
	return out
}
