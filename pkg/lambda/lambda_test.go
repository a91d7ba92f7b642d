package lambda

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"os"
	"testing"

	"github.com/sebas5384/now-php-extra/pkg/errors"
	"github.com/sebas5384/now-php-extra/pkg/files"
)

func sample() *files.Manifest {
	return files.ManifestOf(
		files.Entry{Name: "user/index.php", File: files.FileBlob{Data: []byte("<?php echo 1;")}},
		files.Entry{Name: "launcher.js", File: files.FileBlob{Data: []byte("exports.launcher = () => {}")}},
		files.Entry{Name: "native/php-cgi", File: files.FileBlob{Data: []byte("ELF"), FileMode: 0o755}},
	)
}

func TestCreate(t *testing.T) {
	l, err := Create(context.Background(), Options{Files: sample()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if l.Handler != DefaultHandler || l.Runtime != DefaultRuntime {
		t.Errorf("handler/runtime = %q/%q", l.Handler, l.Runtime)
	}
	if l.Digest != Digest(l.Zip) || l.Size() != int64(len(l.Zip)) {
		t.Error("digest and size must describe the archive")
	}

	zr, err := zip.NewReader(bytes.NewReader(l.Zip), int64(len(l.Zip)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	var names []string
	modes := map[string]os.FileMode{}
	for _, f := range zr.File {
		names = append(names, f.Name)
		modes[f.Name] = f.Mode().Perm()
	}
	want := []string{"launcher.js", "native/php-cgi", "user/index.php"}
	if len(names) != len(want) {
		t.Fatalf("entries = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, names[i], want[i])
		}
	}
	if modes["native/php-cgi"] != 0o755 || modes["user/index.php"] != 0o644 {
		t.Errorf("modes = %v", modes)
	}

	rc, err := zr.File[2].Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "<?php echo 1;" {
		t.Errorf("content = %q", data)
	}
}

func TestCreate_Deterministic(t *testing.T) {
	a, err := Create(context.Background(), Options{Files: sample()})
	if err != nil {
		t.Fatal(err)
	}

	// Same files, different insertion order.
	m := files.NewManifest()
	entries := sample().Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		m.Set(entries[i].Name, entries[i].File)
	}
	b, err := Create(context.Background(), Options{Files: m})
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(a.Zip, b.Zip) || a.Digest != b.Digest {
		t.Error("archives of the same files should be identical")
	}
}

func TestCreate_TooLarge(t *testing.T) {
	noise := make([]byte, 64<<10)
	if _, err := rand.Read(noise); err != nil {
		t.Fatal(err)
	}
	m := files.ManifestOf(files.Entry{Name: "blob.bin", File: files.FileBlob{Data: noise}})

	_, err := Create(context.Background(), Options{Files: m, MaxSize: 32 << 10})
	if !errors.Is(err, errors.ErrCodeLambdaTooLarge) {
		t.Fatalf("err = %v, want LAMBDA_TOO_LARGE", err)
	}

	if _, err := Create(context.Background(), Options{Files: m, MaxSize: 1 << 20}); err != nil {
		t.Errorf("Create under limit: %v", err)
	}
}

func TestCreate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Create(ctx, Options{Files: sample()}); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"10mb", 10 << 20, false},
		{"10MB", 10 << 20, false},
		{"512 kb", 512 << 10, false},
		{"1gb", 1 << 30, false},
		{"1.5kb", 1536, false},
		{"2048", 2048, false},
		{"100b", 100, false},
		{"", 0, true},
		{"ten mb", 0, true},
		{"-1mb", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSize(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatSize(t *testing.T) {
	tests := map[int64]string{
		10 << 20: "10MB",
		1536:     "1.5KB",
		100:      "100B",
		3 << 30:  "3GB",
	}
	for in, want := range tests {
		if got := FormatSize(in); got != want {
			t.Errorf("FormatSize(%d) = %q, want %q", in, got, want)
		}
	}
}
