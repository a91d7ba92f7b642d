// Package lambda packages a file manifest into a deployable function
// archive.
//
// Archives are deterministic: entries are written in path order with a
// fixed timestamp, so the same files always produce the same bytes and the
// same [Lambda.Digest].
package lambda

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/sebas5384/now-php-extra/pkg/errors"
	"github.com/sebas5384/now-php-extra/pkg/files"
)

const (
	// DefaultHandler is the launcher's exported entry function.
	DefaultHandler = "launcher.launcher"

	// DefaultRuntime is the runtime the launcher targets.
	DefaultRuntime = "nodejs8.10"
)

// zipEpoch is the modification time stamped on every archive entry.
var zipEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Lambda is a packaged function.
type Lambda struct {
	Files   *files.Manifest
	Handler string
	Runtime string
	// Zip is the archive holding Files.
	Zip []byte
	// Digest is the xxhash64 of Zip, hex encoded.
	Digest string
}

// Size returns the archive size in bytes.
func (l *Lambda) Size() int64 { return int64(len(l.Zip)) }

// Options describes a lambda to create.
type Options struct {
	Files   *files.Manifest
	Handler string
	Runtime string
	// MaxSize caps the archive size in bytes. Zero means no limit.
	MaxSize int64
}

// Create zips opts.Files and returns the packaged lambda. An archive larger
// than opts.MaxSize is a LAMBDA_TOO_LARGE error.
func Create(ctx context.Context, opts Options) (*Lambda, error) {
	if opts.Files == nil {
		return nil, errors.New(errors.ErrCodeInvalidManifest, "lambda has no files")
	}
	if opts.Handler == "" {
		opts.Handler = DefaultHandler
	}
	if opts.Runtime == "" {
		opts.Runtime = DefaultRuntime
	}

	data, err := writeZip(ctx, opts.Files)
	if err != nil {
		return nil, err
	}
	if opts.MaxSize > 0 && int64(len(data)) > opts.MaxSize {
		return nil, errors.New(errors.ErrCodeLambdaTooLarge,
			"lambda is %s, larger than the %s limit", FormatSize(int64(len(data))), FormatSize(opts.MaxSize))
	}

	return &Lambda{
		Files:   opts.Files,
		Handler: opts.Handler,
		Runtime: opts.Runtime,
		Zip:     data,
		Digest:  Digest(data),
	}, nil
}

// Digest returns the hex xxhash64 of data.
func Digest(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

func writeZip(ctx context.Context, m *files.Manifest) ([]byte, error) {
	names := m.Keys()
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, _ := m.Get(name)
		if err := addFile(zw, name, f); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "add %s to lambda", name)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "finish lambda archive")
	}
	return buf.Bytes(), nil
}

func addFile(zw *zip.Writer, name string, f files.File) error {
	hdr := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: zipEpoch,
	}
	hdr.SetMode(f.Mode())

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(w, src)
	return err
}

var units = []struct {
	suffix string
	size   int64
}{
	{"gb", 1 << 30},
	{"mb", 1 << 20},
	{"kb", 1 << 10},
	{"b", 1},
}

// ParseSize parses a human size such as "10mb", "512 KB" or "2048".
// Units are binary multiples.
func ParseSize(s string) (int64, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	mult := int64(1)
	for _, u := range units {
		if strings.HasSuffix(v, u.suffix) {
			v = strings.TrimSpace(strings.TrimSuffix(v, u.suffix))
			mult = u.size
			break
		}
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || n < 0 {
		return 0, errors.New(errors.ErrCodeConfig, "invalid size %q", s)
	}
	return int64(n * float64(mult)), nil
}

// FormatSize renders n bytes in the largest whole unit, e.g. "10MB" or
// "1.5KB".
func FormatSize(n int64) string {
	for _, u := range units[:3] {
		if n >= u.size {
			v := strconv.FormatFloat(float64(n)/float64(u.size), 'f', 1, 64)
			return strings.TrimSuffix(v, ".0") + strings.ToUpper(u.suffix)
		}
	}
	return strconv.FormatInt(n, 10) + "B"
}
