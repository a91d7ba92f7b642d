package files

import (
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

// Digest returns the hex xxhash64 of f's content.
func Digest(f File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
