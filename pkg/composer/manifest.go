package composer

import (
	"encoding/json"
	"os"
	"slices"
	"strings"

	"github.com/sebas5384/now-php-extra/pkg/errors"
)

// File is the subset of composer.json the installer reads.
type File struct {
	Name       string            `json:"name"`
	Version    string            `json:"version"`
	Require    map[string]string `json:"require"`
	RequireDev map[string]string `json:"require-dev"`
}

// ReadFile parses the composer.json at path.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "invalid %s", path)
	}
	return &f, nil
}

// Packages returns the sorted production requirements, skipping platform
// requirements such as php and ext-*. Dev requirements are excluded
// because the installer runs with --no-dev.
func (f *File) Packages() []string {
	var pkgs []string
	for name := range f.Require {
		if isPlatformRequirement(name) {
			continue
		}
		pkgs = append(pkgs, name)
	}
	slices.Sort(pkgs)
	return pkgs
}

func isPlatformRequirement(name string) bool {
	return name == "php" || strings.HasPrefix(name, "php-") || strings.HasPrefix(name, "ext-") || strings.HasPrefix(name, "lib-")
}
