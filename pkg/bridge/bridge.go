// Package bridge supplies the runtime bridge files that are shipped in every
// lambda next to the user's code: the Node.js launcher, the php-cgi binary
// it drives, php.ini and the PHP extension modules.
package bridge

import (
	"context"
	"os"
	"path"

	"gopkg.in/yaml.v2"

	"github.com/sebas5384/now-php-extra/pkg/errors"
	"github.com/sebas5384/now-php-extra/pkg/files"
)

const (
	// CLIBinary is the PHP command-line binary. It is only needed to run
	// composer at build time and is left out of the lambda.
	CLIBinary = "native/php"

	// ConfigFile is the generated launcher configuration.
	ConfigFile = "bridge.yml"

	// UserDir is where the project's files live inside the lambda.
	UserDir = "user"
)

// Loader provides the bridge files for a build.
type Loader interface {
	Files(ctx context.Context, documentRoot string) (*files.Manifest, error)
}

// Config is the launcher configuration written to [ConfigFile].
type Config struct {
	// DocumentRoot is the directory php-cgi serves from, relative to the
	// lambda root.
	DocumentRoot string `yaml:"documentRoot"`
	// UserDir is the directory holding the project's files.
	UserDir string `yaml:"userDir"`
}

// NewConfig returns the launcher configuration for documentRoot.
func NewConfig(documentRoot string) Config {
	return Config{
		DocumentRoot: path.Join(UserDir, documentRoot),
		UserDir:      UserDir,
	}
}

// Marshal encodes c as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// ParseConfig decodes a launcher configuration.
func ParseConfig(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeConfig, err, "invalid %s", ConfigFile)
	}
	return c, nil
}

// DirLoader loads bridge files from an unpacked bridge distribution.
type DirLoader struct {
	Dir string
}

// Files returns every file under the bridge directory plus a generated
// [ConfigFile] for documentRoot. A ConfigFile shipped in the directory is
// replaced.
func (l DirLoader) Files(ctx context.Context, documentRoot string) (*files.Manifest, error) {
	info, err := os.Stat(l.Dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfig, err, "bridge directory %q", l.Dir)
	}
	if !info.IsDir() {
		return nil, errors.New(errors.ErrCodeConfig, "bridge path %q is not a directory", l.Dir)
	}

	m, err := files.Glob(ctx, files.MatchAll, l.Dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read bridge directory")
	}
	if err := addConfig(m, documentRoot); err != nil {
		return nil, err
	}
	return m, nil
}

// StaticLoader serves a fixed set of bridge files.
type StaticLoader struct {
	Manifest *files.Manifest
}

// Files returns a copy of the configured files plus a generated [ConfigFile].
func (l StaticLoader) Files(_ context.Context, documentRoot string) (*files.Manifest, error) {
	m := files.NewManifest()
	if l.Manifest != nil {
		m = l.Manifest.Clone()
	}
	if err := addConfig(m, documentRoot); err != nil {
		return nil, err
	}
	return m, nil
}

func addConfig(m *files.Manifest, documentRoot string) error {
	data, err := NewConfig(documentRoot).Marshal()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode %s", ConfigFile)
	}
	m.Set(ConfigFile, files.FileBlob{Data: data})
	return nil
}

// ExcludeCLI returns m without [CLIBinary].
func ExcludeCLI(m *files.Manifest) *files.Manifest {
	out := m.Clone()
	out.Delete(CLIBinary)
	return out
}
