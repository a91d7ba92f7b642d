package composer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/sebas5384/now-php-extra/pkg/errors"
	"github.com/sebas5384/now-php-extra/pkg/files"
	"github.com/sebas5384/now-php-extra/pkg/httputil"
	"github.com/sebas5384/now-php-extra/pkg/observability"
)

const (
	// DefaultVersion is the composer release downloaded when none is configured.
	DefaultVersion = "1.8.0"

	// DefaultManifestFile is the file whose presence triggers installation.
	DefaultManifestFile = "composer.json"

	// DefaultDownloadURL is the composer.phar URL template; %s is the version.
	DefaultDownloadURL = "https://getcomposer.org/download/%s/composer.phar"

	// Plugin is installed globally before the project dependencies to
	// download packages in parallel.
	Plugin = "hirak/prestissimo"
)

// Step names reported to install hooks.
const (
	StepDownloadFiles   = "download-files"
	StepFetchComposer   = "fetch-composer"
	StepInstallPlugin   = "install-plugin"
	StepInstallPackages = "install-packages"
	StepSaveFiles       = "save-files"
)

// Installer installs composer dependencies into a build work directory.
type Installer struct {
	version      string
	manifestFile string
	downloadURL  string
	fetcher      *httputil.Fetcher
	spawner      Spawner
	hooks        observability.InstallHooks
	scratchDir   string
	logger       *log.Logger
}

// Option configures an Installer.
type Option func(*Installer)

// WithVersion selects the composer release to download.
func WithVersion(v string) Option {
	return func(i *Installer) { i.version = v }
}

// WithManifestFile sets the composer.json path, relative to the project
// root, whose presence triggers installation.
func WithManifestFile(name string) Option {
	return func(i *Installer) { i.manifestFile = name }
}

// WithDownloadURL overrides the composer.phar URL template.
func WithDownloadURL(tmpl string) Option {
	return func(i *Installer) { i.downloadURL = tmpl }
}

// WithFetcher sets the fetcher used to download composer.
func WithFetcher(f *httputil.Fetcher) Option {
	return func(i *Installer) { i.fetcher = f }
}

// WithSpawner sets how PHP is run.
func WithSpawner(s Spawner) Option {
	return func(i *Installer) { i.spawner = s }
}

// WithHooks injects install step hooks.
func WithHooks(h observability.InstallHooks) Option {
	return func(i *Installer) { i.hooks = h }
}

// WithScratchDir sets the parent directory for the per-build scratch
// directory. Defaults to the system temp directory.
func WithScratchDir(dir string) Option {
	return func(i *Installer) { i.scratchDir = dir }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(i *Installer) { i.logger = l }
}

// NewInstaller creates an Installer with the default composer version and
// manifest file.
func NewInstaller(opts ...Option) *Installer {
	i := &Installer{
		version:      DefaultVersion,
		manifestFile: DefaultManifestFile,
		downloadURL:  DefaultDownloadURL,
		spawner:      ExecSpawner{},
		logger:       log.NewWithOptions(io.Discard, log.Options{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.hooks == nil {
		i.hooks = observability.Install()
	}
	if i.fetcher == nil {
		i.fetcher = httputil.NewFetcher(httputil.WithLogger(i.logger))
	}
	return i
}

// Install installs dependencies for the project in m and returns the
// manifest re-scanned from workDir.
//
// If m has no entry for the composer manifest file, m is returned as is and
// nothing is written or spawned. Any failure aborts the install; workDir may
// then hold a partial dependency tree and must be discarded.
func (i *Installer) Install(ctx context.Context, m *files.Manifest, entrypoint, workDir string) (*files.Manifest, error) {
	if !m.Has(i.manifestFile) {
		i.logger.Debug("No composer manifest, skipping install", "file", i.manifestFile)
		return m, nil
	}
	if err := errors.ValidatePath(i.manifestFile); err != nil {
		return nil, err
	}
	if err := errors.ValidateVersion(i.version); err != nil {
		return nil, err
	}

	i.logger.Info("Downloading files...")
	err := observability.Step(ctx, i.hooks, StepDownloadFiles, func() error {
		_, err := files.Download(ctx, m, entrypoint, workDir)
		return err
	})
	if err != nil {
		return nil, err
	}

	scratch, err := os.MkdirTemp(i.scratchDir, "now-php-composer-")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create scratch directory")
	}
	defer os.RemoveAll(scratch)

	var composerPath string
	err = observability.Step(ctx, i.hooks, StepFetchComposer, func() error {
		url := fmt.Sprintf(i.downloadURL, i.version)
		i.logger.Infof("Downloading Composer via url: %s", url)
		var err error
		composerPath, err = i.fetcher.Fetch(ctx, url, filepath.Join(scratch, "composer"), 0o755)
		return err
	})
	if err != nil {
		return nil, err
	}

	projectDir := filepath.Join(workDir, filepath.FromSlash(path.Dir(i.manifestFile)))
	i.logProject(projectDir)

	env := []string{"COMPOSER_HOME=" + filepath.Join(scratch, "home")}

	err = observability.Step(ctx, i.hooks, StepInstallPlugin, func() error {
		return i.run(ctx, projectDir, env, composerPath, "global", "require", Plugin, "--prefer-dist")
	})
	if err != nil {
		return nil, err
	}

	i.logger.Info("Installing Composer dependencies...")
	err = observability.Step(ctx, i.hooks, StepInstallPackages, func() error {
		return i.run(ctx, projectDir, env, composerPath, "install", "--no-dev", "--prefer-dist", "--optimize-autoloader")
	})
	if err != nil {
		return nil, err
	}

	var built *files.Manifest
	err = observability.Step(ctx, i.hooks, StepSaveFiles, func() error {
		i.logger.Info("Saving files...")
		var err error
		built, err = files.Glob(ctx, files.MatchAll, workDir)
		return err
	})
	if err != nil {
		return nil, err
	}
	return built, nil
}

func (i *Installer) run(ctx context.Context, dir string, env []string, args ...string) error {
	i.logger.Debug("Running composer", "dir", dir, "args", args[1:])
	if err := i.spawner.Spawn(ctx, args, dir, env); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrap(errors.ErrCodeInstall, err, "composer %s failed", args[1])
	}
	return nil
}

// logProject reports the packages composer is about to install. A missing
// or unreadable composer.json is left for composer itself to report.
func (i *Installer) logProject(dir string) {
	f, err := ReadFile(filepath.Join(dir, path.Base(i.manifestFile)))
	if err != nil {
		i.logger.Warn("Could not read composer manifest", "err", err)
		return
	}
	pkgs := f.Packages()
	i.logger.Info("Resolved composer project", "name", f.Name, "packages", len(pkgs))
	i.logger.Debug("Composer requirements", "packages", pkgs)
}
