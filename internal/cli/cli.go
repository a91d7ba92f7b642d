// Package cli implements the now-php command-line interface.
//
// This package provides commands for building PHP projects into a lambda
// plus static assets, serving the same build over HTTP, and managing the
// download cache. The CLI is built using cobra and supports verbose logging
// via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - build: Install composer dependencies and package a project
//   - serve: Run builds behind an HTTP API
//   - cache: Manage the composer download cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sebas5384/now-php-extra/pkg/bridge"
	"github.com/sebas5384/now-php-extra/pkg/cache"
	"github.com/sebas5384/now-php-extra/pkg/composer"
	"github.com/sebas5384/now-php-extra/pkg/errors"
	"github.com/sebas5384/now-php-extra/pkg/httputil"
	"github.com/sebas5384/now-php-extra/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "now-php"

	// bridgeDirEnv names the environment variable holding the default bridge directory.
	bridgeDirEnv = "NOW_PHP_BRIDGE_DIR"

	// downloadTTL is how long a downloaded composer.phar stays cached.
	downloadTTL = 7 * 24 * time.Hour

	// defaultFetchAttempts is how many times a composer download is tried
	// unless --fetch-attempts says otherwise. Download failures are fatal.
	defaultFetchAttempts = 1
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// =============================================================================
// Runner Factory
// =============================================================================

// runtimeFlags are the flags shared by build and serve that decide how
// builds run.
type runtimeFlags struct {
	bridgeDir string
	php       string
	cacheDir  string
	redisURL  string
	noCache   bool
	attempts  int
}

// newRunner creates a pipeline runner for CLI use. The returned cleanup
// releases the download cache.
func (c *CLI) newRunner(ctx context.Context, f runtimeFlags) (*pipeline.Runner, func(), error) {
	if f.attempts < 1 {
		return nil, nil, errors.New(errors.ErrCodeConfig, "--fetch-attempts must be at least 1, got %d", f.attempts)
	}
	dl, err := c.newCache(ctx, f)
	if err != nil {
		return nil, nil, err
	}

	fetcher := httputil.NewFetcher(
		httputil.WithCache(dl, downloadTTL),
		httputil.WithAttempts(f.attempts, time.Second),
		httputil.WithLogger(c.Logger),
	)
	spawner := composer.ExecSpawner{
		PHP:    phpBinary(f),
		Output: c.Logger.StandardLog(log.StandardLogOptions{ForceLevel: log.DebugLevel}).Writer(),
	}

	opts := []pipeline.RunnerOption{
		pipeline.WithLogger(c.Logger),
		pipeline.WithComposerOptions(
			composer.WithFetcher(fetcher),
			composer.WithSpawner(spawner),
			composer.WithHooks(newInstallLog(c.Logger)),
		),
	}
	if f.bridgeDir != "" {
		opts = append(opts, pipeline.WithBridge(bridge.DirLoader{Dir: f.bridgeDir}))
	}

	cleanup := func() {
		if err := dl.Close(); err != nil {
			c.Logger.Warn("Could not close download cache", "err", err)
		}
	}
	return pipeline.NewRunner(opts...), cleanup, nil
}

// newCache picks the download cache: Redis when a URL is given, otherwise
// the file cache, or none with --no-cache.
func (c *CLI) newCache(ctx context.Context, f runtimeFlags) (cache.Cache, error) {
	if f.noCache {
		return cache.NewNullCache(), nil
	}
	if f.redisURL != "" {
		return cache.NewRedisCache(ctx, f.redisURL, appName+":")
	}
	dir := f.cacheDir
	if dir == "" {
		var err error
		if dir, err = cacheDir(); err != nil {
			c.Logger.Warn("No cache directory, downloads will not be cached", "err", err)
			return cache.NewNullCache(), nil
		}
	}
	return cache.NewFileCache(dir)
}

// phpBinary returns the PHP interpreter used to run composer: --php if
// given, else the CLI binary shipped with the bridge, else php from PATH.
func phpBinary(f runtimeFlags) string {
	if f.php != "" {
		return f.php
	}
	if f.bridgeDir != "" {
		p := filepath.Join(f.bridgeDir, filepath.FromSlash(bridge.CLIBinary))
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/now-php/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
