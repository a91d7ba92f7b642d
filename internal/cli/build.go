package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sebas5384/now-php-extra/pkg/errors"
	"github.com/sebas5384/now-php-extra/pkg/files"
	"github.com/sebas5384/now-php-extra/pkg/lambda"
	"github.com/sebas5384/now-php-extra/pkg/pipeline"
)

// lambdaManifest is the file written next to the lambda archive.
const lambdaManifest = "lambda.json"

// buildFlags holds the flags of the build command.
type buildFlags struct {
	runtimeFlags
	entrypoint string
	workPath   string
	out        string
	configFile string
	config     pipeline.Config
	dryRun     bool
}

// buildCommand creates the build command.
func (c *CLI) buildCommand() *cobra.Command {
	var f buildFlags

	cmd := &cobra.Command{
		Use:   "build [project-dir]",
		Short: "Build a PHP project into a lambda and static assets",
		Long: `Build a PHP project into a lambda and static assets.

When the project has a composer.json, composer is downloaded and the
dependencies are installed first. Files matching the static rules are copied
to the output directory with the document root stripped from their paths;
everything else is packaged with the runtime bridge into <entry>.zip, which is
described by lambda.json.

Configuration is read from --config (TOML) and overridden by flags.

A failed composer download aborts the build. Use --fetch-attempts to retry
server errors, rate limiting and network failures.`,
		Example: `  # Build the current directory
  now-php build --bridge-dir /opt/php-bridge

  # Serve from public/ and only treat stylesheets as static
  now-php build ./site --document-root public --static '/\.css$/i'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return c.runBuild(cmd.Context(), dir, f)
		},
	}

	cmd.Flags().StringVar(&f.entrypoint, "entrypoint", pipeline.DefaultEntrypoint, "PHP file served by the lambda, relative to the project")
	cmd.Flags().StringVar(&f.workPath, "work-path", "", "build directory (default: a temporary directory)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "dist", "output directory")
	cmd.Flags().StringVar(&f.configFile, "config", "", "TOML configuration file")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "install and classify, but do not package or write anything")

	cmd.Flags().StringVar(&f.config.ComposerVersion, "composer-version", "", "composer release to install with (default "+pipeline.DefaultComposerVersion+")")
	cmd.Flags().StringVar(&f.config.ComposerJSON, "composer-json", "", "path of composer.json in the project (default "+pipeline.DefaultComposerJSON+")")
	cmd.Flags().StringVar(&f.config.DocumentRoot, "document-root", "", "directory the project is served from ('/' for the project root)")
	cmd.Flags().StringArrayVar(&f.config.StaticRegexps, "static", nil, "static asset rule, e.g. '/\\.css$/i' (repeatable)")

	addRuntimeFlags(cmd, &f.runtimeFlags)
	return cmd
}

// addRuntimeFlags registers the flags shared by build and serve.
func addRuntimeFlags(cmd *cobra.Command, f *runtimeFlags) {
	cmd.Flags().StringVar(&f.bridgeDir, "bridge-dir", os.Getenv(bridgeDirEnv), "runtime bridge directory (env "+bridgeDirEnv+")")
	cmd.Flags().StringVar(&f.php, "php", "", "PHP interpreter used to run composer (default: the bridge's, else php from PATH)")
	cmd.Flags().StringVar(&f.cacheDir, "cache-dir", "", "download cache directory (default ~/.cache/now-php)")
	cmd.Flags().StringVar(&f.redisURL, "redis-url", "", "cache downloads in Redis instead of on disk")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable the download cache")
	cmd.Flags().IntVar(&f.attempts, "fetch-attempts", defaultFetchAttempts, "tries per composer download; 5xx, 429 and network errors are retried")
}

// runBuild builds the project in dir and writes the outputs.
func (c *CLI) runBuild(ctx context.Context, dir string, f buildFlags) error {
	prog := newProgress(c.Logger)
	if !f.dryRun && f.bridgeDir == "" {
		return errors.New(errors.ErrCodeConfig, "no runtime bridge: pass --bridge-dir or set %s", bridgeDirEnv)
	}

	cfg, err := resolveConfig(f.configFile, f.config)
	if err != nil {
		return err
	}

	m, err := c.scanProject(ctx, dir, f.out)
	if err != nil {
		return err
	}

	workPath := f.workPath
	if workPath == "" {
		tmp, err := os.MkdirTemp("", "now-php-build-")
		if err != nil {
			return fmt.Errorf("create work directory: %w", err)
		}
		defer os.RemoveAll(tmp)
		workPath = tmp
	}

	runner, cleanup, err := c.newRunner(ctx, f.runtimeFlags)
	if err != nil {
		return err
	}
	defer cleanup()

	req := pipeline.Request{
		Files:      m,
		Entrypoint: f.entrypoint,
		WorkPath:   workPath,
		Config:     cfg,
	}

	if f.dryRun {
		a, err := runner.Analyze(ctx, req)
		if err != nil {
			return err
		}
		printAnalysis(a)
		return nil
	}

	result, err := runner.Build(ctx, req)
	if err != nil {
		return err
	}
	entry, fn := result.Lambda()
	if err := writeOutputs(ctx, result, f.out); err != nil {
		return err
	}
	prog.done("Built " + entry)

	printBuild(result, entry, fn, f.out)
	return nil
}

// resolveConfig layers the config file, if any, and the flags over the
// defaults.
func resolveConfig(path string, flags pipeline.Config) (pipeline.Config, error) {
	var file pipeline.Config
	if path != "" {
		var err error
		if file, err = pipeline.LoadConfig(path); err != nil {
			return pipeline.Config{}, err
		}
	}
	return pipeline.ResolveConfig(file, flags)
}

// scanProject lists the project's files, leaving out the output directory
// when it lives inside the project.
func (c *CLI) scanProject(ctx context.Context, dir, out string) (*files.Manifest, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, errors.New(errors.ErrCodeInvalidInput, "project directory %q not found", dir)
	}

	m, err := files.Glob(ctx, files.MatchAll, dir)
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}

	if rel, ok := within(dir, out); ok {
		prefix := rel + "/"
		for _, k := range m.Keys() {
			if strings.HasPrefix(k, prefix) {
				m.Delete(k)
			}
		}
	}
	c.Logger.Debug("Scanned project", "dir", dir, "files", m.Len())
	return m, nil
}

// within reports whether p is inside dir, returning p relative to dir.
func within(dir, p string) (string, bool) {
	absDir, err1 := filepath.Abs(dir)
	absP, err2 := filepath.Abs(p)
	if err1 != nil || err2 != nil {
		return "", false
	}
	rel, err := filepath.Rel(absDir, absP)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// lambdaInfo describes a packaged lambda.
type lambdaInfo struct {
	Entry   string `json:"entry"`
	Archive string `json:"archive,omitempty"`
	Handler string `json:"handler"`
	Runtime string `json:"runtime"`
	Size    int64  `json:"size"`
	Digest  string `json:"digest"`
	Files   int    `json:"files"`
}

func newLambdaInfo(entry string, fn *lambda.Lambda) lambdaInfo {
	return lambdaInfo{
		Entry:   entry,
		Handler: fn.Handler,
		Runtime: fn.Runtime,
		Size:    fn.Size(),
		Digest:  fn.Digest,
		Files:   fn.Files.Len(),
	}
}

// writeOutputs writes the static files, the lambda archive and its
// description under out.
func writeOutputs(ctx context.Context, result *pipeline.Result, out string) error {
	if _, err := files.WriteAll(ctx, result.Statics(), out); err != nil {
		return fmt.Errorf("write static files: %w", err)
	}

	entry, fn := result.Lambda()
	archive := entry + ".zip"
	archivePath := filepath.Join(out, filepath.FromSlash(archive))
	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(archivePath, fn.Zip, 0o644); err != nil {
		return fmt.Errorf("write lambda: %w", err)
	}

	info := newLambdaInfo(entry, fn)
	info.Archive = archive
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(out, lambdaManifest), append(data, '\n'), 0o644)
}
