package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sebas5384/now-php-extra/pkg/bridge"
	"github.com/sebas5384/now-php-extra/pkg/composer"
	"github.com/sebas5384/now-php-extra/pkg/errors"
	"github.com/sebas5384/now-php-extra/pkg/files"
	"github.com/sebas5384/now-php-extra/pkg/lambda"
	"github.com/sebas5384/now-php-extra/pkg/observability"
	"github.com/sebas5384/now-php-extra/pkg/statics"
)

// Runner executes builds.
//
// The Runner keeps no per-build state. Multiple goroutines can safely use
// the same Runner as long as each build has its own WorkPath.
type Runner struct {
	bridge   bridge.Loader
	composer []composer.Option
	hooks    observability.PipelineHooks
	maxSize  int64
	logger   *log.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithBridge sets where the runtime bridge files come from.
func WithBridge(l bridge.Loader) RunnerOption {
	return func(r *Runner) { r.bridge = l }
}

// WithComposerOptions passes options to every installer the runner creates.
// The composer version and manifest file always come from the build Config.
func WithComposerOptions(opts ...composer.Option) RunnerOption {
	return func(r *Runner) { r.composer = append(r.composer, opts...) }
}

// WithHooks sets the build hooks. Defaults to [observability.Pipeline].
func WithHooks(h observability.PipelineHooks) RunnerOption {
	return func(r *Runner) { r.hooks = h }
}

// WithMaxLambdaSize caps the lambda archive size in bytes; 0 disables the check.
func WithMaxLambdaSize(n int64) RunnerOption {
	return func(r *Runner) { r.maxSize = n }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a runner. The lambda size limit defaults to
// [MaxLambdaSize].
func NewRunner(opts ...RunnerOption) *Runner {
	limit, _ := lambda.ParseSize(MaxLambdaSize)
	r := &Runner{
		maxSize: limit,
		logger:  log.NewWithOptions(io.Discard, log.Options{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.hooks == nil {
		r.hooks = observability.Pipeline()
	}
	return r
}

// Build runs the full pipeline. Any failing stage aborts the build and its
// error is returned with the cause chain intact.
func (r *Runner) Build(ctx context.Context, req Request) (result *Result, err error) {
	start := time.Now()
	fileCount := 0
	if req.Files != nil {
		fileCount = req.Files.Len()
	}
	r.hooks.OnBuildStart(ctx, req.Entrypoint, fileCount)
	defer func() {
		n := 0
		if result != nil {
			n = result.Len()
		}
		r.hooks.OnBuildComplete(ctx, req.Entrypoint, n, time.Since(start), err)
	}()

	if r.bridge == nil {
		return nil, errors.New(errors.ErrCodeConfig, "no runtime bridge configured")
	}

	a, err := r.analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	cfg := a.Config

	// Stage 3: Rewrite
	userFiles, err := files.Prefix(a.Files, bridge.UserDir)
	if err != nil {
		return nil, err
	}

	// Stage 4: Merge
	bridgeFiles, err := r.bridge.Files(ctx, cfg.DocumentRoot)
	if err != nil {
		return nil, err
	}
	merged := userFiles.Merge(bridge.ExcludeCLI(bridgeFiles))
	r.logger.Debug("merged runtime bridge", "bridge_files", bridgeFiles.Len(), "total", merged.Len())

	// Stage 5: Package
	fn, err := lambda.Create(ctx, lambda.Options{
		Files:   merged,
		Handler: lambda.DefaultHandler,
		Runtime: lambda.DefaultRuntime,
		MaxSize: r.maxSize,
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("created lambda",
		"entry", a.Entry,
		"files", merged.Len(),
		"size", lambda.FormatSize(fn.Size()))

	result = newResult()
	result.Config = cfg
	for _, e := range a.Statics.Entries() {
		result.set(e.Name, Output{Static: e.File})
	}
	result.set(a.Entry, Output{Lambda: fn})

	result.Stats = a.stats
	result.Stats.StaticCount = a.Statics.Len()
	result.Stats.LambdaFiles = merged.Len()
	result.Stats.Duration = time.Since(start)
	return result, nil
}

// Analyze installs dependencies and classifies static assets without
// packaging anything.
func (r *Runner) Analyze(ctx context.Context, req Request) (*Analysis, error) {
	a, err := r.analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	return &a.Analysis, nil
}

type analysis struct {
	Analysis
	stats Stats
}

func (r *Runner) analyze(ctx context.Context, req Request) (*analysis, error) {
	if req.Files == nil {
		return nil, errors.New(errors.ErrCodeInvalidManifest, "no files to build")
	}
	if req.Entrypoint == "" {
		return nil, errors.New(errors.ErrCodeMissingEntrypoint, "no entrypoint given")
	}
	if req.WorkPath == "" {
		return nil, errors.New(errors.ErrCodeConfig, "no work path given")
	}
	if err := files.Validate(req.Files); err != nil {
		return nil, err
	}
	if err := errors.ValidatePath(req.Entrypoint); err != nil {
		return nil, err
	}
	cfg, err := ResolveConfig(req.Config)
	if err != nil {
		return nil, err
	}

	// Stage 1: Install
	opts := []composer.Option{composer.WithLogger(r.logger)}
	opts = append(opts, r.composer...)
	opts = append(opts,
		composer.WithVersion(cfg.ComposerVersion),
		composer.WithManifestFile(cfg.ComposerJSON),
	)
	installer := composer.NewInstaller(opts...)
	installStart := time.Now()
	built, err := installer.Install(ctx, req.Files, req.Entrypoint, req.WorkPath)
	if err != nil {
		return nil, err
	}
	a := &analysis{}
	a.stats.Installed = req.Files.Has(cfg.ComposerJSON)
	if a.stats.Installed {
		a.stats.InstallTime = time.Since(installStart)
	}
	a.stats.FileCount = built.Len()

	// Stage 2: Classify
	static, err := statics.Classify(built, cfg.StaticRegexps)
	if err != nil {
		return nil, err
	}
	static, err = files.Rename(static, func(name string) string {
		return files.StripRoot(name, cfg.DocumentRoot)
	})
	if err != nil {
		return nil, err
	}
	r.logger.Debug("classified static assets", "count", static.Len())

	a.Analysis = Analysis{
		Files:   built,
		Statics: static,
		Entry:   files.StripRoot(req.Entrypoint, cfg.DocumentRoot),
		Config:  cfg,
	}
	return a, nil
}
