// Package pipeline turns a PHP project into a deployable lambda plus a set
// of static assets.
//
// This package implements the complete install → classify → package
// pipeline shared by the CLI and the HTTP API, so both produce identical
// results for the same input.
//
// # Architecture
//
// A build runs these stages in order, each completing before the next:
//
//  1. Install: run composer when the project has a composer.json
//  2. Classify: pick the static assets and strip the document root from their paths
//  3. Rewrite: move every project file under user/
//  4. Merge: add the runtime bridge files, which win on collision
//  5. Package: zip everything into the lambda
//
// # Usage
//
//	runner := pipeline.NewRunner(
//	    pipeline.WithBridge(bridge.DirLoader{Dir: "/opt/php-bridge"}),
//	    pipeline.WithLogger(logger),
//	)
//	result, err := runner.Build(ctx, pipeline.Request{
//	    Files:      manifest,
//	    Entrypoint: "index.php",
//	    WorkPath:   workDir,
//	    Config:     pipeline.Config{DocumentRoot: "public"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	entry, fn := result.Lambda()
package pipeline

import (
	"time"

	"github.com/sebas5384/now-php-extra/pkg/composer"
	"github.com/sebas5384/now-php-extra/pkg/files"
	"github.com/sebas5384/now-php-extra/pkg/lambda"
	"github.com/sebas5384/now-php-extra/pkg/statics"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultComposerVersion is the composer release used to install dependencies.
	DefaultComposerVersion = composer.DefaultVersion

	// DefaultComposerJSON is the manifest whose presence triggers installation.
	DefaultComposerJSON = composer.DefaultManifestFile

	// DefaultDocumentRoot serves the project from its root directory.
	DefaultDocumentRoot = ""

	// DefaultEntrypoint is the entrypoint the CLI builds when none is given.
	DefaultEntrypoint = "index.php"

	// MaxLambdaSize is the largest lambda archive the platform accepts.
	MaxLambdaSize = "10mb"
)

// DefaultStaticRegexps returns the default static asset rules.
func DefaultStaticRegexps() []string {
	return statics.DefaultRules()
}

// =============================================================================
// Request & Result
// =============================================================================

// Request is the input of a build.
type Request struct {
	// Files is the project's file manifest.
	Files *files.Manifest

	// Entrypoint is the manifest key of the PHP file the lambda serves.
	Entrypoint string

	// WorkPath is a writable directory exclusive to this build. Files in the
	// result may reference it, so it must outlive the result.
	WorkPath string

	// Config overrides the default build configuration.
	Config Config
}

// Output is a single build output: either a static file or the lambda.
type Output struct {
	Static files.File
	Lambda *lambda.Lambda
}

// IsLambda reports whether o is the lambda.
func (o Output) IsLambda() bool { return o.Lambda != nil }

// Result maps output paths to outputs, in the order they were produced:
// static assets first, then the lambda.
type Result struct {
	keys    []string
	outputs map[string]Output

	// Config is the configuration the build ran with.
	Config Config

	// Stats contains timing and size information.
	Stats Stats
}

// Stats contains build statistics.
type Stats struct {
	Installed   bool // Whether composer ran
	FileCount   int  // Project files after install
	StaticCount int  // Static outputs
	LambdaFiles int  // Files packaged in the lambda
	InstallTime time.Duration
	Duration    time.Duration
}

func newResult() *Result {
	return &Result{outputs: make(map[string]Output)}
}

func (r *Result) set(key string, o Output) {
	if _, ok := r.outputs[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.outputs[key] = o
}

// Get returns the output stored under key.
func (r *Result) Get(key string) (Output, bool) {
	o, ok := r.outputs[key]
	return o, ok
}

// Keys returns the output paths in order.
func (r *Result) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Len returns the number of outputs.
func (r *Result) Len() int { return len(r.keys) }

// Lambda returns the lambda and the path it is served under.
func (r *Result) Lambda() (string, *lambda.Lambda) {
	for _, k := range r.keys {
		if o := r.outputs[k]; o.IsLambda() {
			return k, o.Lambda
		}
	}
	return "", nil
}

// Statics returns the static outputs as a manifest, in order.
func (r *Result) Statics() *files.Manifest {
	m := files.NewManifest()
	for _, k := range r.keys {
		if o := r.outputs[k]; !o.IsLambda() {
			m.Set(k, o.Static)
		}
	}
	return m
}

// Analysis is the outcome of a dry run: what a build would serve, without
// packaging anything.
type Analysis struct {
	// Files is the project manifest after installation.
	Files *files.Manifest
	// Statics are the static assets, keyed by their served path.
	Statics *files.Manifest
	// Entry is the path the lambda would be served under.
	Entry  string
	Config Config
}
