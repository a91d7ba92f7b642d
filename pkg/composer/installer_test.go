package composer

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/sebas5384/now-php-extra/pkg/errors"
	"github.com/sebas5384/now-php-extra/pkg/files"
	"github.com/sebas5384/now-php-extra/pkg/httputil"
)

// fakeSpawner records invocations and simulates `composer install` by
// writing a vendor tree into the working directory.
type fakeSpawner struct {
	calls  [][]string
	dirs   []string
	failOn string
}

func (f *fakeSpawner) Spawn(_ context.Context, args []string, dir string, _ []string) error {
	f.calls = append(f.calls, args)
	f.dirs = append(f.dirs, dir)
	if len(args) > 1 && args[1] == f.failOn {
		return &ExitError{Err: stderrors.New("exit status 1"), Output: "boom"}
	}
	if len(args) > 1 && args[1] == "install" {
		vendor := filepath.Join(dir, "vendor", "composer")
		if err := os.MkdirAll(vendor, 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, "vendor", "autoload.php"), []byte("<?php"), 0o644); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(vendor, "installed.json"), []byte("[]"), 0o644)
	}
	return nil
}

type recordingHooks struct {
	steps []string
}

func (r *recordingHooks) OnStepStart(context.Context, string) {}
func (r *recordingHooks) OnStepComplete(_ context.Context, step string, _ time.Duration, _ error) {
	r.steps = append(r.steps, step)
}

func composerServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte("<?php // composer"))
	}))
	t.Cleanup(srv.Close)
	return srv, &paths
}

func project() *files.Manifest {
	return files.ManifestOf(
		files.Entry{Name: "composer.json", File: files.FileBlob{Data: []byte(`{"require":{"slim/slim":"^3"}}`)}},
		files.Entry{Name: "index.php", File: files.FileBlob{Data: []byte("<?php require 'vendor/autoload.php';")}},
	)
}

func TestInstall_NoComposerJSON(t *testing.T) {
	sp := &fakeSpawner{}
	inst := NewInstaller(WithSpawner(sp))
	m := files.ManifestOf(files.Entry{Name: "index.php", File: files.FileBlob{}})
	workDir := t.TempDir()

	got, err := inst.Install(context.Background(), m, "index.php", workDir)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if got != m {
		t.Error("Install should return the input manifest unchanged")
	}
	if len(sp.calls) != 0 {
		t.Errorf("spawner called %d times, want 0", len(sp.calls))
	}
	entries, _ := os.ReadDir(workDir)
	if len(entries) != 0 {
		t.Errorf("work dir should be untouched, has %d entries", len(entries))
	}
}

func TestInstall(t *testing.T) {
	srv, paths := composerServer(t)
	sp := &fakeSpawner{}
	hooks := &recordingHooks{}
	scratchRoot := t.TempDir()
	inst := NewInstaller(
		WithSpawner(sp),
		WithHooks(hooks),
		WithVersion("1.9.1"),
		WithDownloadURL(srv.URL+"/download/%s/composer.phar"),
		WithScratchDir(scratchRoot),
	)
	workDir := t.TempDir()

	got, err := inst.Install(context.Background(), project(), "index.php", workDir)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}

	want := []string{"composer.json", "index.php", "vendor/autoload.php", "vendor/composer/installed.json"}
	if !reflect.DeepEqual(got.Keys(), want) {
		t.Errorf("Keys() = %v, want %v", got.Keys(), want)
	}

	if !reflect.DeepEqual(*paths, []string{"/download/1.9.1/composer.phar"}) {
		t.Errorf("downloaded %v", *paths)
	}

	if len(sp.calls) != 2 {
		t.Fatalf("spawner called %d times, want 2", len(sp.calls))
	}
	if got := sp.calls[0][1:]; !reflect.DeepEqual(got, []string{"global", "require", Plugin, "--prefer-dist"}) {
		t.Errorf("first call = %v", got)
	}
	if got := sp.calls[1][1:]; !reflect.DeepEqual(got, []string{"install", "--no-dev", "--prefer-dist", "--optimize-autoloader"}) {
		t.Errorf("second call = %v", got)
	}
	if filepath.Base(sp.calls[0][0]) != "composer" {
		t.Errorf("composer path = %q", sp.calls[0][0])
	}
	if !strings.HasPrefix(sp.calls[0][0], scratchRoot+string(filepath.Separator)) {
		t.Errorf("composer path %q not under scratch dir %q", sp.calls[0][0], scratchRoot)
	}
	for _, d := range sp.dirs {
		if d != workDir {
			t.Errorf("spawn dir = %q, want %q", d, workDir)
		}
	}

	wantSteps := []string{StepDownloadFiles, StepFetchComposer, StepInstallPlugin, StepInstallPackages, StepSaveFiles}
	if !reflect.DeepEqual(hooks.steps, wantSteps) {
		t.Errorf("steps = %v, want %v", hooks.steps, wantSteps)
	}

	if _, err := os.Stat(sp.calls[0][0]); !os.IsNotExist(err) {
		t.Error("scratch composer binary should be removed after install")
	}
	if left, _ := os.ReadDir(scratchRoot); len(left) != 0 {
		t.Errorf("scratch dir not cleaned up: %d entries left", len(left))
	}
}

func TestInstall_NestedManifest(t *testing.T) {
	srv, _ := composerServer(t)
	sp := &fakeSpawner{}
	inst := NewInstaller(
		WithSpawner(sp),
		WithManifestFile("api/composer.json"),
		WithDownloadURL(srv.URL+"/%s/composer.phar"),
	)
	m := files.ManifestOf(
		files.Entry{Name: "api/composer.json", File: files.FileBlob{Data: []byte("{}")}},
		files.Entry{Name: "api/index.php", File: files.FileBlob{}},
	)
	workDir := t.TempDir()

	got, err := inst.Install(context.Background(), m, "api/index.php", workDir)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if want := filepath.Join(workDir, "api"); sp.dirs[0] != want {
		t.Errorf("spawn dir = %q, want %q", sp.dirs[0], want)
	}
	if !got.Has("api/vendor/autoload.php") {
		t.Errorf("vendor files missing: %v", got.Keys())
	}
}

func TestInstall_SpawnFailure(t *testing.T) {
	srv, _ := composerServer(t)
	sp := &fakeSpawner{failOn: "install"}
	inst := NewInstaller(WithSpawner(sp), WithDownloadURL(srv.URL+"/%s"))

	_, err := inst.Install(context.Background(), project(), "index.php", t.TempDir())
	if !errors.Is(err, errors.ErrCodeInstall) {
		t.Fatalf("err = %v, want INSTALL_ERROR", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error should carry subprocess output: %v", err)
	}
}

func TestInstall_PluginFailureAborts(t *testing.T) {
	srv, _ := composerServer(t)
	sp := &fakeSpawner{failOn: "global"}
	inst := NewInstaller(WithSpawner(sp), WithDownloadURL(srv.URL+"/%s"))

	_, err := inst.Install(context.Background(), project(), "index.php", t.TempDir())
	if !errors.Is(err, errors.ErrCodeInstall) {
		t.Fatalf("err = %v, want INSTALL_ERROR", err)
	}
	if len(sp.calls) != 1 {
		t.Errorf("spawner called %d times, want 1", len(sp.calls))
	}
}

func TestInstall_DownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	sp := &fakeSpawner{}
	inst := NewInstaller(WithSpawner(sp), WithDownloadURL(srv.URL+"/%s"))

	_, err := inst.Install(context.Background(), project(), "index.php", t.TempDir())
	if !errors.Is(err, errors.ErrCodeHTTPStatus) {
		t.Fatalf("err = %v, want HTTP_STATUS", err)
	}
	var se *httputil.StatusError
	if !stderrors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Errorf("err should wrap a 404 StatusError: %v", err)
	}
	if len(sp.calls) != 0 {
		t.Error("composer must not run after a failed download")
	}
}

func TestInstall_MissingEntrypoint(t *testing.T) {
	inst := NewInstaller(WithSpawner(&fakeSpawner{}))
	_, err := inst.Install(context.Background(), project(), "main.php", t.TempDir())
	if !errors.Is(err, errors.ErrCodeMissingEntrypoint) {
		t.Fatalf("err = %v, want MISSING_ENTRYPOINT", err)
	}
}

func TestInstall_InvalidVersion(t *testing.T) {
	inst := NewInstaller(WithSpawner(&fakeSpawner{}), WithVersion("../../x"))
	_, err := inst.Install(context.Background(), project(), "index.php", t.TempDir())
	if !errors.Is(err, errors.ErrCodeConfig) {
		t.Fatalf("err = %v, want CONFIG_ERROR", err)
	}
}
