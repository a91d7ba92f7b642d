package pipeline

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/sebas5384/now-php-extra/pkg/errors"
)

func TestResolveConfig_Defaults(t *testing.T) {
	c, err := ResolveConfig()
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	if c.ComposerVersion != "1.8.0" || c.ComposerJSON != "composer.json" || c.DocumentRoot != "" {
		t.Errorf("defaults = %+v", c)
	}
	if !reflect.DeepEqual(c.StaticRegexps, DefaultStaticRegexps()) {
		t.Errorf("StaticRegexps = %v", c.StaticRegexps)
	}
}

func TestResolveConfig_Layers(t *testing.T) {
	file := Config{ComposerVersion: "1.9.0", DocumentRoot: "public"}
	flags := Config{DocumentRoot: "/web/", StaticRegexps: []string{}}

	c, err := ResolveConfig(file, flags)
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	if c.ComposerVersion != "1.9.0" {
		t.Errorf("ComposerVersion = %q, want 1.9.0", c.ComposerVersion)
	}
	if c.DocumentRoot != "web" {
		t.Errorf("DocumentRoot = %q, want web", c.DocumentRoot)
	}
	if c.StaticRegexps == nil || len(c.StaticRegexps) != 0 {
		t.Errorf("explicit empty rules should disable statics, got %v", c.StaticRegexps)
	}
}

func TestResolveConfig_DocumentRootOverride(t *testing.T) {
	file := Config{DocumentRoot: "public"}

	tests := []struct {
		name  string
		flags Config
		want  string
	}{
		{"unset keeps file value", Config{}, "public"},
		{"slash resets to project root", Config{DocumentRoot: "/"}, ""},
		{"other root wins", Config{DocumentRoot: "web"}, "web"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ResolveConfig(file, tt.flags)
			if err != nil {
				t.Fatalf("ResolveConfig: %v", err)
			}
			if c.DocumentRoot != tt.want {
				t.Errorf("DocumentRoot = %q, want %q", c.DocumentRoot, tt.want)
			}
		})
	}
}

func TestResolveConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"bad rule", Config{StaticRegexps: []string{"/(/"}}},
		{"bad version", Config{ComposerVersion: "1.8.0; rm -rf"}},
		{"traversal composerJson", Config{ComposerJSON: "../composer.json"}},
		{"traversal documentRoot", Config{DocumentRoot: "a/../.."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveConfig(tt.cfg)
			if !errors.Is(err, errors.ErrCodeConfig) {
				t.Errorf("err = %v, want CONFIG_ERROR", err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "now-php.toml")
	data := `composerVersion = "1.10.0"
documentRoot = "public"
staticRegexps = ["/\\.css$/i"]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := Config{ComposerVersion: "1.10.0", DocumentRoot: "public", StaticRegexps: []string{`/\.css$/i`}}
	if !reflect.DeepEqual(c, want) {
		t.Errorf("LoadConfig = %+v, want %+v", c, want)
	}
}

func TestLoadConfig_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "now-php.toml")
	if err := os.WriteFile(path, []byte(`documentroot = "public"`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); !errors.Is(err, errors.ErrCodeConfig) {
		t.Errorf("err = %v, want CONFIG_ERROR", err)
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); !errors.Is(err, errors.ErrCodeConfig) {
		t.Errorf("err = %v, want CONFIG_ERROR", err)
	}
}
