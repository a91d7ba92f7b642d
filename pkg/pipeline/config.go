package pipeline

import (
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/sebas5384/now-php-extra/pkg/errors"
	"github.com/sebas5384/now-php-extra/pkg/statics"
)

// Config is the build configuration.
//
// The zero value of every field means "not set"; [ResolveConfig] fills in
// defaults. StaticRegexps is unset only when nil, so an explicit empty list
// disables static assets. An empty DocumentRoot leaves an earlier layer's
// value in place; "/" overrides it with the project root.
type Config struct {
	ComposerVersion string   `json:"composerVersion,omitempty" toml:"composerVersion"`
	ComposerJSON    string   `json:"composerJson,omitempty" toml:"composerJson"`
	DocumentRoot    string   `json:"documentRoot,omitempty" toml:"documentRoot"`
	StaticRegexps   []string `json:"staticRegexps,omitempty" toml:"staticRegexps"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		ComposerVersion: DefaultComposerVersion,
		ComposerJSON:    DefaultComposerJSON,
		DocumentRoot:    DefaultDocumentRoot,
		StaticRegexps:   DefaultStaticRegexps(),
	}
}

// Merge returns c with every field set in o replacing c's.
func (c Config) Merge(o Config) Config {
	if o.ComposerVersion != "" {
		c.ComposerVersion = o.ComposerVersion
	}
	if o.ComposerJSON != "" {
		c.ComposerJSON = o.ComposerJSON
	}
	if o.DocumentRoot != "" {
		c.DocumentRoot = o.DocumentRoot
	}
	if o.StaticRegexps != nil {
		c.StaticRegexps = append([]string(nil), o.StaticRegexps...)
	}
	return c
}

// ResolveConfig layers overrides over the defaults, later layers winning,
// and validates the result. Invalid values are CONFIG_ERROR.
func ResolveConfig(layers ...Config) (Config, error) {
	c := DefaultConfig()
	for _, l := range layers {
		c = c.Merge(l)
	}
	c.DocumentRoot = strings.Trim(c.DocumentRoot, "/")

	if err := errors.ValidateVersion(c.ComposerVersion); err != nil {
		return Config{}, err
	}
	if err := errors.ValidatePath(c.ComposerJSON); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeConfig, err, "invalid composerJson")
	}
	if c.DocumentRoot != "" {
		if err := errors.ValidatePath(c.DocumentRoot); err != nil {
			return Config{}, errors.Wrap(errors.ErrCodeConfig, err, "invalid documentRoot")
		}
	}
	if _, err := statics.ParseRules(c.StaticRegexps); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadConfig reads a TOML configuration file. Unknown keys are a
// CONFIG_ERROR.
func LoadConfig(path string) (Config, error) {
	var c Config
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeConfig, err, "read config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.New(errors.ErrCodeConfig, "unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return c, nil
}
