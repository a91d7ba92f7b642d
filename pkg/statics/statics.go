// Package statics decides which project files are served as static assets
// instead of being routed through the PHP lambda.
//
// Rules are strings. A rule written as a slash-delimited literal such as
// "/\.css$/i" is compiled from its body with the trailing flags applied;
// any other string is compiled as a regular expression verbatim.
package statics

import (
	"regexp"
	"strings"

	"github.com/sebas5384/now-php-extra/pkg/errors"
	"github.com/sebas5384/now-php-extra/pkg/files"
)

// literal matches the "/body/flags" form of a rule.
var literal = regexp.MustCompile(`^/(.*?)/([gim]*)$`)

// defaultRules are the asset extensions served statically when no rules
// are configured. The unescaped dot matches any character, as it always has.
var defaultRules = []string{
	`/.css$/`,
	`/.gif$/`,
	`/.ico$/`,
	`/.js$/`,
	`/.jpg$/`,
	`/.png$/`,
	`/.svg$/`,
	`/.woff$/`,
	`/.woff2$/`,
}

// DefaultRules returns a fresh copy of the default static rules.
func DefaultRules() []string {
	return append([]string(nil), defaultRules...)
}

// ParseRule compiles a single rule.
func ParseRule(s string) (*regexp.Regexp, error) {
	expr := s
	if m := literal.FindStringSubmatch(s); m != nil {
		expr = withFlags(m[1], m[2])
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfig, err, "invalid static rule %q", s)
	}
	return re, nil
}

func withFlags(body, flags string) string {
	var inline string
	if strings.ContainsRune(flags, 'i') {
		inline += "i"
	}
	if strings.ContainsRune(flags, 'm') {
		inline += "m"
	}
	// g only affects repeated matching, which a yes/no test never does.
	if inline == "" {
		return body
	}
	return "(?" + inline + ")" + body
}

// ParseRules compiles every rule, failing on the first invalid one.
func ParseRules(rules []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(rules))
	for _, r := range rules {
		re, err := ParseRule(r)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

// Classify returns the files of m matched by at least one rule, in m's
// order. m is not modified.
func Classify(m *files.Manifest, rules []string) (*files.Manifest, error) {
	static, _, err := Partition(m, rules)
	return static, err
}

// Partition splits m into the files matched by rules and the rest.
func Partition(m *files.Manifest, rules []string) (static, dynamic *files.Manifest, err error) {
	res, err := ParseRules(rules)
	if err != nil {
		return nil, nil, err
	}

	static, dynamic = files.NewManifest(), files.NewManifest()
	for _, e := range m.Entries() {
		if matchAny(res, e.Name) {
			static.Set(e.Name, e.File)
		} else {
			dynamic.Set(e.Name, e.File)
		}
	}
	return static, dynamic, nil
}

func matchAny(res []*regexp.Regexp, name string) bool {
	for _, re := range res {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
