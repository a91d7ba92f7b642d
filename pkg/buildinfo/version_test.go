package buildinfo

import (
	"strings"
	"testing"
)

func TestUserAgent(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })

	Version = "v1.2.3"
	if got := UserAgent(); got != "now-php/v1.2.3" {
		t.Errorf("UserAgent() = %q", got)
	}
	if !strings.Contains(Template(), "v1.2.3") {
		t.Errorf("Template() = %q, should contain the version", Template())
	}
}
