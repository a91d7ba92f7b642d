package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sebas5384/now-php-extra/pkg/composer"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		logFunc func(*log.Logger)
		wantLog bool
	}{
		{"info at info level", log.InfoLevel, func(l *log.Logger) { l.Info("test") }, true},
		{"debug at info level", log.InfoLevel, func(l *log.Logger) { l.Debug("test") }, false},
		{"debug at debug level", log.DebugLevel, func(l *log.Logger) { l.Debug("test") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFunc(newLogger(&buf, tt.level))
			if got := buf.Len() > 0; got != tt.wantLog {
				t.Errorf("got log output = %v, want %v", got, tt.wantLog)
			}
		})
	}
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	prog := newProgress(newLogger(&buf, log.InfoLevel))
	time.Sleep(5 * time.Millisecond)
	prog.done("Built index.php")

	if !strings.Contains(buf.String(), "Built index.php (") {
		t.Errorf("progress output = %q", buf.String())
	}
}

func TestInstallLog(t *testing.T) {
	var buf bytes.Buffer
	h := newInstallLog(newLogger(&buf, log.InfoLevel))
	ctx := context.Background()

	h.OnStepStart(ctx, composer.StepInstallPlugin)
	h.OnStepComplete(ctx, composer.StepInstallPlugin, 1500*time.Millisecond, nil)
	h.OnStepComplete(ctx, composer.StepInstallPackages, 2*time.Second, nil)
	h.OnStepComplete(ctx, composer.StepFetchComposer, time.Second, nil)
	h.OnStepComplete(ctx, composer.StepSaveFiles, time.Second, errors.New("walk failed"))

	out := buf.String()
	for _, want := range []string{
		"🕑 Installed hirak/prestissimo in 1.5s",
		"🕑 Dependencies successfully installed in 2s",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Saved files") || strings.Contains(out, composer.StepFetchComposer) {
		t.Errorf("failed or unlabelled steps should stay at debug level:\n%s", out)
	}
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	custom := newLogger(&buf, log.InfoLevel)

	if got := loggerFromContext(withLogger(context.Background(), custom)); got != custom {
		t.Error("loggerFromContext should return the attached logger")
	}
	if loggerFromContext(context.Background()) == nil {
		t.Error("loggerFromContext should fall back to the default logger")
	}
}
