package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sebas5384/now-php-extra/pkg/composer"
)

// newLogger creates a new logger with timestamp formatting.
// The logger writes to w and filters messages at the specified level.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
// It is safe for sequential use by a single goroutine; concurrent calls to done will race.
type progress struct {
	logger *log.Logger
	start  time.Time
}

// newProgress creates a progress tracker that captures the current time as start.
func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Built index.php (1.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

// stepTimers maps install steps to the label their duration is logged under.
// Steps without a label are logged at debug level only.
var stepTimers = map[string]string{
	composer.StepInstallPlugin:   "🕑 Installed " + composer.Plugin + " in",
	composer.StepInstallPackages: "🕑 Dependencies successfully installed in",
	composer.StepSaveFiles:       "🕑 Saved files in",
}

// installLog reports composer install step timings.
type installLog struct {
	logger *log.Logger
}

func newInstallLog(l *log.Logger) *installLog {
	return &installLog{logger: l}
}

func (h *installLog) OnStepStart(_ context.Context, step string) {
	h.logger.Debug("Install step started", "step", step)
}

func (h *installLog) OnStepComplete(_ context.Context, step string, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("Install step failed", "step", step, "duration", d, "err", err)
		return
	}
	d = d.Round(time.Millisecond)
	if label, ok := stepTimers[step]; ok {
		h.logger.Infof("%s %s", label, d)
		return
	}
	h.logger.Debug("Install step finished", "step", step, "duration", d)
}

// ctxKey is the type for context keys used in this package.
// Using a distinct type prevents collisions with other packages.
type ctxKey int

// loggerKey is the context key for storing a logger.
const loggerKey ctxKey = 0

// withLogger returns a new context with the given logger attached.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx.
// If no logger is attached, it returns log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
