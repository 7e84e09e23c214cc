package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger builds the CLI logger. Timestamps carry centiseconds since
// watch-mode passes often complete within the same second.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	opts := log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	}
	return log.NewWithOptions(w, opts)
}

// progress measures one operation from construction to done.
type progress struct {
	logger  *log.Logger
	started time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, started: time.Now()}
}

func (p *progress) elapsed() time.Duration {
	return time.Since(p.started).Round(time.Millisecond)
}

func (p *progress) done(msg string) {
	p.logger.Info(msg, "elapsed", p.elapsed().String())
}

type ctxKey struct{}

// withLogger attaches a logger to the context so subcommands and the
// watch loop share one configured instance.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// loggerFromContext returns the attached logger. A context without one
// gets log.Default, so callers never check for nil.
func loggerFromContext(ctx context.Context) *log.Logger {
	l, ok := ctx.Value(ctxKey{}).(*log.Logger)
	if !ok {
		return log.Default()
	}
	return l
}
