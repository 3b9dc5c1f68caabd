package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/deploymenttheory/go-jffs2/internal/diagnostics"
)

// Context holds application-wide configuration and state
type Context struct {
	context.Context

	// Output preferences
	OutputFormat string
	Verbose      bool
	Quiet        bool

	// Logger receives structured progress and diagnostics
	Logger *slog.Logger

	// Common timeouts
	DefaultTimeout time.Duration

	// Progress reporting
	ProgressCallback func(message string, percent int)
}

// NewContext creates a new application context that discards log output
func NewContext() *Context {
	return &Context{
		Context:        context.Background(),
		Logger:         slog.New(slog.DiscardHandler),
		DefaultTimeout: 30 * time.Minute,
	}
}

// WithTimeout creates a context with timeout
func (c *Context) WithTimeout(timeout time.Duration) (*Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(c.Context, timeout)
	newCtx := *c
	newCtx.Context = ctx
	return &newCtx, cancel
}

// WithCancel creates a cancellable context
func (c *Context) WithCancel() (*Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(c.Context)
	newCtx := *c
	newCtx.Context = ctx
	return &newCtx, cancel
}

// SetProgress sets the progress callback function
func (c *Context) SetProgress(callback func(string, int)) {
	c.ProgressCallback = callback
}

// Progress reports progress if callback is set
func (c *Context) Progress(message string, percent int) {
	if c.ProgressCallback != nil {
		c.ProgressCallback(message, percent)
	}
}

// Log records a debug message, shown with --verbose
func (c *Context) Log(message string, args ...any) {
	c.logger().Debug(message, args...)
}

// Error records an error message unless quiet
func (c *Context) Error(message string, args ...any) {
	if !c.Quiet {
		c.logger().Error(message, args...)
	}
}

// DiagnosticHook logs every diagnostic at WARN
func (c *Context) DiagnosticHook() diagnostics.Hook {
	logger := c.logger()
	return func(d diagnostics.Diagnostic) {
		attrs := []any{"kind", string(d.Kind), "message", d.Message}
		if d.Offset >= 0 {
			attrs = append(attrs, "offset", d.Offset)
		}
		if d.Ino != 0 {
			attrs = append(attrs, "ino", d.Ino)
		}
		logger.Warn("diagnostic", attrs...)
	}
}

func (c *Context) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

// NewLogger creates the command logger. On a terminal stderr gets
// slog.TextHandler output, otherwise slog.JSONHandler output for pipelines.
func NewLogger(level slog.Level) *slog.Logger {
	return newLogger(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), level)
}

func newLogger(w io.Writer, terminal bool, level slog.Level) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	if terminal {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}

// LogLevel resolves the effective level. --verbose and --quiet override the
// configured level name.
func LogLevel(configured string, verbose, quiet bool) (slog.Level, error) {
	switch {
	case verbose:
		return slog.LevelDebug, nil
	case quiet:
		return slog.LevelError, nil
	}
	var level slog.Level
	if configured == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(configured)); err != nil {
		return 0, NewError(ErrCodeInvalidInput, "invalid log level", err)
	}
	return level, nil
}
