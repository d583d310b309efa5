// Package log is the process-wide logging façade. Every other package
// gets its own *Logger via New(pkg) at init time; loggers start disabled
// (zerolog.Nop) and are switched on by Enable/EnableAll once the process
// knows which packages it wants verbose output from.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/ddrive-io/ddrive/pkg/reqid"
)

func init() {
	zerolog.CallerSkipFrameCount = 3
}

var pkgs = []string{}
var enabledLoggers = map[string]*zerolog.Logger{}

// Out is the log output writer.
var Out io.Writer = os.Stderr

// Mode "dev" prints console format, anything else prints JSON.
var Mode = "dev"

// Logger is a per-package logging handle.
type Logger struct {
	pkg string
}

// ListRegisteredPackages returns every package name a Logger was created
// for.
func ListRegisteredPackages() []string {
	return pkgs
}

// ListEnabledPackages returns the package names with logging enabled.
func ListEnabledPackages() []string {
	out := []string{}
	for k := range enabledLoggers {
		out = append(out, k)
	}
	return out
}

// EnableAll enables every registered package's logger.
func EnableAll() error {
	for _, v := range pkgs {
		if err := Enable(v); err != nil {
			return err
		}
	}
	return nil
}

// Enable turns on logging for pkg.
func Enable(pkg string) error {
	enabledLoggers[pkg] = create(pkg)
	return nil
}

// Disable turns off logging for pkg.
func Disable(pkg string) {
	nop := zerolog.Nop()
	enabledLoggers[pkg] = &nop
}

func create(pkg string) *zerolog.Logger {
	pid := os.Getpid()
	zl := newZerolog(pkg, pid)
	l := zl.With().Str("pkg", pkg).Int("pid", pid).Logger()
	return &l
}

// New registers and returns a Logger for pkg. The logger is a no-op until
// Enable(pkg) or EnableAll is called.
func New(pkg string) *Logger {
	pkgs = append(pkgs, pkg)
	nop := zerolog.Nop()
	enabledLoggers[pkg] = &nop
	return &Logger{pkg: pkg}
}

func find(pkg string) *zerolog.Logger {
	return enabledLoggers[pkg]
}

// Println logs args at info level.
func (l *Logger) Println(ctx context.Context, args ...interface{}) {
	find(l.pkg).Info().Str("trace", trace(ctx)).Msg(fmt.Sprint(args...))
}

// Printf logs a formatted message at info level.
func (l *Logger) Printf(ctx context.Context, format string, args ...interface{}) {
	find(l.pkg).Info().Str("trace", trace(ctx)).Msg(fmt.Sprintf(format, args...))
}

// Error logs err at error level.
func (l *Logger) Error(ctx context.Context, err error) {
	find(l.pkg).Error().Str("trace", trace(ctx)).Msg(err.Error())
}

// Panic logs reason and a stack trace at error level, without panicking.
func (l *Logger) Panic(ctx context.Context, reason string) {
	msg := reason + "\n" + string(debug.Stack())
	find(l.pkg).Error().Str("trace", trace(ctx)).Bool("panic", true).Msg(msg)
}

// Zerolog returns the underlying *zerolog.Logger, for callers that need
// the structured-field builder directly (e.g. the HTTP access layer).
func (l *Logger) Zerolog() *zerolog.Logger {
	return find(l.pkg)
}

func newZerolog(pkg string, pid int) *zerolog.Logger {
	zl := zerolog.New(os.Stderr).With().Str("pkg", pkg).Int("pid", pid).Timestamp().Caller().Logger()
	if Mode == "" || Mode == "dev" {
		zl = zl.Output(zerolog.ConsoleWriter{Out: Out})
	} else {
		zl = zl.Output(Out)
	}
	return &zl
}

func trace(ctx context.Context) string {
	if t, ok := reqid.ContextGetReqID(ctx); ok {
		return t
	}
	return "unknown"
}
