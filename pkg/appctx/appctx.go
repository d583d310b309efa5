// Package appctx carries a per-request logger and trace id through a
// context.Context, so deep call sites can log with request-scoped fields
// without threading a logger argument through every signature. Middleware
// is the HTTP entry point that stamps both onto an incoming request's
// context before it reaches pkg/httpd's handlers.
package appctx

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ddrive-io/ddrive/pkg/reqid"
)

// reqIDHeader is the header a caller may supply a trace id on, and the
// header the response echoes it back under.
const reqIDHeader = "X-Request-Id"

// WithLogger returns a context with an associated logger.
func WithLogger(ctx context.Context, l *zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}

// GetLogger returns the logger associated with the given context
// or a disabled logger in case no logger is stored inside the context.
func GetLogger(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// WithTrace returns a context with an associated reqid.
func WithTrace(ctx context.Context, t string) context.Context {
	return reqid.ContextSetReqID(ctx, t)
}

// GetTrace returns the trace stored in the context.
func GetTrace(ctx context.Context) string {
	t, ok := reqid.ContextGetReqID(ctx)
	if ok {
		return t
	}
	return "unknown"
}

// Middleware mints (or carries over from reqIDHeader) a trace id for every
// request, attaches it plus a logger carrying it as a field to the
// request's context, and echoes the id back on the response so a caller
// can correlate its own logs against the daemon's.
func Middleware(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(reqIDHeader)
			if id == "" {
				id = reqid.New()
			}

			sub := base.With().Str("reqid", id).Logger()
			ctx := WithLogger(WithTrace(r.Context(), id), &sub)

			w.Header().Set(reqIDHeader, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
