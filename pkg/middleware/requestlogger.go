package middleware

import (
	"log/slog"
	"net/http"

	"github.com/yelpclone/directory/pkg/logger"
)

// RequestLogger stores a request-scoped logger in the context, enriched with
// correlation_id, session_id, trace_id and span_id when they are known.
// Handlers and services fetch it with logger.FromContext.
//
// Mount it after RequestLogging and Tracing. Middleware that adds a session
// ID later in the chain calls Refresh to rebuild the logger.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.NewContext(r.Context(), logger.WithContext(r.Context(), base))
			ctx = withBaseLogger(ctx, base)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Refresh rebuilds the request-scoped logger from the current context. It is
// a no-op when RequestLogger did not run.
func Refresh(r *http.Request) *http.Request {
	base := baseLoggerFromContext(r.Context())
	if base == nil {
		return r
	}
	ctx := logger.NewContext(r.Context(), logger.WithContext(r.Context(), base))
	return r.WithContext(ctx)
}
