package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mygeslike/api/internal/api/shared"
	"github.com/mygeslike/api/internal/platform/logger"
)

// NewTraceMiddleware adds a trace ID to the request context together with
// a request-scoped logger carrying it. It should run early in the chain.
func NewTraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.SetTraceID(r.Context())
			traceID := shared.GetTraceID(ctx)
			w.Header().Set("X-Trace-ID", traceID)

			log := logger.FromContextOrDefault(ctx, base).With(slog.String("trace_id", traceID))
			log.Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			next.ServeHTTP(w, r.WithContext(logger.WithLogger(ctx, log)))
		})
	}
}
