package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/doInfinitely/deliverycore/internal/observability"
)

// requestLogger logs every request with duration and status, adapted from
// interceptors.LoggingInterceptor for net/http — same fields, same
// error-vs-info split on outcome.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r)
			dur := time.Since(start)

			logEvent := logger.Info()
			if rw.Status() >= 500 {
				logEvent = logger.Error()
			}
			logEvent.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("req_id", chimw.GetReqID(r.Context())).
				Int("status", rw.Status()).
				Dur("duration_ms", dur).
				Msg("request completed")
		})
	}
}

// tracingMiddleware starts an OpenTelemetry span per request, adapted from
// interceptors.TracingInterceptor for net/http.
func tracingMiddleware() func(http.Handler) http.Handler {
	tracer := otel.Tracer("deliverycore")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.target", r.URL.Path),
				),
			)
			defer span.End()

			rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r.WithContext(ctx))

			span.SetAttributes(attribute.Int("http.status_code", rw.Status()))
			if rw.Status() >= 500 {
				span.SetStatus(codes.Error, http.StatusText(rw.Status()))
			} else {
				span.SetStatus(codes.Ok, "")
			}
		})
	}
}

// metricsMiddleware records request count and latency by method, route
// pattern and status — route comes from chi's matched pattern, not the raw
// path, so metric cardinality stays bounded regardless of path parameters.
func metricsMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r)
			dur := time.Since(start)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			status := http.StatusText(rw.Status())
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route, status).Observe(dur.Seconds())
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		})
	}
}

// maxBodyBytes caps request body size, matching the gateway router's
// mwMaxBodySize convention.
const maxBodyBytes = 1 << 20 // 1MB

func maxBodySize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}
