package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type traceKey struct{}

// TraceIDFromContext достает сквозной trace id запроса (пустая строка,
// если запрос пришел мимо TraceMiddleware).
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

// TraceMiddleware назначает запросу trace id (или принимает клиентский),
// возвращает его в ответе и пишет access-лог с длительностью.
func TraceMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	log := logger.Named("access")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get("X-Trace-ID")
			if traceID == "" {
				traceID = uuid.NewString()
			}
			w.Header().Set("X-Trace-ID", traceID)
			r = r.WithContext(context.WithValue(r.Context(), traceKey{}, traceID))

			start := time.Now()
			next.ServeHTTP(w, r)

			log.Info("request",
				zap.String("trace_id", traceID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

// RateLimitMiddleware — общий token bucket на входе. Превышение не
// доходит до конвейера и отвечает 429.
func RateLimitMiddleware(rps float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
