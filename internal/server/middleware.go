package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"crisis-alerts/internal/common/errors"
	"crisis-alerts/internal/common/logger"

	"github.com/google/uuid"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
)

type middleware func(http.Handler) http.Handler

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogging(log logger.Logger) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if r.URL.Path == "/metrics" || r.URL.Path == "/health" {
				return
			}
			log.Info("request handled", map[string]interface{}{
				"requestId":  requestID,
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rec.status,
				"durationMs": time.Since(start).Milliseconds(),
			})
		})
	}
}

// rateLimit limits requests per client IP.
func rateLimit(lim *limiter.Limiter, log logger.Logger) middleware {
	mw := stdlib.NewMiddleware(lim,
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{
				Error: "too many requests",
				Code:  "RATE_LIMITED",
			})
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			log.Error("rate limiter store failed", map[string]interface{}{"error": err.Error()})
			writeJSON(w, http.StatusInternalServerError, errorResponse{
				Error: "rate limiter unavailable",
				Code:  string(errors.ErrCodeInternal),
			})
		}),
	)
	return mw.Handler
}

// requireToken admits requests whose bearer token the validator accepts.
func requireToken(validator TokenValidator, log logger.Logger) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, errorResponse{
					Error: "missing bearer token",
					Code:  string(errors.ErrCodeAuthenticationFailed),
				})
				return
			}

			info, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				status := http.StatusUnauthorized
				if stdErr, ok := errors.AsStandard(err); ok && stdErr.Retryable {
					status = http.StatusServiceUnavailable
				}
				log.Warn("rejected request token", map[string]interface{}{
					"path":   r.URL.Path,
					"status": strconv.Itoa(status),
					"error":  err.Error(),
				})
				writeJSON(w, status, errorResponse{
					Error: "invalid bearer token",
					Code:  string(errors.ErrCodeAuthenticationFailed),
				})
				return
			}

			log.Debug("authenticated request", map[string]interface{}{
				"principal": info.Principal(),
				"path":      r.URL.Path,
			})
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
