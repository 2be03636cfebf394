package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/docuflow/authcore/ratelimit"
)

// storeTimeout bounds the limiter's counter-store round trip, matching the
// engine's own store-call posture.
const storeTimeout = 3 * time.Second

// rateLimitRejection is the 429 response body: a machine-readable limit
// class tag plus retry guidance in seconds.
type rateLimitRejection struct {
	Error             string `json:"error"`
	LimitClass        string `json:"limit_class"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}

// RateLimit throttles requests in the given class, keyed by client IP. The
// class is chosen here, per endpoint category, never by the limiter.
// onReject, when non-nil, is called with the class name and client IP for
// each rejection (see Engine.NoteRateLimited).
//
// A limiter store failure fails open: the request proceeds and the failure
// is logged.
func RateLimit(limiter *ratelimit.Limiter, class ratelimit.Class, log *slog.Logger, onReject func(class, clientIP string)) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := ratelimit.ClientIP(r)
			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), storeTimeout)
			res, err := limiter.Check(ctx, class, clientIP)
			cancel()
			if err != nil {
				log.Warn("rate limiter unavailable, failing open",
					"class", class.Name, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if !res.Allowed {
				if onReject != nil {
					onReject(class.Name, clientIP)
				}
				retryAfter := int(res.RetryAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(rateLimitRejection{
					Error:             "rate limit exceeded",
					LimitClass:        class.Name,
					RetryAfterSeconds: retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
