package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/menuboard-backend/api/responses"
	pkgerrors "github.com/angelmondragon/menuboard-backend/pkg/errors"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
)

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimitPolicy caps attempts per client IP and per submitted email within
// a fixed window. A zero limit disables that bucket.
type RateLimitPolicy struct {
	Name     string
	Window   time.Duration
	PerIP    int
	PerEmail int
}

type bucket struct {
	kind  string
	value string
	limit int
}

// AuthRateLimit throttles sign-in and sign-up. The email is read from the
// JSON body, which is restored for the handler, and counted by its sha256
// so raw addresses never reach Redis.
func AuthRateLimit(policy RateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || policy.Window <= 0 || (policy.PerIP <= 0 && policy.PerEmail <= 0) {
			return next
		}
		name := strings.ToLower(strings.TrimSpace(policy.Name))
		if name == "" {
			name = "auth"
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			buckets := []bucket{{"ip", clientIP(r), policy.PerIP}}
			if policy.PerEmail > 0 {
				body, err := io.ReadAll(r.Body)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				if email := emailOf(body); email != "" {
					sum := sha256.Sum256([]byte(email))
					buckets = append(buckets, bucket{"email", hex.EncodeToString(sum[:]), policy.PerEmail})
				}
			}

			for _, b := range buckets {
				if b.limit <= 0 || b.value == "" {
					continue
				}
				allowed, count, err := store.FixedWindowAllow(ctx, b.kind+":"+name+":"+b.value, int64(b.limit), policy.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !allowed {
					rejectThrottled(ctx, logg, w, name, policy.Window, b, count)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectThrottled(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy string, window time.Duration, b bucket, count int64) {
	retryAfter := int(window.Round(time.Second).Seconds())
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":     policy,
			"bucket":     b.kind,
			"bucket_key": b.value,
			"attempts":   count,
			"limit":      b.limit,
		}), "auth.rate_limited")
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later").
		WithDetails(map[string]any{"retry_after_seconds": retryAfter}))
}

// clientIP trusts the first X-Forwarded-For hop set by the load balancer,
// then X-Real-IP, then the socket peer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func emailOf(body []byte) string {
	var peek struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &peek) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(peek.Email))
}
