package handlers

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/leo-rullani/backend-video-flix/internal/metrics"
)

// Rate limit scopes keep separate budgets per endpoint family.
const (
	scopeRegister = "register"
	scopeLogin    = "login"
	scopeRefresh  = "refresh"
	scopeReset    = "password_reset"
	scopeConfirm  = "confirm"
)

// RateLimiter is the minimal interface required to guard sensitive endpoints.
type RateLimiter interface {
	Allow(key string) bool
}

// allowRequest reports whether the request may proceed and writes the 429 response
// when it may not.
func allowRequest(ctx context.Context, w http.ResponseWriter, limiter RateLimiter, r *http.Request, scope string) bool {
	if limiter == nil {
		return true
	}
	if limiter.Allow(rateLimitKey(r, scope)) {
		return true
	}
	metrics.RateLimitedTotal.WithLabelValues(scope).Inc()
	w.Header().Set("Retry-After", "60")
	respondJSON(ctx, w, http.StatusTooManyRequests, detail("Too many requests. Please try again later."))
	return false
}

func rateLimitKey(r *http.Request, scope string) string {
	ip := clientIP(r)
	if scope == "" {
		return ip
	}
	return fmt.Sprintf("%s:%s", scope, ip)
}

func clientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
