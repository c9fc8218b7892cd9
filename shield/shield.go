// Package shield provides HTTP hardening middleware for the sinktrace API:
// security headers, request body limits, per-IP rate limiting, and trace-ID
// injection.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.APIStack(rl) {
//	    r.Use(mw)
//	}
//
// Rate limiting matters here more than on a typical JSON API: every
// /v1/trace request can open browser contexts, so an unthrottled caller
// exhausts Chrome long before it exhausts the HTTP server.
package shield

import "net/http"

// APIStack returns the standard middleware stack for the sinktrace API:
// SecurityHeaders → MaxBody → TraceID → rate limiter. rl may be nil to skip
// rate limiting.
func APIStack(rl *RateLimiter) []func(http.Handler) http.Handler {
	stack := []func(http.Handler) http.Handler{
		SecurityHeaders(DefaultHeaders()),
		MaxBody(1 << 20),
		TraceID,
	}
	if rl != nil {
		stack = append(stack, rl.Middleware)
	}
	return stack
}
