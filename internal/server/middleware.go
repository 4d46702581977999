package server

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/cors"
	"github.com/unrolled/secure"
	"go.uber.org/zap"

	"github.com/ahamlinman/webglhost/internal/api"
	"github.com/ahamlinman/webglhost/internal/config"
)

// securityHeaders sets the usual hardening headers on every response, except
// for Content-Security-Policy. The Unity loader relies on eval and blob URLs.
func securityHeaders(production bool) func(http.Handler) http.Handler {
	sec := secure.New(secure.Options{
		IsDevelopment:           !production,
		CustomFrameOptionsValue: "SAMEORIGIN",
		ContentTypeNosniff:      true,
		BrowserXssFilter:        true,
		CustomBrowserXssValue:   "0",
		ReferrerPolicy:          "no-referrer",
		STSSeconds:              180 * 24 * 60 * 60,
		STSIncludeSubdomains:    true,
		ForceSTSHeader:          production,
	})
	return func(next http.Handler) http.Handler {
		return sec.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Cross-Origin-Opener-Policy", "same-origin")
			h.Set("Cross-Origin-Resource-Policy", "same-origin")
			h.Set("Origin-Agent-Cluster", "?1")
			h.Set("X-DNS-Prefetch-Control", "off")
			h.Set("X-Download-Options", "noopen")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
			next.ServeHTTP(w, r)
		}))
	}
}

// corsPolicy allows any origin in development mode, and only the configured
// origins in production mode.
func corsPolicy(cfg config.Config) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPut,
			http.MethodPatch, http.MethodPost, http.MethodDelete,
		},
		AllowCredentials: true,
	}
	if cfg.Production() {
		opts.AllowedOrigins = cfg.CORSOrigins
	} else {
		opts.AllowOriginFunc = func(string) bool { return true }
	}
	return cors.New(opts).Handler
}

// logRequests logs one line per request with the fields of the combined log
// format.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			s.log.Info("Request",
				zap.String("remote", r.RemoteAddr),
				zap.String("method", r.Method),
				zap.String("uri", r.RequestURI),
				zap.String("proto", r.Proto),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.String("referer", r.Referer()),
				zap.String("userAgent", r.UserAgent()),
				zap.Duration("duration", time.Since(start)),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// recoverFaults turns a panic in any handler into a 500. The panic value is
// reported to the client only in development mode.
//
// http.ErrAbortHandler is re-raised, so that net/http silently aborts the
// response as the handler intended.
func (s *Server) recoverFaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			s.faults.Inc()
			s.log.Error("Handler fault",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("fault", fmt.Sprint(rec)),
				zap.Stack("stack"),
			)

			var detail string
			if !s.cfg.Production() {
				detail = fmt.Sprint(rec)
			}
			api.InternalError(w, detail)
		}()
		next.ServeHTTP(w, r)
	})
}

// limitAPI applies a per-client sliding window limit to requests under the API
// prefix. Limited requests receive a 429 with the standard RateLimit-* headers.
// RateLimit-Reset counts the seconds until the current window ends, rather than
// the Unix time that httprate would report.
func (s *Server) limitAPI(limit int, window time.Duration) func(http.Handler) http.Handler {
	limiter := httprate.Limit(limit, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			s.rateLimited.Inc()
			api.Error(w, http.StatusTooManyRequests)
		}),
		httprate.WithResponseHeaders(httprate.ResponseHeaders{
			Limit:      "RateLimit-Limit",
			Remaining:  "RateLimit-Remaining",
			RetryAfter: "Retry-After",
		}),
	)
	return func(next http.Handler) http.Handler {
		limited := limiter(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, apiPrefix) {
				w.Header().Set("RateLimit-Reset", strconv.Itoa(secondsUntilReset(window, time.Now())))
				limited.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// secondsUntilReset rounds the time left in the limiter window containing now
// up to whole seconds. httprate aligns windows to multiples of their length.
func secondsUntilReset(window time.Duration, now time.Time) int {
	end := now.UTC().Truncate(window).Add(window)
	return int(math.Ceil(end.Sub(now).Seconds()))
}
