// Package server mounts the consent endpoints on a chi router.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"privacy-consent/internal/common/config"
	"privacy-consent/internal/common/logger"
	"privacy-consent/internal/common/metrics"
)

// ReadyCheck reports whether a backing dependency is usable.
type ReadyCheck func(ctx context.Context) error

type Options struct {
	SendEmail http.Handler
	GetIP     http.Handler
	// RateLimit wraps SendEmail when set.
	RateLimit      func(http.Handler) http.Handler
	Ready          map[string]ReadyCheck
	AllowedOrigins []string
	Version        string
	Logger         logger.Logger
}

func NewRouter(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(cors(opts.AllowedOrigins))

	sendEmail := opts.SendEmail
	if opts.RateLimit != nil {
		sendEmail = opts.RateLimit(sendEmail)
	}

	for _, p := range []string{"/api/send-email", "/.netlify/functions/send-email"} {
		r.Handle(p, sendEmail)
	}
	for _, p := range []string{"/api/get-ip", "/.netlify/functions/get-ip"} {
		r.Handle(p, opts.GetIP)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"version": opts.Version,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})
	r.Get("/ready", ready(opts.Ready))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// New builds the http.Server with the configured timeouts.
func New(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Address,
		Handler:           handler,
		ReadTimeout:       config.GetDuration(cfg.ReadTimeout),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      config.GetDuration(cfg.WriteTimeout),
	}
}

func ready(checks map[string]ReadyCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		state := "ready"
		if status != http.StatusOK {
			state = "not_ready"
		}
		writeJSON(w, status, map[string]interface{}{"status": state, "checks": results})
	}
}

// cors answers preflight requests itself and decorates every other response.
func cors(origins []string) func(http.Handler) http.Handler {
	allowed := map[string]bool{}
	for _, o := range origins {
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := "*"
			if len(allowed) > 0 && !allowed["*"] {
				origin = r.Header.Get("Origin")
				if !allowed[origin] {
					origin = ""
				}
				w.Header().Add("Vary", "Origin")
			}
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()

			fields := map[string]interface{}{
				"method":    r.Method,
				"route":     route,
				"status":    status,
				"bytes":     ww.BytesWritten(),
				"duration":  time.Since(start).String(),
				"requestId": middleware.GetReqID(r.Context()),
			}
			if status >= 500 {
				log.Error("request failed", fields)
			} else {
				log.Debug("request served", fields)
			}
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
