// Package ratelimit caps consent submissions per client IP with a Redis
// fixed window.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"privacy-consent/internal/common/config"
	"privacy-consent/internal/common/errors"
	"privacy-consent/internal/common/logger"
	"privacy-consent/internal/common/metrics"
	"privacy-consent/internal/consent/ipreflect"
	"privacy-consent/internal/models"
)

const errTooManyRequests = "Troppe richieste. Riprova tra qualche minuto."

// Store counts hits inside a window. *database.RedisClient satisfies it.
type Store interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type Config struct {
	Requests  int
	Window    time.Duration
	KeyPrefix string
	// TrustedProxies are the peers allowed to report the client address
	// through X-Forwarded-For. Everyone else is keyed on the socket address.
	TrustedProxies []netip.Prefix
}

func ConfigFromAppConfig(cfg config.RateLimitConfig) (Config, error) {
	proxies, err := ParseProxies(cfg.TrustedProxies)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Requests:       cfg.Requests,
		Window:         config.GetDuration(cfg.Window),
		KeyPrefix:      cfg.KeyPrefix,
		TrustedProxies: proxies,
	}, nil
}

// ParseProxies accepts single addresses and CIDR ranges.
func ParseProxies(entries []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		out = append(out, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}
	return out, nil
}

type Limiter struct {
	store  Store
	config Config
	logger logger.Logger
}

func New(store Store, cfg Config, log logger.Logger) *Limiter {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Limiter{store: store, config: cfg, logger: log}
}

// Middleware rejects requests over the limit with 429. Store failures let the
// request through.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		key := l.config.KeyPrefix + ":" + l.clientKey(r)

		count, ttl, err := l.store.IncrWindow(r.Context(), key, l.config.Window)
		if err != nil {
			metrics.RateLimitErrors.Inc()
			l.logger.Error("rate limit check failed", map[string]interface{}{"error": err.Error()})
			next.ServeHTTP(w, r)
			return
		}

		remaining := l.config.Requests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.config.Requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > int64(l.config.Requests) {
			metrics.RateLimitRejections.Inc()
			se := errors.NewRateLimitedError(key)
			l.logger.Warn("submission rate limited", map[string]interface{}{
				"errorCode": string(se.Code),
				"count":     count,
			})
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(ttl.Seconds()))))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: errTooManyRequests})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientKey is the socket peer unless that peer is a trusted proxy. Behind a
// trusted proxy the X-Forwarded-For chain is read right to left and the
// first hop that is not itself trusted wins, since entries further left
// are whatever the client chose to send.
func (l *Limiter) clientKey(r *http.Request) string {
	peer := ipreflect.PeerIP(r)
	if !l.trusted(peer) {
		return peer
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !l.trusted(hop) {
			return hop
		}
		peer = hop
	}
	return peer
}

func (l *Limiter) trusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range l.config.TrustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
