// Package iplookup resolves the public IP the submission is made from.
package iplookup

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"privacy-consent/internal/common/errors"
	commonhttp "privacy-consent/internal/common/http"
	"privacy-consent/internal/common/logger"
	"privacy-consent/internal/common/metrics"
	"privacy-consent/internal/models"
)

// Sources reported in Result.Source and the lookup metric.
const (
	SourceExternal    = "external"
	SourceReflect     = "reflect"
	SourceUnavailable = "unavailable"
)

type Result struct {
	IP      string
	Source  string
	Service string // URL that answered, empty for the sentinel
}

type Config struct {
	Services   []string
	ReflectURL string
	Timeout    time.Duration
}

type Resolver struct {
	client *commonhttp.Client
	cfg    Config
	logger logger.Logger
}

func NewResolver(cfg Config, client *commonhttp.Client, log logger.Logger) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if client == nil {
		client = commonhttp.NewClient(cfg.Timeout)
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Resolver{client: client, cfg: cfg, logger: log}
}

type ipBody struct {
	IP string `json:"ip"`
}

// Resolve tries each external service, then the reflection endpoint, and
// settles on models.IPUnavailable. It never fails.
func (r *Resolver) Resolve(ctx context.Context) Result {
	for _, svc := range r.cfg.Services {
		if ip, ok := r.ask(ctx, svc); ok {
			return r.done(Result{IP: ip, Source: SourceExternal, Service: svc})
		}
	}

	if r.cfg.ReflectURL != "" {
		if ip, ok := r.ask(ctx, r.cfg.ReflectURL); ok {
			return r.done(Result{IP: ip, Source: SourceReflect, Service: r.cfg.ReflectURL})
		}
	}

	return r.done(Result{IP: models.IPUnavailable, Source: SourceUnavailable})
}

func (r *Resolver) ask(ctx context.Context, url string) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}
	cctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	var body ipBody
	if err := r.client.GetJSON(cctx, url, &body); err != nil {
		r.lookupFailed(url, err)
		return "", false
	}

	ip := strings.TrimSpace(body.IP)
	if net.ParseIP(ip) == nil {
		r.lookupFailed(url, fmt.Errorf("no usable address in %q", body.IP))
		return "", false
	}
	return ip, true
}

// lookupFailed only logs; the chain moves on to the next source.
func (r *Resolver) lookupFailed(url string, err error) {
	se := errors.NewIPLookupFailedError(url, err)
	r.logger.Debug("ip lookup failed", map[string]interface{}{
		"service":   url,
		"errorCode": string(se.Code),
		"details":   se.Details,
	})
}

func (r *Resolver) done(res Result) Result {
	metrics.IPLookups.WithLabelValues(res.Source).Inc()
	r.logger.Info("client ip resolved", map[string]interface{}{
		"source":  res.Source,
		"service": res.Service,
	})
	return res
}
