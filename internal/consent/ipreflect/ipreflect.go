// Package ipreflect answers GET requests with the caller's public IP as seen
// through the proxies in front of the server.
package ipreflect

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"privacy-consent/internal/common/errors"
	"privacy-consent/internal/common/logger"
	"privacy-consent/internal/models"
)

const errInternal = "Errore interno"

// forwardingHeaders are consulted in order; the first non-empty one wins.
var forwardingHeaders = []string{
	"X-Real-IP",
	"CF-Connecting-IP",
	"X-Client-IP",
}

// ClientIP returns the caller IP, or models.IPUnavailable.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	for _, h := range forwardingHeaders {
		if v := strings.TrimSpace(r.Header.Get(h)); v != "" {
			return v
		}
	}
	if host := remoteHost(r.RemoteAddr); host != "" {
		return host
	}
	return models.IPUnavailable
}

// PeerIP is the address of the socket peer, ignoring forwarding headers.
func PeerIP(r *http.Request) string {
	if host := remoteHost(r.RemoteAddr); host != "" {
		return host
	}
	return models.IPUnavailable
}

func remoteHost(addr string) string {
	if addr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return strings.TrimSpace(addr)
	}
	return host
}

type Handler struct {
	logger logger.Logger
	now    func() time.Time
}

type HandlerOptions struct {
	Logger logger.Logger
	Clock  func() time.Time
}

func NewHandler(opts HandlerOptions) *Handler {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Handler{
		logger: log.WithFields(map[string]interface{}{"handler": "get-ip"}),
		now:    now,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("panic while reflecting client ip", map[string]interface{}{"panic": rec})
			writeJSON(w, http.StatusInternalServerError, models.IPResponse{IP: models.IPUnavailable, Error: errInternal})
		}
	}()

	if r.Method != http.MethodGet {
		se := errors.NewMethodNotAllowedError(r.Method, http.MethodGet)
		h.logger.Warn("method rejected", map[string]interface{}{
			"errorCode": string(se.Code),
			"details":   se.Details,
		})
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, models.ErrorResponse{Error: "Method not allowed"})
		return
	}

	writeJSON(w, http.StatusOK, models.IPResponse{
		IP:        ClientIP(r),
		Timestamp: h.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
