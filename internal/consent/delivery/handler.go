package delivery

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"privacy-consent/internal/common/config"
	"privacy-consent/internal/common/errors"
	"privacy-consent/internal/common/logger"
	"privacy-consent/internal/consent/ipreflect"
	"privacy-consent/internal/mail"
	"privacy-consent/internal/models"
)

// Executor is satisfied by *Service.
type Executor interface {
	Execute(ctx context.Context, payload *models.SubmissionPayload, meta RequestMeta) (*models.DeliveryResponse, error)
}

type Handler struct {
	config  *Config
	service Executor
	logger  logger.Logger
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Mailer       mail.Mailer
	Alerts       AlertPublisher
	Logger       logger.Logger
	Service      Executor // replaces the default service, used in tests
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"handler": "send-email"})

	svc := opts.Service
	if svc == nil {
		if opts.Mailer == nil {
			return nil, stderrors.New("mailer is required")
		}
		svc = NewService(ServiceDependencies{
			Mailer: opts.Mailer,
			Alerts: opts.Alerts,
			Logger: log,
		}, cfg)
	}

	return &Handler{config: cfg, service: svc, logger: log}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("panic while sending consent email", map[string]interface{}{"panic": rec})
			writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: errSendFailed})
		}
	}()

	if r.Method != http.MethodPost {
		se := errors.NewMethodNotAllowedError(r.Method, http.MethodPost)
		h.logger.Warn("method rejected", map[string]interface{}{
			"errorCode": string(se.Code),
			"details":   se.Details,
		})
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, models.ErrorResponse{Error: errMethodNotAllowed})
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes))
	if err != nil {
		h.logger.Warn("request body rejected", map[string]interface{}{"error": err.Error()})
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: errInvalidRequest})
		return
	}

	result, err := ValidatePayload(raw)
	if err != nil || !result.Valid {
		fields := map[string]interface{}{}
		if err != nil {
			fields["error"] = err.Error()
		} else {
			fields["fields"] = result.Fields()
		}
		h.logger.Warn("invalid consent payload", fields)
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: errInvalidRequest})
		return
	}

	var payload models.SubmissionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: errInvalidRequest})
		return
	}

	resp, err := h.service.Execute(r.Context(), &payload, RequestMeta{
		RemoteIP:  ipreflect.ClientIP(r),
		RequestID: middleware.GetReqID(r.Context()),
	})
	if err != nil {
		se := errors.Normalize(err)
		h.logger.Error("consent email not sent", map[string]interface{}{
			"errorCode": string(se.Code),
			"details":   se.Details,
		})
		if se.Code == errors.ErrCodeInvalidPayload {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: errInvalidRequest})
			return
		}
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: errSendFailed})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
