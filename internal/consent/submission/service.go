// Package submission runs the client side of a consent submission: checks,
// IP resolution, rendering, encoding and delivery with retry.
package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"privacy-consent/internal/common/errors"
	"privacy-consent/internal/common/logger"
	"privacy-consent/internal/common/metrics"
	"privacy-consent/internal/consent/encoder"
	"privacy-consent/internal/consent/retry"
	"privacy-consent/internal/models"
)

type Service struct {
	config *Config
	deps   ServiceDependencies
	logger logger.Logger
	clock  func() time.Time
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	if deps.Diagnostics == nil {
		deps.Diagnostics = NewDiagnosticLog(0)
	}
	return &Service{
		config: config,
		deps:   deps,
		logger: deps.Logger,
		clock:  time.Now,
	}
}

// Diagnostics exposes the technical log kept for support.
func (s *Service) Diagnostics() *DiagnosticLog {
	return s.deps.Diagnostics
}

// Submit runs the whole sequence on session. It returns an Outcome for
// every terminal result; the error is non-nil unless the state is Success.
func (s *Service) Submit(ctx context.Context, session *Session, req Request) (*Outcome, error) {
	if req.Form == nil {
		return nil, errors.NewValidationFailedError("no form")
	}
	if err := session.begin(req.Form); err != nil {
		return nil, err
	}
	defer session.end()

	start := s.clock()
	out := &Outcome{SubmissionID: uuid.NewString()}
	log := s.logger.WithFields(map[string]interface{}{"submissionId": out.SubmissionID})

	form := req.Form.Clone()
	form.Normalize()
	srcs := effectiveSources(form, req.Sources)

	// 1. Validate
	s.move(ctx, session, StateValidating, 0)
	atts, err := s.deps.Encoder.InspectAll(srcs)
	if err != nil {
		return s.fail(ctx, session, out, start, err)
	}
	res := s.deps.Validator.Validate(form, atts...)
	if !res.Valid {
		out.Validation = res
		out.State = StateInvalid
		out.Duration = s.clock().Sub(start)
		s.move(ctx, session, StateInvalid, 0)
		s.move(ctx, session, StateIdle, 0)
		log.Info("form rejected by validation", map[string]interface{}{
			"fields": res.Fields(),
		})
		return out, errors.NewValidationFailedError(strings.Join(res.GetErrorMessages(), "; "))
	}

	// 2. Resolve IP, never fatal
	s.move(ctx, session, StateResolvingIP, 0)
	ip := s.deps.Resolver.Resolve(ctx)
	out.IP, out.IPSource = ip.IP, ip.Source
	s.diag("info", "ip_resolved", map[string]interface{}{"source": ip.Source, "service": ip.Service})

	// 3. Render
	s.move(ctx, session, StateRendering, 0)
	doc, err := s.deps.Renderer.Render(ctx, form, ip.IP, req.Env)
	if err != nil {
		return s.fail(ctx, session, out, start, err)
	}
	out.IntegrityID, out.Timestamp = doc.IntegrityID, doc.Timestamp

	// 4. Encode
	s.move(ctx, session, StateEncoding, 0)
	encoded, err := s.deps.Encoder.EncodeAll(ctx, srcs)
	if err != nil {
		return s.fail(ctx, session, out, start, err)
	}

	payload := &models.SubmissionPayload{
		Fields:         form.Values,
		IncludePartner: form.IncludePartner,
		GDPRConsent:    form.GDPRConsent,
		PrivacyConsent: form.PrivacyConsent,
		Timestamp:      doc.Timestamp,
		IPAddress:      ip.IP,
		UserAgent:      s.userAgent(req),
		PDFBase64:      encoder.EncodeDocument(doc.PDF),
		SubmissionID:   out.SubmissionID,
		Attachments:    encoded,
	}

	// 5. Deliver
	policy := s.config.Policy
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		log.Warn("delivery attempt failed, retrying", map[string]interface{}{
			"attempt":     attempt,
			"errorCode":   string(errors.CodeOf(err)),
			"nextRetryIn": wait.String(),
		})
	}
	resp, attempts, err := retry.Do(ctx, policy, func(actx context.Context, attempt int) (*models.DeliveryResponse, error) {
		s.move(ctx, session, StateSending, attempt)
		r, err := s.deliver(actx, payload)
		result := "ok"
		if err != nil {
			result = string(errors.CodeOf(err))
		}
		metrics.SubmissionAttempts.WithLabelValues(result).Inc()
		s.diag(levelFor(err), "delivery_attempt", map[string]interface{}{
			"attempt": attempt,
			"result":  result,
			"error":   errString(err),
		})
		return r, err
	})
	out.Attempts = attempts
	if err != nil {
		return s.fail(ctx, session, out, start, err)
	}

	out.Response = resp
	out.State = StateSuccess
	out.Duration = s.clock().Sub(start)
	s.move(ctx, session, StateSuccess, attempts)
	s.deps.Observability.RecordSubmission(ctx, string(StateSuccess))
	s.deps.Observability.RecordSubmissionDuration(ctx, out.Duration, string(StateSuccess))

	log.Info("consent submitted", map[string]interface{}{
		"attempts":    attempts,
		"documentId":  resp.DocumentID,
		"integrityId": out.IntegrityID,
		"ipSource":    out.IPSource,
	})
	return out, nil
}

// deliver makes one POST and classifies the answer.
func (s *Service) deliver(ctx context.Context, payload *models.SubmissionPayload) (*models.DeliveryResponse, error) {
	resp, err := s.deps.Transport.PostJSON(ctx, s.config.DeliveryURL, payload)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewDeliveryTimeoutError(err)
		}
		return nil, errors.Normalize(err)
	}

	body := strings.TrimSpace(string(resp.Body))
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return deliveredResponse(resp.StatusCode, resp.Body)
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.NewDeliveryEndpointMissingError(s.config.DeliveryURL)
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return nil, errors.NewDeliveryServerBusyError(resp.StatusCode, body)
	default:
		return nil, errors.NewDeliveryRejectedError(resp.StatusCode, body)
	}
}

// deliveredResponse reads a 2xx body. Only an explicit "success": false is a
// refusal; an empty or unexpected body still means the email went out.
func deliveredResponse(status int, raw []byte) (*models.DeliveryResponse, error) {
	var body struct {
		models.DeliveryResponse
		Success *bool  `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return &models.DeliveryResponse{Success: true}, nil
	}
	if body.Success != nil && !*body.Success {
		reason := body.Error
		if reason == "" {
			reason = body.Message
		}
		return nil, errors.NewDeliveryRejectedError(status, reason)
	}
	dr := body.DeliveryResponse
	dr.Success = true
	return &dr, nil
}

func (s *Service) fail(ctx context.Context, session *Session, out *Outcome, start time.Time, err error) (*Outcome, error) {
	stdErr := errors.NewErrorHandler(s.logger).Handle("submit", err)

	out.State = StateFailed
	out.Category = errors.Categorize(stdErr.Code)
	out.Message = errors.UserMessage(out.Category, s.config.Support)
	out.Duration = s.clock().Sub(start)

	s.diag("error", "submission_failed", map[string]interface{}{
		"code":     string(stdErr.Code),
		"details":  stdErr.Details,
		"attempts": out.Attempts,
		"state":    string(session.State()),
	})
	s.move(ctx, session, StateFailed, out.Attempts)
	s.deps.Observability.RecordSubmission(ctx, string(StateFailed))
	s.deps.Observability.RecordSubmissionDuration(ctx, out.Duration, string(StateFailed))

	return out, fmt.Errorf("submission %s: %w", out.SubmissionID, stdErr)
}

func (s *Service) move(ctx context.Context, session *Session, to State, attempt int) {
	from := session.State()
	if err := session.transition(to, attempt, ""); err != nil {
		s.logger.Error("session transition rejected", map[string]interface{}{
			"from":  string(from),
			"to":    string(to),
			"error": err.Error(),
		})
		return
	}
	s.deps.Observability.RecordTransition(ctx, string(from), string(to))
}

func (s *Service) diag(level, event string, fields map[string]interface{}) {
	s.deps.Diagnostics.Record(level, event, fields)
	if !s.config.Production {
		s.logger.Debug("diagnostic: "+event, fields)
	}
}

func (s *Service) userAgent(req Request) string {
	if req.Env.UserAgent != "" {
		return req.Env.UserAgent
	}
	return s.config.UserAgent
}

// effectiveSources drops partner uploads when the partner block is off.
func effectiveSources(form *models.FormRecord, srcs encoder.Sources) encoder.Sources {
	out := make(encoder.Sources, len(srcs))
	for slot, path := range srcs {
		if slot.IsPartner() && !form.IncludePartner {
			continue
		}
		out[slot] = path
	}
	return out
}

func levelFor(err error) string {
	if err != nil {
		return "warn"
	}
	return "info"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
