package delivery

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"privacy-consent/internal/common/errors"
	"privacy-consent/internal/common/logger"
	"privacy-consent/internal/common/metrics"
	"privacy-consent/internal/consent/integrity"
	"privacy-consent/internal/mail"
	"privacy-consent/internal/models"
)

// isoMillis matches the timestamps the endpoint has always returned.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type Service struct {
	config *Config
	mailer mail.Mailer
	alerts AlertPublisher
	logger logger.Logger
	now    func() time.Time
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		config: config,
		mailer: deps.Mailer,
		alerts: deps.Alerts,
		logger: log,
		now:    now,
	}
}

// Execute composes the consent email for payload and sends it exactly once.
func (s *Service) Execute(ctx context.Context, payload *models.SubmissionPayload, meta RequestMeta) (*models.DeliveryResponse, error) {
	start := s.now()
	outcome := "failed"
	defer func() {
		metrics.ConsentDeliveries.WithLabelValues(outcome).Inc()
		metrics.ConsentDeliveryDuration.WithLabelValues(outcome).Observe(s.now().Sub(start).Seconds())
	}()

	ip := payload.IPAddress
	if ip == "" {
		ip = meta.RemoteIP
	}

	documentID := integrity.Identifier(payload.Field("nome"), payload.Field("cognome"),
		payload.Field("codiceFiscale"), start, ip)

	attachments, err := buildAttachments(payload)
	if err != nil {
		return nil, err
	}

	html, err := renderHTML(payload, documentID)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("render email: %w", err))
	}

	msg := &mail.Message{
		FromName:    s.config.SenderName,
		From:        s.config.From,
		To:          []string{s.config.Recipient},
		Subject:     fmt.Sprintf("%s - %s %s", s.config.SubjectPrefix, payload.Field("nome"), payload.Field("cognome")),
		HTML:        html,
		Attachments: attachments,
		Date:        start,
		Headers: map[string]string{
			"X-Consent-Document-Id": documentID,
		},
	}
	if payload.SubmissionID != "" {
		msg.Headers["X-Consent-Submission-Id"] = payload.SubmissionID
	}

	record := ConsentLog{
		Timestamp:     start.UTC().Format(isoMillis),
		IPAddress:     ip,
		UserAgent:     payload.UserAgent,
		Paziente:      fmt.Sprintf("%s %s", payload.Field("nome"), payload.Field("cognome")),
		CodiceFiscale: payload.Field("codiceFiscale"),
		DocumentHash:  documentID,
		Action:        actionConsentSent,
		SubmissionID:  payload.SubmissionID,
		Attachments:   len(attachments),
	}
	s.logger.Info("PRIVACY_CONSENT_LOG", map[string]interface{}{
		"consent":   record,
		"requestId": meta.RequestID,
	})

	sendCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	messageID, err := s.mailer.Send(sendCtx, msg)
	if err != nil {
		return nil, errors.NewMailSendFailedError(s.mailer.Provider(), err).
			WithMetadata("documentId", documentID)
	}

	outcome = "sent"
	for _, slot := range models.AllSlots {
		if payload.Attachment(slot).Present() && (!slot.IsPartner() || payload.IncludePartner) {
			metrics.ConsentAttachments.WithLabelValues(string(slot)).Inc()
		}
	}

	s.logger.Info("consent email sent", map[string]interface{}{
		"documentId": documentID,
		"messageId":  messageID,
		"provider":   s.mailer.Provider(),
		"requestId":  meta.RequestID,
	})

	s.publishAlert(ctx, documentID, len(attachments), payload)

	return &models.DeliveryResponse{
		Success:    true,
		Message:    successMessage,
		DocumentID: documentID,
		Timestamp:  record.Timestamp,
	}, nil
}

// publishAlert carries no personal data. A failure is logged and otherwise ignored.
func (s *Service) publishAlert(ctx context.Context, documentID string, attachments int, payload *models.SubmissionPayload) {
	if s.alerts == nil {
		return
	}
	attrs := map[string]string{
		"documentId":     documentID,
		"attachments":    strconv.Itoa(attachments),
		"includePartner": strconv.FormatBool(payload.IncludePartner),
	}
	msg := fmt.Sprintf("Nuovo modulo privacy ricevuto (documento %s, %d allegati)", documentID, attachments)
	if err := s.alerts.PublishAlert(ctx, "Nuovo modulo privacy", msg, attrs); err != nil {
		s.logger.Warn("consent alert not published", map[string]interface{}{
			"documentId": documentID,
			"error":      errors.NewAlertFailedError(err).Error(),
		})
	}
}
