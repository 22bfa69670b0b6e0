package delivery

import (
	"context"
	"time"

	"privacy-consent/internal/common/logger"
	"privacy-consent/internal/mail"
)

const (
	actionConsentSent = "CONSENSO_PRIVACY_INVIATO"
	successMessage    = "Email inviata con successo"

	errMethodNotAllowed = "Method not allowed"
	errInvalidRequest   = "Richiesta non valida"
	errSendFailed       = "Errore nell'invio dell'email"
)

// AlertPublisher raises a notification after a delivered consent. The SNS
// wrapper in internal/common/aws satisfies it.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, subject, message string, attrs map[string]string) error
}

type ServiceDependencies struct {
	Mailer mail.Mailer
	Alerts AlertPublisher // optional
	Logger logger.Logger
	Clock  func() time.Time
}

// RequestMeta is what the transport knows about the caller.
type RequestMeta struct {
	RemoteIP  string
	RequestID string
}

// ConsentLog is the audit record written before every send.
type ConsentLog struct {
	Timestamp     string `json:"timestamp"`
	IPAddress     string `json:"ipAddress"`
	UserAgent     string `json:"userAgent"`
	Paziente      string `json:"paziente"`
	CodiceFiscale string `json:"codiceFiscale"`
	DocumentHash  string `json:"documentHash"`
	Action        string `json:"action"`
	SubmissionID  string `json:"submissionId,omitempty"`
	Attachments   int    `json:"attachments"`
}
