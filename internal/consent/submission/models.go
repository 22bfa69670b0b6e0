package submission

import (
	"context"
	"time"

	"privacy-consent/internal/common/errors"
	commonhttp "privacy-consent/internal/common/http"
	"privacy-consent/internal/common/logger"
	"privacy-consent/internal/common/observability"
	"privacy-consent/internal/common/validation"
	"privacy-consent/internal/consent/encoder"
	"privacy-consent/internal/consent/iplookup"
	"privacy-consent/internal/consent/render"
	"privacy-consent/internal/models"
)

// Request is everything one submission needs besides the session.
type Request struct {
	Form    *models.FormRecord
	Sources encoder.Sources
	Env     render.ClientEnv
}

// Outcome describes how a submission ended. It is returned for every
// terminal state, failures included.
type Outcome struct {
	State        State
	SubmissionID string
	Attempts     int
	IP           string
	IPSource     string
	IntegrityID  string
	Timestamp    string
	Response     *models.DeliveryResponse
	Validation   *validation.ValidationResult

	// Category and Message are set on failure. Message is safe to show.
	Category errors.UserCategory
	Message  string
	Duration time.Duration
}

type FormValidator interface {
	Validate(form *models.FormRecord, attachments ...models.Attachment) *validation.ValidationResult
}

type IPResolver interface {
	Resolve(ctx context.Context) iplookup.Result
}

type DocumentRenderer interface {
	Render(ctx context.Context, form *models.FormRecord, ip string, env render.ClientEnv) (*render.Document, error)
}

type AttachmentEncoder interface {
	InspectAll(srcs encoder.Sources) ([]models.Attachment, error)
	EncodeAll(ctx context.Context, srcs encoder.Sources) (map[models.AttachmentSlot]models.EncodedAttachment, error)
}

// Transport posts the payload to the delivery endpoint.
type Transport interface {
	PostJSON(ctx context.Context, url string, payload interface{}) (*commonhttp.Response, error)
}

type ServiceDependencies struct {
	Validator     FormValidator
	Resolver      IPResolver
	Renderer      DocumentRenderer
	Encoder       AttachmentEncoder
	Transport     Transport
	Diagnostics   *DiagnosticLog
	Observability *observability.Observability
	Logger        logger.Logger
}
