// internal/common/errors/handler.go
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// UserCategory groups terminal failures into the messages a patient sees.
type UserCategory string

const (
	CategoryTimeout         UserCategory = "timeout"
	CategoryNetwork         UserCategory = "network"
	CategoryServerBusy      UserCategory = "server_busy"
	CategoryEndpointMissing UserCategory = "endpoint_missing"
	CategoryGeneric         UserCategory = "generic"
)

// SupportContact is appended to every user-facing failure message.
type SupportContact struct {
	Phone string
	Email string
}

// ErrorHandler turns arbitrary failures into StandardErrors and user messages.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle normalizes err, logs it with full detail and returns the normalized form.
func (h *ErrorHandler) Handle(operation string, err error) *StandardError {
	stdErr := Normalize(err)
	if h.logger != nil {
		h.logger.Error("operation failed", map[string]interface{}{
			"operation": operation,
			"errorCode": string(stdErr.Code),
			"message":   stdErr.Message,
			"details":   stdErr.Details,
			"retryable": stdErr.Retryable,
			"category":  GetErrorCategory(stdErr.Code),
		})
	}
	return stdErr
}

// Normalize ensures we always have a StandardError. Context deadlines and
// net errors are mapped onto the delivery codes they represent.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}

	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewDeliveryTimeoutError(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewDeliveryTimeoutError(err)
		}
		return NewDeliveryNetworkError(err)
	}

	return NewInternalError(err)
}

// Categorize maps an error code onto the message category shown to users.
func Categorize(code ErrorCode) UserCategory {
	switch code {
	case ErrCodeDeliveryTimeout:
		return CategoryTimeout
	case ErrCodeDeliveryNetworkError:
		return CategoryNetwork
	case ErrCodeDeliveryServerBusy:
		return CategoryServerBusy
	case ErrCodeDeliveryEndpointMissing:
		return CategoryEndpointMissing
	default:
		return CategoryGeneric
	}
}

var userMessages = map[UserCategory]string{
	CategoryTimeout:         "Il server non ha risposto in tempo. Riprova tra qualche minuto.",
	CategoryNetwork:         "Impossibile contattare il server. Verifica la connessione a Internet e riprova.",
	CategoryServerBusy:      "Il servizio è momentaneamente non disponibile. Riprova tra qualche minuto.",
	CategoryEndpointMissing: "Il servizio di invio non è raggiungibile. Ti preghiamo di contattarci.",
	CategoryGeneric:         "Si è verificato un errore durante l'invio del modulo.",
}

// UserMessage renders the patient-facing text for a category. It never
// contains technical detail and ends with whichever support contacts are set.
func UserMessage(category UserCategory, contact SupportContact) string {
	msg, ok := userMessages[category]
	if !ok {
		msg = userMessages[CategoryGeneric]
	}
	if support := contact.sentence(); support != "" {
		return msg + " " + support
	}
	return msg
}

func (c SupportContact) sentence() string {
	phone := strings.TrimSpace(c.Phone)
	email := strings.TrimSpace(c.Email)
	switch {
	case phone != "" && email != "":
		return fmt.Sprintf("Per assistenza contatta il numero %s oppure scrivi a %s.", phone, email)
	case phone != "":
		return fmt.Sprintf("Per assistenza contatta il numero %s.", phone)
	case email != "":
		return fmt.Sprintf("Per assistenza scrivi a %s.", email)
	default:
		return ""
	}
}
