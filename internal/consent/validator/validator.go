// Package validator checks a consent form before anything leaves the client.
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"privacy-consent/internal/common/validation"
	"privacy-consent/internal/models"
	"privacy-consent/pkg/registry"
)

// Error codes attached to field errors.
const (
	CodeRequired        = "REQUIRED"
	CodePattern         = "PATTERN"
	CodeConsentRequired = "CONSENT_REQUIRED"
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeFileType        = "FILE_TYPE_NOT_ALLOWED"
)

const (
	msgRequired = "Campo obbligatorio"
	msgTooLarge = "Il file è troppo grande. Massimo 5MB consentiti."
	msgFileType = "Formato file non supportato. Usa JPG, PNG o PDF."
)

var (
	taxCodePattern    = regexp.MustCompile(`^[A-Z]{6}[0-9]{2}[A-Z][0-9]{2}[A-Z][0-9]{3}[A-Z]$`)
	postalCodePattern = regexp.MustCompile(`^[0-9]{5}$`)
	emailPattern      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

type Validator struct {
	registry *registry.FormRegistry
}

func New(reg *registry.FormRegistry) *Validator {
	if reg == nil {
		reg = registry.Default()
	}
	return &Validator{registry: reg}
}

// Validate checks required fields, format rules and both consents.
// Attachments, when given, are checked against the size bound and allow-list.
func (v *Validator) Validate(form *models.FormRecord, attachments ...models.Attachment) *validation.ValidationResult {
	res := validation.NewResult()
	if form == nil {
		form = models.NewFormRecord()
	}

	for _, field := range v.registry.Fields {
		value := strings.TrimSpace(form.Get(field.Name))
		required := field.Required && (field.Section == registry.SectionPrimary || form.IncludePartner)

		if value == "" {
			if required {
				res.Add(field.Name, msgRequired, CodeRequired)
			}
			continue
		}

		if !MatchesKind(field.Kind, value) {
			msg := field.InvalidMessage
			if msg == "" {
				msg = fmt.Sprintf("%s non valido", field.Label)
			}
			res.Add(field.Name, msg, CodePattern)
		}
	}

	for _, consent := range v.registry.Consents {
		if !consentGiven(form, consent.Name) {
			res.Add(consent.Name, consent.RequiredMessage, CodeConsentRequired)
		}
	}

	for _, a := range attachments {
		v.validateAttachment(res, a)
	}

	return res
}

func (v *Validator) validateAttachment(res *validation.ValidationResult, a models.Attachment) {
	field := string(a.Slot)
	if a.Size > models.MaxAttachmentSize {
		res.Add(field, msgTooLarge, CodeFileTooLarge)
	}
	if _, ok := models.AllowedContentTypes[a.ContentType]; !ok {
		res.Add(field, msgFileType, CodeFileType)
	}
}

func consentGiven(form *models.FormRecord, name string) bool {
	switch name {
	case "gdprConsent":
		return form.GDPRConsent
	case "privacyConsent":
		return form.PrivacyConsent
	default:
		v := strings.ToLower(strings.TrimSpace(form.Get(name)))
		return v == "true" || v == "on" || v == "1"
	}
}

// MatchesKind applies the format rule of kind to a non-empty value.
// Kinds without a rule always match.
func MatchesKind(kind registry.Kind, value string) bool {
	switch kind {
	case registry.KindTaxCode:
		return ValidTaxCode(value)
	case registry.KindPostalCode:
		return ValidPostalCode(value)
	case registry.KindEmail:
		return ValidEmail(value)
	default:
		return true
	}
}

// ValidTaxCode accepts the 16-character Italian codice fiscale in any case.
func ValidTaxCode(s string) bool {
	return taxCodePattern.MatchString(strings.ToUpper(s))
}

func ValidPostalCode(s string) bool {
	return postalCodePattern.MatchString(s)
}

func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}
