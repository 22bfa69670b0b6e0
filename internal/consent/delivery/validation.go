package delivery

import (
	"fmt"

	"privacy-consent/internal/common/validation"
	"privacy-consent/internal/models"
)

const base64Pattern = `^[A-Za-z0-9+/]*={0,2}$`

// payloadSchema checks the shape of the request body before it is decoded.
// Unknown keys are allowed so older clients keep working.
var payloadSchema = validation.MustCompileSchema(fmt.Sprintf(`{
  "type": "object",
  "required": ["nome", "cognome", "pdfBase64"],
  "properties": {
    "nome":      {"type": "string", "minLength": 1},
    "cognome":   {"type": "string", "minLength": 1},
    "pdfBase64": {"type": "string", "minLength": 1, "pattern": %[1]q},
    "timestamp": {"type": "string"},
    "ipAddress": {"type": "string"},
    "userAgent": {"type": "string"},
    "submissionId": {"type": "string"},
    "includePartner": {"type": ["boolean", "string"]},
    "gdprConsent":    {"type": ["boolean", "string"]},
    "privacyConsent": {"type": ["boolean", "string"]},
    %[2]s
  }
}`, base64Pattern, attachmentProperties()))

func attachmentProperties() string {
	out := ""
	for i, slot := range models.AllSlots {
		if i > 0 {
			out += ",\n    "
		}
		out += fmt.Sprintf(`%q: {"type": "string", "pattern": %q}, %q: {"type": "string", "pattern": "^[A-Za-z0-9]{0,5}$"}`,
			string(slot), base64Pattern, slot.ExtKey())
	}
	return out
}

// ValidatePayload checks raw against the payload schema. A body that is not
// JSON at all yields an error.
func ValidatePayload(raw []byte) (*validation.ValidationResult, error) {
	return payloadSchema.ValidateBytes(raw)
}
