package models

import (
	"encoding/json"
	"fmt"
)

// Keys the payload reserves next to the flattened form values.
const (
	KeyTimestamp      = "timestamp"
	KeyIPAddress      = "ipAddress"
	KeyUserAgent      = "userAgent"
	KeyPDFBase64      = "pdfBase64"
	KeyIncludePartner = "includePartner"
	KeyGDPRConsent    = "gdprConsent"
	KeyPrivacyConsent = "privacyConsent"
	KeySubmissionID   = "submissionId"
)

// SubmissionPayload is the body posted to the delivery endpoint. On the wire
// form values sit at the top level next to the derived fields, and every
// attachment slot is present with an empty string when unused.
type SubmissionPayload struct {
	Fields         map[string]string
	IncludePartner bool
	GDPRConsent    bool
	PrivacyConsent bool
	Timestamp      string
	IPAddress      string
	UserAgent      string
	PDFBase64      string
	SubmissionID   string
	Attachments    map[AttachmentSlot]EncodedAttachment
}

func (p *SubmissionPayload) Field(name string) string {
	return p.Fields[name]
}

func (p *SubmissionPayload) Attachment(slot AttachmentSlot) EncodedAttachment {
	return p.Attachments[slot]
}

func (p SubmissionPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.ToMap())
}

// ToMap returns the flattened wire representation.
func (p SubmissionPayload) ToMap() map[string]interface{} {
	out := make(map[string]interface{}, len(p.Fields)+16)
	for k, v := range p.Fields {
		out[k] = v
	}
	out[KeyTimestamp] = p.Timestamp
	out[KeyIPAddress] = p.IPAddress
	out[KeyUserAgent] = p.UserAgent
	out[KeyPDFBase64] = p.PDFBase64
	out[KeyIncludePartner] = p.IncludePartner
	out[KeyGDPRConsent] = p.GDPRConsent
	out[KeyPrivacyConsent] = p.PrivacyConsent
	if p.SubmissionID != "" {
		out[KeySubmissionID] = p.SubmissionID
	}
	for _, slot := range AllSlots {
		a := p.Attachments[slot]
		out[string(slot)] = a.Base64
		out[slot.ExtKey()] = a.Ext
	}
	return out
}

func (p *SubmissionPayload) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.Fields = make(map[string]string)
	p.Attachments = make(map[AttachmentSlot]EncodedAttachment, len(AllSlots))

	reserved := map[string]bool{}
	for _, slot := range AllSlots {
		reserved[string(slot)] = true
		reserved[slot.ExtKey()] = true
		p.Attachments[slot] = EncodedAttachment{
			Base64: stringValue(raw[string(slot)]),
			Ext:    stringValue(raw[slot.ExtKey()]),
		}
	}

	for k, v := range raw {
		switch k {
		case KeyTimestamp:
			p.Timestamp = stringValue(v)
		case KeyIPAddress:
			p.IPAddress = stringValue(v)
		case KeyUserAgent:
			p.UserAgent = stringValue(v)
		case KeyPDFBase64:
			p.PDFBase64 = stringValue(v)
		case KeySubmissionID:
			p.SubmissionID = stringValue(v)
		case KeyIncludePartner:
			p.IncludePartner = boolValue(v)
		case KeyGDPRConsent:
			p.GDPRConsent = boolValue(v)
		case KeyPrivacyConsent:
			p.PrivacyConsent = boolValue(v)
		default:
			if reserved[k] {
				continue
			}
			if s, ok := v.(string); ok {
				p.Fields[k] = s
			}
		}
	}
	return nil
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func boolValue(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "on"
	default:
		return false
	}
}

// DeliveryResponse is the success body of the delivery endpoint.
type DeliveryResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	DocumentID string `json:"documentId"`
	Timestamp  string `json:"timestamp"`
}

// ErrorResponse is the body of every endpoint failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// IPResponse is the body of the IP lookup endpoint.
type IPResponse struct {
	IP        string `json:"ip"`
	Timestamp string `json:"timestamp,omitempty"`
	Error     string `json:"error,omitempty"`
}
