package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormRecord_Normalize(t *testing.T) {
	f := NewFormRecord()
	f.Set("nome", "  Mario ")
	f.Set("codiceFiscale", "rssmra80a01h501u")
	f.Set("nomePartner", "Anna")
	f.Set("codiceFiscalePartner", "vrdnna82b41h501x")

	f.Normalize()

	assert.Equal(t, "Mario", f.Get("nome"))
	assert.Equal(t, "RSSMRA80A01H501U", f.Get("codiceFiscale"))
	assert.Empty(t, f.Get("nomePartner"), "partner values are cleared when the block is off")
	assert.Empty(t, f.Get("codiceFiscalePartner"))

	f.IncludePartner = true
	f.Set("nomePartner", "Anna")
	f.Normalize()
	assert.Equal(t, "Anna", f.Get("nomePartner"))
}

func TestFormRecord_HasData(t *testing.T) {
	var nilForm *FormRecord
	assert.False(t, nilForm.HasData())

	f := NewFormRecord()
	assert.False(t, f.HasData())
	f.Set("nome", "   ")
	assert.False(t, f.HasData())
	f.Set("nome", "M")
	assert.True(t, f.HasData())
}

func TestFormRecord_CloneAndFullName(t *testing.T) {
	f := NewFormRecord()
	f.Set("nome", "Mario")
	f.Set("cognome", "Rossi")

	c := f.Clone()
	c.Set("nome", "Luigi")

	assert.Equal(t, "Mario Rossi", f.FullName(false))
	assert.Equal(t, "Luigi Rossi", c.FullName(false))
	assert.Equal(t, "", f.FullName(true))
}

func TestSubmissionPayload_WireShape(t *testing.T) {
	p := SubmissionPayload{
		Fields:         map[string]string{"nome": "Mario", "cognome": "Rossi"},
		IncludePartner: false,
		GDPRConsent:    true,
		PrivacyConsent: true,
		Timestamp:      "15/10/2026, 10:00:00",
		IPAddress:      "203.0.113.7",
		UserAgent:      "ua",
		PDFBase64:      "JVBERi0=",
		Attachments: map[AttachmentSlot]EncodedAttachment{
			SlotFront: {Base64: "aGVsbG8=", Ext: "jpg"},
		},
	}

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var flat map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &flat))

	assert.Equal(t, "Mario", flat["nome"])
	assert.Equal(t, "aGVsbG8=", flat["documentoFrente"])
	assert.Equal(t, "jpg", flat["documentoFrenteExt"])
	for _, key := range []string{"documentoRetro", "documentoRetroExt", "documentoFrentePartner", "documentoFrentePartnerExt", "documentoRetroPartner", "documentoRetroPartnerExt"} {
		v, ok := flat[key]
		assert.True(t, ok, "key %s must be present", key)
		assert.Equal(t, "", v)
	}
	_, hasID := flat["submissionId"]
	assert.False(t, hasID)

	var back SubmissionPayload
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, p.Fields, back.Fields)
	assert.True(t, back.GDPRConsent)
	assert.Equal(t, "jpg", back.Attachment(SlotFront).Ext)
	assert.False(t, back.Attachment(SlotBackPartner).Present())
}

func TestAttachmentSlot(t *testing.T) {
	assert.True(t, SlotFrontPartner.IsPartner())
	assert.False(t, SlotBack.IsPartner())
	assert.True(t, SlotFront.IsFront())
	assert.False(t, SlotBackPartner.IsFront())
	assert.Equal(t, "documentoRetroExt", SlotBack.ExtKey())
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2026, 10, 15, 8, 30, 5, 0, time.UTC)
	got := FormatTimestamp(ts)
	assert.Regexp(t, `^15/10/2026, \d{2}:30:05$`, got)
}
