package models

import "strings"

// AttachmentSlot names one of the four identity-document uploads.
type AttachmentSlot string

const (
	SlotFront        AttachmentSlot = "documentoFrente"
	SlotBack         AttachmentSlot = "documentoRetro"
	SlotFrontPartner AttachmentSlot = "documentoFrentePartner"
	SlotBackPartner  AttachmentSlot = "documentoRetroPartner"
)

// AllSlots lists the slots in wire order.
var AllSlots = []AttachmentSlot{SlotFront, SlotBack, SlotFrontPartner, SlotBackPartner}

// MaxAttachmentSize is the per-file upload bound.
const MaxAttachmentSize = 5 << 20

// AllowedContentTypes is the upload allow-list, keyed by media type.
var AllowedContentTypes = map[string]string{
	"image/jpeg":      "jpg",
	"image/jpg":       "jpg",
	"image/png":       "png",
	"application/pdf": "pdf",
}

func (s AttachmentSlot) IsPartner() bool {
	return strings.HasSuffix(string(s), "Partner")
}

func (s AttachmentSlot) IsFront() bool {
	return strings.HasPrefix(string(s), "documentoFrente")
}

// ExtKey is the payload key carrying the slot's file extension.
func (s AttachmentSlot) ExtKey() string {
	return string(s) + "Ext"
}

// Attachment is one uploaded file, already read into memory.
type Attachment struct {
	Slot        AttachmentSlot `json:"slot"`
	FileName    string         `json:"fileName"`
	Ext         string         `json:"ext"`
	ContentType string         `json:"contentType"`
	Size        int64          `json:"size"`
	Data        []byte         `json:"-"`
}

// EncodedAttachment is the transport form of an attachment. Both fields are
// empty when the slot has no file.
type EncodedAttachment struct {
	Base64 string `json:"base64"`
	Ext    string `json:"ext"`
}

func (e EncodedAttachment) Present() bool {
	return e.Base64 != ""
}
