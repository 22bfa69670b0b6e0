// Package encoder turns the rendered document and the identity-document
// uploads into their transport form.
package encoder

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"privacy-consent/internal/common/errors"
	"privacy-consent/internal/common/logger"
	"privacy-consent/internal/models"
)

const sniffLen = 512

// Sources maps a slot to the path of the file chosen for it. Missing or
// empty entries mean no file.
type Sources map[models.AttachmentSlot]string

var extTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"pdf":  "application/pdf",
}

type Encoder struct {
	fs      afero.Fs
	maxSize int64
	logger  logger.Logger
}

func New(fs afero.Fs, log logger.Logger) *Encoder {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Encoder{fs: fs, maxSize: models.MaxAttachmentSize, logger: log}
}

// Inspect reads only the file metadata and the first bytes, enough to
// validate size and type before anything is encoded.
func (e *Encoder) Inspect(slot models.AttachmentSlot, path string) (models.Attachment, error) {
	info, err := e.fs.Stat(path)
	if err != nil {
		return models.Attachment{}, errors.NewEncodingFailedError(string(slot), err)
	}
	if info.IsDir() {
		return models.Attachment{}, errors.NewEncodingFailedError(string(slot), fmt.Errorf("%s is a directory", path))
	}

	f, err := e.fs.Open(path)
	if err != nil {
		return models.Attachment{}, errors.NewEncodingFailedError(string(slot), err)
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return models.Attachment{}, errors.NewEncodingFailedError(string(slot), err)
	}

	return describe(slot, path, head[:n], info.Size()), nil
}

// InspectAll runs Inspect over every non-empty source in slot order.
func (e *Encoder) InspectAll(srcs Sources) ([]models.Attachment, error) {
	var out []models.Attachment
	for _, slot := range models.AllSlots {
		path := srcs[slot]
		if path == "" {
			continue
		}
		a, err := e.Inspect(slot, path)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Load reads a whole file, enforcing the size bound and the allow-list.
func (e *Encoder) Load(slot models.AttachmentSlot, path string) (models.Attachment, error) {
	f, err := e.fs.Open(path)
	if err != nil {
		return models.Attachment{}, errors.NewEncodingFailedError(string(slot), err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, e.maxSize+1))
	if err != nil {
		return models.Attachment{}, errors.NewEncodingFailedError(string(slot), err)
	}
	if int64(len(data)) > e.maxSize {
		return models.Attachment{}, errors.NewEncodingFailedError(string(slot),
			fmt.Errorf("file exceeds %d bytes", e.maxSize))
	}

	a := describe(slot, path, data, int64(len(data)))
	if _, ok := models.AllowedContentTypes[a.ContentType]; !ok {
		return models.Attachment{}, errors.NewEncodingFailedError(string(slot),
			fmt.Errorf("content type %q not allowed", a.ContentType))
	}
	a.Data = data
	return a, nil
}

// EncodeAll loads and encodes every slot. Slots without a source encode to
// empty values so the payload always carries all of them. The first read
// failure aborts the whole batch.
func (e *Encoder) EncodeAll(ctx context.Context, srcs Sources) (map[models.AttachmentSlot]models.EncodedAttachment, error) {
	out := make(map[models.AttachmentSlot]models.EncodedAttachment, len(models.AllSlots))
	for _, slot := range models.AllSlots {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewEncodingFailedError(string(slot), err)
		}

		path := srcs[slot]
		if path == "" {
			out[slot] = models.EncodedAttachment{}
			continue
		}

		a, err := e.Load(slot, path)
		if err != nil {
			e.logger.Warn("attachment read failed", map[string]interface{}{
				"slot":  string(slot),
				"error": err.Error(),
			})
			return nil, err
		}
		out[slot] = Encode(a)

		e.logger.Debug("attachment encoded", map[string]interface{}{
			"slot":        string(slot),
			"contentType": a.ContentType,
			"size":        a.Size,
		})
	}
	return out, nil
}

// Encode produces the transport form of a loaded attachment.
func Encode(a models.Attachment) models.EncodedAttachment {
	if len(a.Data) == 0 {
		return models.EncodedAttachment{}
	}
	return models.EncodedAttachment{
		Base64: base64.StdEncoding.EncodeToString(a.Data),
		Ext:    a.Ext,
	}
}

// EncodeDocument encodes the rendered PDF.
func EncodeDocument(pdf []byte) string {
	return base64.StdEncoding.EncodeToString(pdf)
}

func Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

func describe(slot models.AttachmentSlot, path string, head []byte, size int64) models.Attachment {
	name := filepath.Base(path)
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	ct := contentType(head, ext)
	if ext == "" {
		ext = models.AllowedContentTypes[ct]
	}
	return models.Attachment{
		Slot:        slot,
		FileName:    name,
		Ext:         ext,
		ContentType: ct,
		Size:        size,
	}
}

// contentType sniffs the data and falls back to the file extension when
// sniffing does not land on an allowed type.
func contentType(head []byte, ext string) string {
	sniffed := strings.TrimSpace(strings.Split(http.DetectContentType(head), ";")[0])
	if _, ok := models.AllowedContentTypes[sniffed]; ok {
		return sniffed
	}
	if ct, ok := extTypes[ext]; ok && (len(head) == 0 || sniffed == "application/octet-stream") {
		return ct
	}
	return sniffed
}
