package encoder

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privacy-consent/internal/common/errors"
	"privacy-consent/internal/models"
)

var (
	pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	pdfHeader = []byte("%PDF-1.4\n%test\n")
	jpgHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
)

func newTestFs(t *testing.T, files map[string][]byte) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, data := range files {
		require.NoError(t, afero.WriteFile(fs, name, data, 0o644))
	}
	return fs
}

func TestInspect(t *testing.T) {
	fs := newTestFs(t, map[string][]byte{
		"/docs/fronte.PNG": pngHeader,
		"/docs/retro":      pdfHeader,
		"/docs/note.txt":   []byte("hello"),
	})
	enc := New(fs, nil)

	a, err := enc.Inspect(models.SlotFront, "/docs/fronte.PNG")
	require.NoError(t, err)
	assert.Equal(t, "image/png", a.ContentType)
	assert.Equal(t, "png", a.Ext)
	assert.Equal(t, "fronte.PNG", a.FileName)
	assert.Equal(t, int64(len(pngHeader)), a.Size)
	assert.Nil(t, a.Data)

	a, err = enc.Inspect(models.SlotBack, "/docs/retro")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", a.ContentType)
	assert.Equal(t, "pdf", a.Ext)

	a, err = enc.Inspect(models.SlotBack, "/docs/note.txt")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", a.ContentType)

	_, err = enc.Inspect(models.SlotBack, "/docs/missing.jpg")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeEncodingFailed, errors.CodeOf(err))
}

func TestInspectAll_SkipsEmptySlots(t *testing.T) {
	fs := newTestFs(t, map[string][]byte{"/a.jpg": jpgHeader})

	got, err := New(fs, nil).InspectAll(Sources{models.SlotFront: "/a.jpg", models.SlotBack: ""})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.SlotFront, got[0].Slot)
	assert.Equal(t, "image/jpeg", got[0].ContentType)
}

func TestLoad_SizeBound(t *testing.T) {
	big := append(append([]byte{}, pdfHeader...), bytes.Repeat([]byte{'x'}, models.MaxAttachmentSize)...)
	fs := newTestFs(t, map[string][]byte{"/big.pdf": big})

	_, err := New(fs, nil).Load(models.SlotFront, "/big.pdf")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeEncodingFailed, errors.CodeOf(err))
}

func TestLoad_RejectsDisallowedType(t *testing.T) {
	fs := newTestFs(t, map[string][]byte{"/x.gif": []byte("GIF89a......")})

	_, err := New(fs, nil).Load(models.SlotFront, "/x.gif")
	require.Error(t, err)
}

func TestEncodeAll(t *testing.T) {
	fs := newTestFs(t, map[string][]byte{
		"/fronte.jpg": jpgHeader,
		"/retro.png":  pngHeader,
	})

	got, err := New(fs, nil).EncodeAll(context.Background(), Sources{
		models.SlotFront: "/fronte.jpg",
		models.SlotBack:  "/retro.png",
	})
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, "jpg", got[models.SlotFront].Ext)
	decoded, err := Decode(got[models.SlotFront].Base64)
	require.NoError(t, err)
	assert.Equal(t, jpgHeader, decoded)

	assert.Equal(t, "png", got[models.SlotBack].Ext)
	assert.False(t, got[models.SlotFrontPartner].Present())
	assert.Equal(t, models.EncodedAttachment{}, got[models.SlotBackPartner])
}

func TestEncodeAll_AbortsOnReadFailure(t *testing.T) {
	fs := newTestFs(t, map[string][]byte{"/fronte.jpg": jpgHeader})

	got, err := New(fs, nil).EncodeAll(context.Background(), Sources{
		models.SlotFront: "/fronte.jpg",
		models.SlotBack:  "/gone.jpg",
	})
	require.Error(t, err)
	assert.Nil(t, got)

	var se *errors.StandardError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, string(models.SlotBack), se.Metadata["slot"])
}

func TestEncodeAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(afero.NewMemMapFs(), nil).EncodeAll(ctx, nil)
	assert.Equal(t, errors.ErrCodeEncodingFailed, errors.CodeOf(err))
}

func TestEncodeDocument_RoundTrip(t *testing.T) {
	enc := EncodeDocument(pdfHeader)
	assert.NotContains(t, enc, "-")
	assert.NotContains(t, enc, "_")

	back, err := Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, pdfHeader, back)

	_, err = Decode("not base64!")
	assert.Error(t, err)
}
