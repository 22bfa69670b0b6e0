// Package render produces the signed-consent PDF.
package render

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"privacy-consent/internal/common/errors"
	"privacy-consent/internal/common/logger"
	"privacy-consent/internal/consent/integrity"
	"privacy-consent/internal/consent/layout"
	"privacy-consent/internal/models"
)

// Page geometry in millimetres.
var a4 = layout.Page{Top: 15, Bottom: 270}

// Document is a rendered consent. Every call yields a new one.
type Document struct {
	PDF         []byte
	Pages       int
	IntegrityID string
	GeneratedAt time.Time
	Timestamp   string // GeneratedAt as printed on the document
}

type Renderer struct {
	clock    func() time.Time
	logger   logger.Logger
	clinic   Clinic
	compress bool
}

type Option func(*Renderer)

func WithClock(clock func() time.Time) Option {
	return func(r *Renderer) { r.clock = clock }
}

func WithLogger(l logger.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

func WithClinic(c Clinic) Option {
	return func(r *Renderer) { r.clinic = c }
}

// WithCompression toggles content stream compression. Uncompressed output
// keeps the text searchable in the raw bytes.
func WithCompression(on bool) Option {
	return func(r *Renderer) { r.compress = on }
}

func New(opts ...Option) *Renderer {
	r := &Renderer{
		clock:    time.Now,
		logger:   logger.NewNoOpLogger(),
		clinic:   DefaultClinic,
		compress: true,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Render lays the form out and paints it. ip should already be resolved,
// the unavailable sentinel included.
func (r *Renderer) Render(ctx context.Context, form *models.FormRecord, ip string, env ClientEnv) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewRenderFailedError(err)
	}
	if form == nil {
		return nil, errors.NewRenderFailedError(fmt.Errorf("nil form"))
	}
	if ip == "" {
		ip = models.IPUnavailable
	}

	at := r.clock()
	f := facts{
		timestamp:   models.FormatTimestamp(at),
		ip:          ip,
		integrityID: integrity.Identifier(form.Get("nome"), form.Get("cognome"), form.Get("codiceFiscale"), at, ip),
		env:         env,
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	p := newPainter(pdf)
	pages := layout.Flow(r.blocks(p, form, f), a4)

	pdf.SetCompression(r.compress)
	pdf.SetTitle("Consenso al trattamento dei dati personali - "+form.FullName(false), true)
	pdf.SetSubject("Prestazione del consenso privacy", true)
	pdf.SetAuthor(r.clinic.Name, true)
	pdf.SetCreator("privacy-consent", true)
	pdf.SetKeywords("privacy consenso GDPR "+f.integrityID, true)
	pdf.SetCreationDate(at)
	pdf.SetModificationDate(at)

	for _, page := range pages {
		p.paint(page)
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.NewRenderFailedError(err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.NewRenderFailedError(err)
	}

	r.logger.Debug("consent document rendered", map[string]interface{}{
		"pages":       len(pages),
		"bytes":       buf.Len(),
		"integrityId": f.integrityID,
	})

	return &Document{
		PDF:         buf.Bytes(),
		Pages:       len(pages),
		IntegrityID: f.integrityID,
		GeneratedAt: at,
		Timestamp:   f.timestamp,
	}, nil
}

// painter draws flowed pages with the core Helvetica font. Text goes through
// the cp1252 translator so accented letters survive.
type painter struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newPainter(pdf *fpdf.Fpdf) *painter {
	pdf.SetMargins(marginLeft, a4.Top, marginLeft)
	pdf.SetAutoPageBreak(false, 0)
	return &painter{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (p *painter) setStyle(s layout.Style) {
	style := ""
	if s.Bold {
		style += "B"
	}
	if s.Italic {
		style += "I"
	}
	p.pdf.SetFont("Helvetica", style, s.Size)
}

// Width implements layout.Measurer.
func (p *painter) Width(text string, s layout.Style) float64 {
	p.setStyle(s)
	return p.pdf.GetStringWidth(p.tr(text))
}

func (p *painter) paint(page layout.Flowed) {
	p.pdf.AddPage()
	for _, placed := range page.Rows {
		for _, span := range placed.Row.Spans {
			if span.Text == "" {
				continue
			}
			p.setStyle(span.Style)
			text := p.tr(span.Text)
			x := span.X
			if span.Align == layout.AlignCenter {
				x -= p.pdf.GetStringWidth(text) / 2
			}
			p.pdf.Text(x, placed.Y, text)
		}
	}
}
