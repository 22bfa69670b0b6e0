package render

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privacy-consent/internal/common/errors"
	"privacy-consent/internal/consent/layout"
	"privacy-consent/internal/models"
)

// ==========================
// Test Helpers
// ==========================

var fixedTime = time.Date(2024, 3, 1, 9, 30, 15, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

func createValidForm() *models.FormRecord {
	f := models.NewFormRecord()
	for k, v := range map[string]string{
		"nome":               "Mario",
		"cognome":            "Rossi",
		"dataNascita":        "01/01/1980",
		"luogoNascita":       "Roma",
		"professione":        "Ingegnere",
		"indirizzo":          "Via Appia 1",
		"citta":              "Roma",
		"cap":                "00100",
		"codiceFiscale":      "RSSMRA80A01H501U",
		"numeroDocumento":    "CA12345AB",
		"scadenzaDocumento":  "01/01/2030",
		"telefono":           "3331234567",
		"email":              "mario@example.it",
		"emailComunicazioni": "referti@example.it",
	} {
		f.Set(k, v)
	}
	f.GDPRConsent = true
	f.PrivacyConsent = true
	return f
}

func withPartner(f *models.FormRecord) *models.FormRecord {
	f.IncludePartner = true
	f.Set("nomePartner", "Anna")
	f.Set("cognomePartner", "Verdi")
	f.Set("codiceFiscalePartner", "VRDNNA82B41F205X")
	return f
}

func newTestRenderer() *Renderer {
	return New(WithClock(fixedClock), WithCompression(false))
}

// fixedMeasurer gives every rune the same width.
type fixedMeasurer float64

func (f fixedMeasurer) Width(text string, _ layout.Style) float64 {
	return float64(len([]rune(text))) * float64(f)
}

func allText(blocks []layout.Block) string {
	var sb strings.Builder
	for _, b := range blocks {
		for _, r := range b.Rows {
			for _, s := range r.Spans {
				sb.WriteString(s.Text)
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

func blockNames(blocks []layout.Block) []string {
	names := make([]string, len(blocks))
	for i, b := range blocks {
		names[i] = b.Name
	}
	return names
}

// ==========================
// Render Tests
// ==========================

func TestRender_PrimaryOnly(t *testing.T) {
	doc, err := newTestRenderer().Render(context.Background(), createValidForm(), "203.0.113.7", ClientEnv{})
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(doc.PDF, []byte("%PDF-")))
	assert.Contains(t, string(doc.PDF), "Mario Rossi")
	assert.Contains(t, string(doc.PDF), "203.0.113.7")
	assert.Contains(t, string(doc.PDF), doc.IntegrityID)
	assert.NotContains(t, string(doc.PDF), "DATI PARTNER")
	assert.GreaterOrEqual(t, doc.Pages, 1)
	assert.Equal(t, fixedTime, doc.GeneratedAt)
	assert.Equal(t, models.FormatTimestamp(fixedTime), doc.Timestamp)
}

func TestRender_WithPartner(t *testing.T) {
	doc, err := newTestRenderer().Render(context.Background(), withPartner(createValidForm()), "203.0.113.7", ClientEnv{})
	require.NoError(t, err)

	assert.Contains(t, string(doc.PDF), "DATI PARTNER")
	assert.Contains(t, string(doc.PDF), "Anna Verdi")
}

func TestRender_EmptyIPUsesSentinel(t *testing.T) {
	doc, err := newTestRenderer().Render(context.Background(), createValidForm(), "", ClientEnv{})
	require.NoError(t, err)
	assert.Contains(t, string(doc.PDF), "Indirizzo IP: Non disponibile")
}

func TestRender_NotIdempotent(t *testing.T) {
	now := fixedTime
	clock := func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	r := New(WithClock(clock))

	a, err := r.Render(context.Background(), createValidForm(), "203.0.113.7", ClientEnv{})
	require.NoError(t, err)
	b, err := r.Render(context.Background(), createValidForm(), "203.0.113.7", ClientEnv{})
	require.NoError(t, err)

	assert.NotEqual(t, a.IntegrityID, b.IntegrityID)
	assert.NotEqual(t, a.Timestamp, b.Timestamp)
}

func TestRender_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestRenderer().Render(ctx, createValidForm(), "203.0.113.7", ClientEnv{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRenderFailed, errors.CodeOf(err))
}

func TestRender_NilForm(t *testing.T) {
	_, err := newTestRenderer().Render(context.Background(), nil, "203.0.113.7", ClientEnv{})
	assert.Equal(t, errors.ErrCodeRenderFailed, errors.CodeOf(err))
}

func TestRender_LongValuesPaginate(t *testing.T) {
	f := withPartner(createValidForm())
	f.Set("emailComunicazioni", strings.Repeat("lunghissimo ", 400)+"@example.it")

	doc, err := newTestRenderer().Render(context.Background(), f, "203.0.113.7", ClientEnv{})
	require.NoError(t, err)
	assert.Greater(t, doc.Pages, 1)
}

// ==========================
// Content Tests
// ==========================

func TestBlocks_TableValuesStayInsidePage(t *testing.T) {
	m := fixedMeasurer(2)
	f := createValidForm()
	longAddress := "Via dei Castelli Romani e delle Terme di Caracalla " + strings.Repeat("interno ", 12) + "scala B"
	longEmail := strings.Repeat("mario.rossi.", 8) + "lungo@example-clinica.it"
	f.Set("indirizzo", longAddress)
	f.Set("email", longEmail)

	rows := personTable(m, f, false)
	var text strings.Builder
	for _, r := range rows {
		for _, sp := range r.Spans {
			assert.LessOrEqual(t, sp.X+m.Width(sp.Text, sp.Style), marginLeft+textWidth, sp.Text)
			if sp.Style == valueStyle {
				text.WriteString(sp.Text)
			}
		}
	}

	squash := func(v string) string { return strings.ReplaceAll(v, " ", "") }
	assert.Contains(t, squash(text.String()), squash(longAddress))
	assert.Contains(t, squash(text.String()), longEmail)
	assert.Greater(t, len(rows), 7)
	assert.Equal(t, tableLine, rows[len(rows)-1].Advance)
}

func TestTableRows_TwoColumnsWrapIndependently(t *testing.T) {
	m := fixedMeasurer(2)
	name := "Maria Antonietta Francesca Benedetta Rossi Bianchi"
	job := "Ingegnere strutturista specializzato in consolidamento"

	rows := tableRows(m, cell{"Nome e Cognome:", name, 35}, &cell{"Professione:", job, 25})
	require.Greater(t, len(rows), 1)

	var left, right []string
	for i, r := range rows {
		for _, sp := range r.Spans {
			end := sp.X + m.Width(sp.Text, sp.Style)
			switch {
			case sp.Style == labelStyle:
				assert.Zero(t, i, "labels only on the first line")
			case sp.X < rightColumn:
				assert.LessOrEqual(t, end, rightColumn-columnGap, sp.Text)
				left = append(left, sp.Text)
			default:
				assert.LessOrEqual(t, end, marginLeft+textWidth, sp.Text)
				right = append(right, sp.Text)
			}
		}
		if i < len(rows)-1 {
			assert.Equal(t, proseLine, r.Advance)
		}
	}
	assert.Equal(t, name, strings.Join(left, " "))
	assert.Equal(t, job, strings.Join(right, " "))
	assert.Equal(t, tableLine, rows[len(rows)-1].Advance)
}

func TestBlocks_Order(t *testing.T) {
	r := New()
	f := facts{timestamp: "01/03/2024, 10:30:15", ip: "203.0.113.7", integrityID: "ABCDEF0123456789"}

	got := blockNames(r.blocks(fixedMeasurer(2), createValidForm(), f))
	assert.Equal(t, []string{"title", "primary", "consent", "controller", "date", "trace", "note", "footer"}, got)

	got = blockNames(r.blocks(fixedMeasurer(2), withPartner(createValidForm()), f))
	assert.Equal(t, []string{"title", "primary", "partner", "consent", "controller", "date", "trace", "note", "footer"}, got)
}

func TestBlocks_PartnerFlagWithoutName(t *testing.T) {
	f := createValidForm()
	f.IncludePartner = true

	blocks := New().blocks(fixedMeasurer(2), f, facts{})
	assert.NotContains(t, blockNames(blocks), "partner")
	assert.NotContains(t, allText(blocks), " e  ")
}

func TestBlocks_ConsentText(t *testing.T) {
	text := allText(New().blocks(fixedMeasurer(1), withPartner(createValidForm()), facts{}))

	assert.Contains(t, text, "Il/La sottoscritto/a Mario Rossi e Anna Verdi, pienamente consapevole")
	assert.Contains(t, text, "referti@example.it")
	assert.Contains(t, text, "Dr Claudio Manna")
}

func TestBlocks_TraceBlock(t *testing.T) {
	env := ClientEnv{
		UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ScreenResolution: "1920x1080",
		Language:         "it-IT",
	}
	f := facts{timestamp: "01/03/2024, 10:30:15", ip: "Non disponibile", integrityID: "ABCDEF0123456789", env: env}

	blocks := New().blocks(fixedMeasurer(1), createValidForm(), f)
	var trace layout.Block
	for _, b := range blocks {
		if b.Name == "trace" {
			trace = b
		}
	}
	require.NotEmpty(t, trace.Rows)
	assert.True(t, trace.KeepTogether)

	text := allText([]layout.Block{trace})
	assert.Contains(t, text, "DATI DI TRACCIABILITÀ:")
	assert.Contains(t, text, "non ne certifica l'integrità")
	assert.Contains(t, text, "Compilato il: 01/03/2024, 10:30:15")
	assert.Contains(t, text, "Indirizzo IP: Non disponibile")
	assert.Contains(t, text, "ABCDEF0123456789")
	assert.Contains(t, text, "Risoluzione schermo: 1920x1080")
	assert.Contains(t, text, "Lingua: it-IT")
	assert.Contains(t, text, "Chrome")
	assert.NotContains(t, text, "Piattaforma")
}

func TestBlocks_ControllerBreaksEarly(t *testing.T) {
	for _, b := range New().blocks(fixedMeasurer(1), createValidForm(), facts{}) {
		if b.Name == "controller" {
			assert.Equal(t, 260.0, b.BreakBelow)
			return
		}
	}
	t.Fatal("controller block missing")
}

func TestFlowedRowsStayInBounds(t *testing.T) {
	f := withPartner(createValidForm())
	f.Set("emailComunicazioni", strings.Repeat("x ", 600))

	pages := layout.Flow(New().blocks(fixedMeasurer(2), f, facts{}), a4)
	require.Greater(t, len(pages), 1)
	for _, p := range pages {
		for _, r := range p.Rows {
			assert.LessOrEqual(t, r.Y, a4.Bottom)
			assert.GreaterOrEqual(t, r.Y, a4.Top)
		}
	}
}

// ==========================
// ClientEnv Tests
// ==========================

func TestClientEnv_Browser(t *testing.T) {
	assert.Empty(t, ClientEnv{}.Browser())

	env := ClientEnv{UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"}
	got := env.Browser()
	assert.Contains(t, got, "Chrome")
	assert.Contains(t, got, "120")
	assert.Contains(t, got, "Windows")
}
