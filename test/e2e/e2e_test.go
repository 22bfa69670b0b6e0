// test/e2e/e2e_test.go
package e2e

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privacy-consent/internal/common/config"
	"privacy-consent/internal/common/database"
	"privacy-consent/internal/common/errors"
	commonhttp "privacy-consent/internal/common/http"
	"privacy-consent/internal/common/logger"
	"privacy-consent/internal/consent/delivery"
	"privacy-consent/internal/consent/encoder"
	"privacy-consent/internal/consent/iplookup"
	"privacy-consent/internal/consent/ipreflect"
	"privacy-consent/internal/consent/render"
	"privacy-consent/internal/consent/submission"
	"privacy-consent/internal/consent/validator"
	"privacy-consent/internal/mail"
	"privacy-consent/internal/models"
	"privacy-consent/internal/ratelimit"
	"privacy-consent/internal/server"
)

// ==========================
// Fakes
// ==========================

// recordingMailer renders every message through go-mail and keeps it.
type recordingMailer struct {
	mu   sync.Mutex
	msgs []*mail.Message
	raws [][]byte
}

func (m *recordingMailer) Send(ctx context.Context, msg *mail.Message) (string, error) {
	raw, err := mail.Render(msg)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	m.raws = append(m.raws, raw)
	return msg.MessageID, nil
}

func (m *recordingMailer) Provider() string { return "recording" }

func (m *recordingMailer) sent() []*mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*mail.Message(nil), m.msgs...)
}

// ==========================
// Environment
// ==========================

var jpgBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

type env struct {
	t          *testing.T
	cfg        *config.Config
	mailer     *recordingMailer
	server     *httptest.Server
	ipService  *httptest.Server
	hits       atomic.Int64
	ipHits     atomic.Int64
	fs         afero.Fs
	submission *submission.Service
}

// newEnv starts the consent server behind httptest and builds a client
// pointed at it. requests > 0 enables the Redis rate limiter.
func newEnv(t *testing.T, requests int) *env {
	t.Helper()
	log := logger.NewTestLogger(t)

	cfg := config.Defaults()
	cfg.Mail.SMTP.From = "modulo@biofertility.example"

	e := &env{t: t, cfg: cfg, mailer: &recordingMailer{}, fs: afero.NewMemMapFs()}

	sendEmail, err := delivery.NewHandler(delivery.HandlerOptions{
		AppConfig: cfg,
		Mailer:    e.mailer,
		Logger:    log,
	})
	require.NoError(t, err)

	opts := server.Options{
		SendEmail: sendEmail,
		GetIP:     ipreflect.NewHandler(ipreflect.HandlerOptions{Logger: log}),
		Logger:    log,
	}
	if requests > 0 {
		mr := miniredis.RunT(t)
		rdb, err := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
		require.NoError(t, err)
		t.Cleanup(func() { _ = rdb.Close() })
		opts.RateLimit = ratelimit.New(rdb, ratelimit.Config{
			Requests:  requests,
			Window:    time.Minute,
			KeyPrefix: cfg.RateLimit.KeyPrefix,
		}, log).Middleware
	}

	router := server.NewRouter(opts)
	e.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.hits.Add(1)
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(e.server.Close)

	// The public lookup services are down; resolution falls back to the
	// reflection endpoint.
	e.ipService = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.ipHits.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(e.ipService.Close)

	cfg.Client.DeliveryURL = e.server.URL + "/api/send-email"
	cfg.Client.IPReflectURL = e.server.URL + "/.netlify/functions/get-ip"
	cfg.Client.IPServices = []string{e.ipService.URL}

	scfg := submission.ConfigFromAppConfig(cfg)
	scfg.Policy.Sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	require.NoError(t, scfg.Validate())

	e.submission = submission.NewService(submission.ServiceDependencies{
		Validator: validator.New(nil),
		Resolver: iplookup.NewResolver(iplookup.Config{
			Services:   cfg.Client.IPServices,
			ReflectURL: cfg.Client.IPReflectURL,
			Timeout:    time.Second,
		}, nil, log),
		Renderer:  render.New(render.WithCompression(false), render.WithLogger(log)),
		Encoder:   encoder.New(e.fs, log),
		Transport: commonhttp.NewClient(scfg.Policy.AttemptTimeout),
		Logger:    log,
	}, scfg)

	require.NoError(t, afero.WriteFile(e.fs, "/upload/fronte.jpg", jpgBytes, 0o644))
	return e
}

func marioRossi() *models.FormRecord {
	f := models.NewFormRecord()
	for k, v := range map[string]string{
		"nome":               "Mario",
		"cognome":            "Rossi",
		"dataNascita":        "01/08/1985",
		"luogoNascita":       "Roma",
		"professione":        "Impiegato",
		"indirizzo":          "Via Roma 1",
		"citta":              "Roma",
		"cap":                "00100",
		"codiceFiscale":      "rssmra85m01h501z",
		"numeroDocumento":    "CA00000AA",
		"scadenzaDocumento":  "01/01/2030",
		"telefono":           "3330000000",
		"email":              "mario@test.it",
		"emailComunicazioni": "mario@test.it",
	} {
		f.Set(k, v)
	}
	f.GDPRConsent = true
	f.PrivacyConsent = true
	return f
}

func (e *env) submit(form *models.FormRecord, session *submission.Session) (*submission.Outcome, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return e.submission.Submit(ctx, session, submission.Request{
		Form:    form,
		Sources: encoder.Sources{models.SlotFront: "/upload/fronte.jpg"},
		Env: render.ClientEnv{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Language:  "it-IT",
		},
	})
}

// ==========================
// Full flow
// ==========================

func TestFullFlow_MarioRossi(t *testing.T) {
	e := newEnv(t, 0)

	session := submission.NewSession()
	var states []submission.State
	session.Subscribe(func(tr submission.Transition) { states = append(states, tr.To) })
	form := marioRossi()
	session.Edit(form)
	require.True(t, session.ExitNeedsConfirmation())

	outcome, err := e.submit(form, session)
	require.NoError(t, err)

	assert.Equal(t, submission.StateSuccess, outcome.State)
	assert.Equal(t, submission.StateSuccess, session.State())
	assert.Equal(t, 1, outcome.Attempts)
	assert.Equal(t, iplookup.SourceReflect, outcome.IPSource)
	assert.Equal(t, "127.0.0.1", outcome.IP)
	assert.Equal(t, int64(1), e.ipHits.Load())
	assert.False(t, session.ExitNeedsConfirmation())
	assert.Equal(t, []submission.State{
		submission.StateValidating,
		submission.StateResolvingIP,
		submission.StateRendering,
		submission.StateEncoding,
		submission.StateSending,
		submission.StateSuccess,
	}, states)

	require.NotNil(t, outcome.Response)
	assert.True(t, outcome.Response.Success)
	assert.Equal(t, "Email inviata con successo", outcome.Response.Message)
	assert.Regexp(t, `^[0-9A-F]{16}$`, outcome.Response.DocumentID)

	sent := e.mailer.sent()
	require.Len(t, sent, 1, "exactly one email per submission")
	msg := sent[0]
	assert.Equal(t, []string{"centrimanna2@gmail.com"}, msg.To)
	assert.Equal(t, "Nuovo Modulo Privacy - Mario Rossi", msg.Subject)
	require.Len(t, msg.Attachments, 2)
	assert.Equal(t, "modulo_privacy_Mario_Rossi.pdf", msg.Attachments[0].Name)
	assert.Equal(t, "documento_fronte_Mario.jpg", msg.Attachments[1].Name)
	assert.Equal(t, jpgBytes, msg.Attachments[1].Data)

	pdf := msg.Attachments[0].Data
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
	assert.True(t, bytes.Contains(pdf, []byte("Mario")))
	assert.True(t, bytes.Contains(pdf, []byte("RSSMRA85M01H501Z")), "tax code is upper-cased before rendering")
	assert.True(t, bytes.Contains(pdf, []byte(outcome.IntegrityID)))

	assert.Contains(t, msg.HTML, "RSSMRA85M01H501Z")
	assert.Contains(t, msg.HTML, outcome.Timestamp)
	assert.Contains(t, string(e.mailer.raws[0]), "modulo_privacy_Mario_Rossi.pdf")
}

func TestFullFlow_InvalidPostalCodeNeverReachesNetwork(t *testing.T) {
	e := newEnv(t, 0)

	form := marioRossi()
	form.Set("cap", "123")
	session := submission.NewSession()

	outcome, err := e.submit(form, session)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.CodeOf(err))

	require.NotNil(t, outcome)
	assert.Equal(t, submission.StateInvalid, outcome.State)
	assert.Equal(t, submission.StateIdle, session.State())
	require.NotNil(t, outcome.Validation)
	assert.True(t, outcome.Validation.HasErrors("cap"))

	assert.Zero(t, e.hits.Load(), "no request reaches the server")
	assert.Zero(t, e.ipHits.Load(), "no IP lookup is made")
	assert.Empty(t, e.mailer.sent())
}

func TestFullFlow_PartnerDocuments(t *testing.T) {
	e := newEnv(t, 0)
	require.NoError(t, afero.WriteFile(e.fs, "/upload/partner.jpg", jpgBytes, 0o644))

	form := marioRossi()
	form.IncludePartner = true
	for k, v := range map[string]string{
		"nomePartner":              "Anna",
		"cognomePartner":           "Verdi",
		"dataNascitaPartner":       "02/02/1987",
		"luogoNascitaPartner":      "Milano",
		"professionePartner":       "Medico",
		"indirizzoPartner":         "Via Roma 1",
		"cittaPartner":             "Roma",
		"capPartner":               "00100",
		"codiceFiscalePartner":     "VRDNNA87B42F205X",
		"numeroDocumentoPartner":   "CA11111BB",
		"scadenzaDocumentoPartner": "01/01/2031",
		"telefonoPartner":          "3331111111",
		"emailPartner":             "anna@test.it",
	} {
		form.Set(k, v)
	}

	ctx := context.Background()
	outcome, err := e.submission.Submit(ctx, submission.NewSession(), submission.Request{
		Form: form,
		Sources: encoder.Sources{
			models.SlotFront:        "/upload/fronte.jpg",
			models.SlotFrontPartner: "/upload/partner.jpg",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, submission.StateSuccess, outcome.State)

	sent := e.mailer.sent()
	require.Len(t, sent, 1)
	names := make([]string, 0, len(sent[0].Attachments))
	for _, a := range sent[0].Attachments {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{
		"modulo_privacy_Mario_Rossi.pdf",
		"documento_fronte_Mario.jpg",
		"documento_fronte_Anna.jpg",
	}, names)
	assert.Contains(t, sent[0].HTML, "Dati Partner:")
}

func TestFullFlow_RateLimitedSubmissionFailsAfterRetries(t *testing.T) {
	e := newEnv(t, 1)

	first, err := e.submit(marioRossi(), submission.NewSession())
	require.NoError(t, err)
	assert.Equal(t, submission.StateSuccess, first.State)

	session := submission.NewSession()
	second, err := e.submit(marioRossi(), session)
	require.Error(t, err)
	assert.Equal(t, submission.StateFailed, second.State)
	assert.Equal(t, 3, second.Attempts)
	assert.Equal(t, errors.CategoryServerBusy, second.Category)
	assert.Contains(t, second.Message, "06-5083375")
	assert.True(t, session.ExitNeedsConfirmation(), "form data kept after failure")

	assert.Len(t, e.mailer.sent(), 1)
}
