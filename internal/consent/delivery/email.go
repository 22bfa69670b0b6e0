package delivery

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"privacy-consent/internal/common/errors"
	"privacy-consent/internal/consent/encoder"
	"privacy-consent/internal/mail"
	"privacy-consent/internal/models"
)

var emailTemplate = template.Must(template.New("consent").Parse(`<h2>Nuovo Modulo Privacy Compilato</h2>

<h3>Dati Paziente Principale:</h3>
<ul>
    <li><strong>Nome:</strong> {{.F "nome"}} {{.F "cognome"}}</li>
    <li><strong>Data nascita:</strong> {{.F "dataNascita"}}</li>
    <li><strong>Luogo nascita:</strong> {{.F "luogoNascita"}}</li>
    <li><strong>Professione:</strong> {{.F "professione"}}</li>
    <li><strong>Indirizzo:</strong> {{.F "indirizzo"}}, {{.F "citta"}} {{.F "cap"}}</li>
    <li><strong>Codice Fiscale:</strong> {{.F "codiceFiscale"}}</li>
    <li><strong>Documento:</strong> {{.F "numeroDocumento"}} (scad. {{.F "scadenzaDocumento"}})</li>
    <li><strong>Telefono:</strong> {{.F "telefono"}}</li>
    <li><strong>Email:</strong> {{.F "email"}}</li>
    <li><strong>Email comunicazioni:</strong> {{.F "emailComunicazioni"}}</li>
</ul>
{{if .P.IncludePartner}}
<h3>Dati Partner:</h3>
<ul>
    <li><strong>Nome:</strong> {{.F "nomePartner"}} {{.F "cognomePartner"}}</li>
    <li><strong>Data nascita:</strong> {{.F "dataNascitaPartner"}}</li>
    <li><strong>Luogo nascita:</strong> {{.F "luogoNascitaPartner"}}</li>
    <li><strong>Professione:</strong> {{.F "professionePartner"}}</li>
    <li><strong>Indirizzo:</strong> {{.F "indirizzoPartner"}}, {{.F "cittaPartner"}} {{.F "capPartner"}}</li>
    <li><strong>Codice Fiscale:</strong> {{.F "codiceFiscalePartner"}}</li>
    <li><strong>Documento:</strong> {{.F "numeroDocumentoPartner"}} (scad. {{.F "scadenzaDocumentoPartner"}})</li>
    <li><strong>Telefono:</strong> {{.F "telefonoPartner"}}</li>
    <li><strong>Email:</strong> {{.F "emailPartner"}}</li>
</ul>
{{end}}
<h3>Informazioni Legali:</h3>
<ul>
    <li><strong>Data compilazione:</strong> {{.P.Timestamp}}</li>
    <li><strong>Indirizzo IP:</strong> {{.P.IPAddress}}</li>
    <li><strong>Browser:</strong> {{.P.UserAgent}}</li>
    <li><strong>Identificativo documento:</strong> {{.DocumentID}}</li>
</ul>

<p><em>Modulo compilato con consenso GDPR esplicito per il Centro Biofertility.</em></p>

<hr>
<p><small>Centro Biofertility - Junior s.r.l.<br>
Viale degli Eroi di Rodi 214, 00128-Roma<br>
Tel: 06-5083375</small></p>
`))

type emailView struct {
	P          *models.SubmissionPayload
	DocumentID string
}

func (v emailView) F(name string) string {
	return v.P.Field(name)
}

func renderHTML(p *models.SubmissionPayload, documentID string) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, emailView{P: p, DocumentID: documentID}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// attachmentSpec names one identity-document slot in the email.
type attachmentSpec struct {
	slot   models.AttachmentSlot
	prefix string
	owner  string // form field whose value names the file
}

var identitySlots = []attachmentSpec{
	{models.SlotFront, "documento_fronte", "nome"},
	{models.SlotBack, "documento_retro", "nome"},
	{models.SlotFrontPartner, "documento_fronte", "nomePartner"},
	{models.SlotBackPartner, "documento_retro", "nomePartner"},
}

// buildAttachments decodes the document and every present upload. Partner
// uploads are only attached when the partner block is on.
func buildAttachments(p *models.SubmissionPayload) ([]mail.Attachment, error) {
	pdf, err := encoder.Decode(p.PDFBase64)
	if err != nil {
		return nil, errors.NewInvalidPayloadError(fmt.Sprintf("pdfBase64: %v", err))
	}

	out := []mail.Attachment{{
		Name:        safeName(fmt.Sprintf("modulo_privacy_%s_%s.pdf", p.Field("nome"), p.Field("cognome"))),
		ContentType: "application/pdf",
		Data:        pdf,
	}}

	for _, spec := range identitySlots {
		a := p.Attachment(spec.slot)
		if !a.Present() {
			continue
		}
		if spec.slot.IsPartner() && !p.IncludePartner {
			continue
		}
		data, err := encoder.Decode(a.Base64)
		if err != nil {
			return nil, errors.NewInvalidPayloadError(fmt.Sprintf("%s: %v", spec.slot, err))
		}
		out = append(out, mail.Attachment{
			Name:        safeName(fmt.Sprintf("%s_%s.%s", spec.prefix, p.Field(spec.owner), a.Ext)),
			ContentType: contentTypeForExt(a.Ext),
			Data:        data,
		})
	}
	return out, nil
}

func contentTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// safeName keeps attachment names free of path separators.
func safeName(name string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "\r", "", "\n", "").Replace(name)
}
