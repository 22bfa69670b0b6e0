package render

import (
	"fmt"

	"privacy-consent/internal/consent/layout"
	"privacy-consent/internal/models"
)

const (
	marginLeft  = 10.0
	rightColumn = 105.0
	pageCenter  = 105.0
	textWidth   = 190.0
	tableLine   = 7.0
	proseLine   = 5.0
)

var (
	titleStyle   = layout.Style{Size: 14, Bold: true}
	headingStyle = layout.Style{Size: 12, Bold: true}
	labelStyle   = layout.Style{Size: 10, Bold: true}
	valueStyle   = layout.Style{Size: 10}
	smallBold    = layout.Style{Size: 9, Bold: true}
	small        = layout.Style{Size: 9}
	noteStyle    = layout.Style{Size: 8, Italic: true}
)

// Clinic is the letterhead printed at the bottom of the document.
type Clinic struct {
	Name       string
	Controller string
	Lines      []string
}

// DefaultClinic is the Biofertility letterhead.
var DefaultClinic = Clinic{
	Name:       "Centro Biofertility - Junior s.r.l.",
	Controller: "Dr Claudio Manna, Responsabile trattamento dei dati medesimi.",
	Lines: []string{
		"Sede operativa: Viale degli Eroi di Rodi 214, 00128-Roma Tel 06-5083375 Fax 06-5083375",
		"E-mail: centrimanna2@gmail.com",
		"Sede legale: Via Velletri 7, 00198 Roma Tel 06-8415269 E-mail centrimanna2@gmail.com",
	},
}

const legalNote = "NOTE: la responsabilità della eliminazione delle copie obsolete dell'istruzione è del destinatario di questa documentazione."

// facts are the per-document values that are not part of the form.
type facts struct {
	timestamp   string
	ip          string
	integrityID string
	env         ClientEnv
}

// cell is a label/value pair; offset is where the value starts relative to the label.
type cell struct {
	label  string
	value  string
	offset float64
}

const columnGap = 3.0

// tableRows lays out one table line. Values are wrapped to their column;
// continuation lines carry no labels and use the prose line height.
func tableRows(m layout.Measurer, left cell, right *cell) []layout.Row {
	leftX := marginLeft + left.offset
	leftEnd := marginLeft + textWidth
	if right != nil {
		leftEnd = rightColumn - columnGap
	}
	leftLines := layout.Fit(m, left.value, valueStyle, leftEnd-leftX)

	var rightX float64
	var rightLines []string
	if right != nil {
		rightX = rightColumn + right.offset
		rightLines = layout.Fit(m, right.value, valueStyle, marginLeft+textWidth-rightX)
	}

	n := len(leftLines)
	if len(rightLines) > n {
		n = len(rightLines)
	}

	rows := make([]layout.Row, 0, n)
	for i := 0; i < n; i++ {
		var spans []layout.Span
		if i == 0 {
			spans = append(spans, layout.Span{X: marginLeft, Text: left.label, Style: labelStyle})
		}
		if i < len(leftLines) {
			spans = append(spans, layout.Span{X: leftX, Text: leftLines[i], Style: valueStyle})
		}
		if right != nil && i == 0 {
			spans = append(spans, layout.Span{X: rightColumn, Text: right.label, Style: labelStyle})
		}
		if i < len(rightLines) {
			spans = append(spans, layout.Span{X: rightX, Text: rightLines[i], Style: valueStyle})
		}
		advance := proseLine
		if i == n-1 {
			advance = tableLine
		}
		rows = append(rows, layout.Row{Spans: spans, Advance: advance})
	}
	return rows
}

func personTable(m layout.Measurer, form *models.FormRecord, partner bool) []layout.Row {
	s := ""
	if partner {
		s = "Partner"
	}
	get := func(name string) string { return form.Get(name + s) }

	var rows []layout.Row
	add := func(left cell, right *cell) {
		rows = append(rows, tableRows(m, left, right)...)
	}
	add(cell{"Nome e Cognome:", form.FullName(partner), 35}, &cell{"Data di Nascita:", get("dataNascita"), 32})
	add(cell{"Luogo di Nascita:", get("luogoNascita"), 35}, &cell{"Professione:", get("professione"), 25})
	add(cell{"Indirizzo:", fmt.Sprintf("%s, %s %s", get("indirizzo"), get("citta"), get("cap")), 22}, nil)
	add(cell{"Codice Fiscale:", get("codiceFiscale"), 30}, &cell{"Telefono:", get("telefono"), 20})
	add(cell{"Documento N.:", get("numeroDocumento"), 28}, &cell{"Scadenza:", get("scadenzaDocumento"), 22})
	add(cell{"Email:", get("email"), 15}, nil)
	if !partner {
		add(cell{"Email Comunicazioni:", form.Get("emailComunicazioni"), 40}, nil)
	}
	return rows
}

func showPartner(form *models.FormRecord) bool {
	return form.IncludePartner && form.FullName(true) != ""
}

func consentText(form *models.FormRecord) string {
	signers := form.FullName(false)
	if showPartner(form) {
		signers += " e " + form.FullName(true)
	}

	return fmt.Sprintf(`Il/La sottoscritto/a %s, pienamente consapevole della importanza della presente dichiarazione, dichiara di essere stato esaustivamente e chiaramente informato su:

• le finalità e le modalità del trattamento cui sono destinati i dati, connesse con le attività di prevenzione, diagnosi, cura e riabilitazione, svolte dal medico a tutela della salute;

• i soggetti o le categorie di soggetti ai quali i dati personali possono essere comunicati (medici sostituti, laboratorio analisi, medici specialisti, aziende ospedaliere, case di cura private e fiscalisti, ministero Finanze, Enti pubblici quali INPS, Inail ecc.) o che possono venirne a conoscenza in qualità di incaricati;

• il diritto di accesso ai dati personali, la facoltà di chiederne l'aggiornamento, la rettifica, l'integrazione e la cancellazione e/o la limitazione nell'utilizzo degli stessi;

• il nome del medico titolare del trattamento dei dati personali ed i suoi dati di contatto;

• la necessità di fornire dati richiesti per poter ottenere l'erogazione di prestazioni mediche adeguate e la fruizione dei servizi sanitari secondo la attuale disciplina.

Il/La sottoscritto/a %s, chiede che le comunicazioni, anche relative a referti, siano inviati all'indirizzo mail: %s

A tal proposito, dichiaro che il detto indirizzo e-mail appartiene alla mia persona ed è in mio esclusivo utilizzo esonerando la Junior srl, da ogni e qualsivoglia responsabilità in riferimento alla conoscenza che dei referti e/o informazioni sul mio stato di salute, possano avere terze persone che riescano ad accedere lecitamente od illecitamente al detto indirizzo mail.

Il sottoscritto esprime quindi il libero e consapevole consenso al trattamento dei dati personali e sensibili, esclusivamente a fini di prevenzione, diagnosi, cura, esecuzione delle tecniche di PMA, prescrizione farmaceutica, interventi ambulatoriali e chirurgici e visita specialistica e per ogni prestazione da me richiesta.`,
		signers, form.FullName(false), form.Get("emailComunicazioni"))
}

func traceRows(m layout.Measurer, f facts) []layout.Row {
	rows := []layout.Row{
		layout.Line(marginLeft, "DATI DI TRACCIABILITÀ:", smallBold, 6),
		layout.Line(marginLeft, "Compilato il: "+f.timestamp, small, 4),
		layout.Line(marginLeft, "Indirizzo IP: "+f.ip, small, 4),
		layout.Line(marginLeft, "Identificativo documento: "+f.integrityID, small, 4),
		layout.Line(marginLeft, "L'identificativo rende il documento rintracciabile, non ne certifica l'integrità.", small, 4),
	}

	optional := []struct{ label, value string }{
		{"Browser", f.env.Browser()},
		{"Risoluzione schermo", f.env.ScreenResolution},
		{"Piattaforma", f.env.Platform},
		{"Lingua", f.env.Language},
	}
	for _, o := range optional {
		if o.value != "" {
			rows = append(rows, layout.Line(marginLeft, o.label+": "+o.value, small, 4))
		}
	}
	if f.env.UserAgent != "" {
		rows = append(rows, layout.Paragraph(m, "User-Agent: "+f.env.UserAgent, small, marginLeft, textWidth, 4)...)
	}

	// The last line leaves room before the note.
	rows[len(rows)-1].Advance = 8
	return rows
}

var titleLines = []string{
	"PRESTAZIONE DEL CONSENSO PER IL TRATTAMENTO DEI DATI PERSONALI E SENSIBILI",
	"PER I PAZIENTI DEL CENTRO DI PROCREAZIONE MEDICALMENTE ASSISTITA BIOFERTILITY",
}

// titleRows centres each title line, wrapping the ones wider than the page.
func titleRows(m layout.Measurer) []layout.Row {
	var rows []layout.Row
	for _, t := range titleLines {
		for _, l := range layout.Wrap(m, t, titleStyle, textWidth) {
			rows = append(rows, layout.Row{
				Spans:   []layout.Span{{X: pageCenter, Text: l, Style: titleStyle, Align: layout.AlignCenter}},
				Advance: 7,
			})
		}
	}
	rows[len(rows)-1].Advance = 15
	return rows
}

// blocks is the whole document, top to bottom.
func (r *Renderer) blocks(m layout.Measurer, form *models.FormRecord, f facts) []layout.Block {
	out := []layout.Block{
		{
			Name: "title",
			Rows: titleRows(m),
		},
		{
			Name:  "primary",
			Rows:  append([]layout.Row{layout.Line(marginLeft, "DATI PAZIENTE PRINCIPALE", headingStyle, 8)}, personTable(m, form, false)...),
			After: 12 - tableLine,
		},
	}

	if showPartner(form) {
		out = append(out, layout.Block{
			Name:  "partner",
			Rows:  append([]layout.Row{layout.Line(marginLeft, "DATI PARTNER", headingStyle, 8)}, personTable(m, form, true)...),
			After: 12 - tableLine,
		})
	}

	out = append(out,
		layout.Block{
			Name:  "consent",
			Rows:  layout.Paragraph(m, consentText(form), valueStyle, marginLeft, textWidth, proseLine),
			After: 10,
		},
		layout.Block{
			Name:       "controller",
			Rows:       []layout.Row{layout.Line(marginLeft, r.clinic.Controller, labelStyle, 15)},
			BreakBelow: 260,
		},
		layout.Block{
			Name: "date",
			Rows: []layout.Row{layout.Line(marginLeft, "Data: "+f.timestamp, labelStyle, 15)},
		},
		layout.Block{
			Name:         "trace",
			Rows:         traceRows(m, f),
			KeepTogether: true,
		},
		layout.Block{
			Name:  "note",
			Rows:  layout.Paragraph(m, legalNote, noteStyle, marginLeft, textWidth, 4),
			After: 6,
		},
		r.footer(),
	)
	return out
}

func (r *Renderer) footer() layout.Block {
	rows := []layout.Row{layout.Line(marginLeft, r.clinic.Name, labelStyle, 5)}
	for _, l := range r.clinic.Lines {
		rows = append(rows, layout.Line(marginLeft, l, small, 4))
	}
	return layout.Block{Name: "footer", Rows: rows, KeepTogether: true}
}
