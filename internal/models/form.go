package models

import (
	"strings"
	"time"
	_ "time/tzdata"
)

// IPUnavailable is the sentinel used wherever a client IP could not be determined.
const IPUnavailable = "Non disponibile"

// TimestampLayout renders timestamps the way the clinic reads them (it-IT locale).
const TimestampLayout = "02/01/2006, 15:04:05"

var italianLocation = loadRome()

func loadRome() *time.Location {
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		return time.UTC
	}
	return loc
}

// FormatTimestamp formats t in Rome local time.
func FormatTimestamp(t time.Time) string {
	return t.In(italianLocation).Format(TimestampLayout)
}

// FormRecord holds the raw values of the consent form.
type FormRecord struct {
	Values         map[string]string `json:"values" yaml:"values"`
	IncludePartner bool              `json:"includePartner" yaml:"includePartner"`
	GDPRConsent    bool              `json:"gdprConsent" yaml:"gdprConsent"`
	PrivacyConsent bool              `json:"privacyConsent" yaml:"privacyConsent"`
}

func NewFormRecord() *FormRecord {
	return &FormRecord{Values: make(map[string]string)}
}

func (f *FormRecord) Get(name string) string {
	if f == nil || f.Values == nil {
		return ""
	}
	return f.Values[name]
}

func (f *FormRecord) Set(name, value string) {
	if f.Values == nil {
		f.Values = make(map[string]string)
	}
	f.Values[name] = value
}

// IsPartnerField reports whether a field belongs to the partner block.
func IsPartnerField(name string) bool {
	return strings.HasSuffix(name, "Partner")
}

// Normalize trims every value, upper-cases tax codes and, when the partner
// block is off, clears every partner value.
func (f *FormRecord) Normalize() {
	for name, v := range f.Values {
		v = strings.TrimSpace(v)
		if strings.HasPrefix(name, "codiceFiscale") {
			v = strings.ToUpper(v)
		}
		if !f.IncludePartner && IsPartnerField(name) {
			v = ""
		}
		f.Values[name] = v
	}
}

// HasData reports whether any value has been entered.
func (f *FormRecord) HasData() bool {
	if f == nil {
		return false
	}
	if f.GDPRConsent || f.PrivacyConsent || f.IncludePartner {
		return true
	}
	for _, v := range f.Values {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// FullName joins first and last name of the primary or partner block.
func (f *FormRecord) FullName(partner bool) string {
	suffix := ""
	if partner {
		suffix = "Partner"
	}
	return strings.TrimSpace(f.Get("nome"+suffix) + " " + f.Get("cognome"+suffix))
}

// Clone returns a deep copy.
func (f *FormRecord) Clone() *FormRecord {
	out := *f
	out.Values = make(map[string]string, len(f.Values))
	for k, v := range f.Values {
		out.Values[k] = v
	}
	return &out
}
