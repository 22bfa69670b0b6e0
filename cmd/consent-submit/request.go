package main

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"privacy-consent/internal/consent/encoder"
	"privacy-consent/internal/consent/render"
	"privacy-consent/internal/models"
)

// requestFile is the on-disk description of one submission.
//
//	includePartner: false
//	gdprConsent: true
//	privacyConsent: true
//	values:
//	  nome: Mario
//	  cognome: Rossi
//	attachments:
//	  documentoFrente: ./fronte.jpg
//	env:
//	  language: it-IT
type requestFile struct {
	models.FormRecord `yaml:",inline"`
	Attachments       map[string]string `yaml:"attachments"`
	Env               render.ClientEnv  `yaml:"env"`
}

func parseRequest(r io.Reader) (*requestFile, error) {
	var rf requestFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&rf); err != nil {
		return nil, fmt.Errorf("decode form file: %w", err)
	}
	if rf.Values == nil {
		rf.Values = make(map[string]string)
	}
	for name := range rf.Attachments {
		if !knownSlot(name) {
			return nil, fmt.Errorf("unknown attachment slot %q", name)
		}
	}
	return &rf, nil
}

func knownSlot(name string) bool {
	for _, s := range models.AllSlots {
		if string(s) == name {
			return true
		}
	}
	return false
}

// sources merges file attachments with flag overrides. Empty paths are dropped.
func (rf *requestFile) sources(overrides map[models.AttachmentSlot]string) encoder.Sources {
	out := encoder.Sources{}
	for name, path := range rf.Attachments {
		if path != "" {
			out[models.AttachmentSlot(name)] = path
		}
	}
	for slot, path := range overrides {
		if path != "" {
			out[slot] = path
		}
	}
	return out
}
