// pkg/registry/schema.go
package registry

// Section groups fields into the blocks of the consent form.
type Section string

const (
	SectionPrimary Section = "primary"
	SectionPartner Section = "partner"
)

// Kind selects the format rule applied to a non-empty value.
type Kind string

const (
	KindText       Kind = "text"
	KindDate       Kind = "date"
	KindTaxCode    Kind = "taxCode"
	KindPostalCode Kind = "postalCode"
	KindEmail      Kind = "email"
	KindPhone      Kind = "phone"
)

type FormRegistry struct {
	Version     string       `json:"version"`
	LastUpdated string       `json:"lastUpdated"`
	Fields      []Field      `json:"fields"`
	Consents    []Consent    `json:"consents"`
	Attachments []Attachment `json:"attachments"`
}

type Field struct {
	Name           string  `json:"name"`
	Label          string  `json:"label"`
	Section        Section `json:"section"`
	Kind           Kind    `json:"kind"`
	Required       bool    `json:"required"`
	InvalidMessage string  `json:"invalidMessage,omitempty"`
}

type Consent struct {
	Name            string `json:"name"`
	Label           string `json:"label"`
	RequiredMessage string `json:"requiredMessage"`
}

type Attachment struct {
	Slot    string  `json:"slot"`
	Label   string  `json:"label"`
	Section Section `json:"section"`
	Side    string  `json:"side"` // fronte | retro
}
