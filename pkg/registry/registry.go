// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

//go:embed fields.json
var defaultRegistryJSON []byte

var (
	defaultOnce sync.Once
	defaultReg  *FormRegistry
)

// Default returns the built-in registry of the clinic's consent form.
func Default() *FormRegistry {
	defaultOnce.Do(func() {
		reg, err := Parse(defaultRegistryJSON)
		if err != nil {
			panic(fmt.Sprintf("registry: embedded fields.json: %v", err))
		}
		defaultReg = reg
	})
	return defaultReg
}

// LoadRegistry reads a registry from disk, for deployments that relabel the form.
func LoadRegistry(path string) (*FormRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*FormRegistry, error) {
	var reg FormRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, err
	}
	if err := reg.check(); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *FormRegistry) check() error {
	seen := make(map[string]bool)
	for _, f := range r.Fields {
		if f.Name == "" {
			return fmt.Errorf("field with empty name")
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = true
		if f.Section != SectionPrimary && f.Section != SectionPartner {
			return fmt.Errorf("field %q: unknown section %q", f.Name, f.Section)
		}
	}
	return nil
}

// FieldsIn returns the fields of one section in declaration order.
func (r *FormRegistry) FieldsIn(section Section) []Field {
	var out []Field
	for _, f := range r.Fields {
		if f.Section == section {
			out = append(out, f)
		}
	}
	return out
}

func (r *FormRegistry) Field(name string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Label falls back to the raw name for unknown fields.
func (r *FormRegistry) Label(name string) string {
	if f, ok := r.Field(name); ok {
		return f.Label
	}
	return name
}
