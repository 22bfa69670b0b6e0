// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"privacy-consent/pkg/registry"
)

var registryPath string

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{exportCmd, updateCmd, validateCmd} {
		fs.StringVar(&registryPath, "path", "configs/fields.json", "Path to registry file")
	}

	// Update command flags
	name := updateCmd.String("name", "", "Field or consent name (e.g., codiceFiscale)")
	field := updateCmd.String("field", "", "Property to update (label, required, invalidMessage, requiredMessage)")
	value := updateCmd.String("value", "", "New value for the property")

	if len(os.Args) < 2 {
		help(os.Stdout)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		if err := saveRegistry(registry.Default(), registryPath); err != nil {
			fmt.Printf("Error exporting registry: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Exported built-in registry to %s\n", registryPath)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *name == "" || *field == "" {
			fmt.Println("Error: name and field are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateEntry(*name, *field, *value); err != nil {
			fmt.Printf("Error updating registry: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated %s, %s = %q\n", *name, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateRegistry(registryPath); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}

	case "help":
		fallthrough
	default:
		help(os.Stdout)
	}
}

func updateEntry(name, field, value string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := applyUpdate(reg, name, field, value); err != nil {
		return err
	}
	reg.LastUpdated = time.Now().Format("2006-01-02")
	return saveRegistry(reg, registryPath)
}

// applyUpdate edits one property of a field or consent in place.
func applyUpdate(reg *registry.FormRegistry, name, field, value string) error {
	for i := range reg.Fields {
		f := &reg.Fields[i]
		if f.Name != name {
			continue
		}
		switch field {
		case "label":
			f.Label = value
		case "invalidMessage":
			f.InvalidMessage = value
		case "required":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("invalid required value: %w", err)
			}
			f.Required = b
		default:
			return fmt.Errorf("unknown field property: %s", field)
		}
		return nil
	}

	for i := range reg.Consents {
		c := &reg.Consents[i]
		if c.Name != name {
			continue
		}
		switch field {
		case "label":
			c.Label = value
		case "requiredMessage":
			c.RequiredMessage = value
		default:
			return fmt.Errorf("unknown consent property: %s", field)
		}
		return nil
	}

	return fmt.Errorf("%s not found in registry", name)
}

// validateRegistry checks a custom registry against the built-in one: the
// wire names are fixed, only presentation may change.
func validateRegistry(path string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	builtin := registry.Default()
	for _, f := range builtin.Fields {
		got, ok := reg.Field(f.Name)
		if !ok {
			return fmt.Errorf("field %s missing", f.Name)
		}
		if got.Section != f.Section || got.Kind != f.Kind {
			return fmt.Errorf("field %s: section and kind cannot change", f.Name)
		}
		if got.Label == "" {
			return fmt.Errorf("field %s missing required property: label", f.Name)
		}
	}
	if len(reg.Fields) != len(builtin.Fields) {
		return fmt.Errorf("registry has %d fields, expected %d", len(reg.Fields), len(builtin.Fields))
	}
	if len(reg.Consents) != len(builtin.Consents) {
		return fmt.Errorf("registry has %d consents, expected %d", len(reg.Consents), len(builtin.Consents))
	}

	fmt.Printf("Registry validation passed. Found %d fields, %d consents.\n", len(reg.Fields), len(reg.Consents))
	return nil
}

// saveRegistry handles saving the registry to file
func saveRegistry(reg *registry.FormRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

func help(w io.Writer) {
	fmt.Fprint(w, `
Usage: registry-updater <command> [flags]

Commands:
  export   Write the built-in form registry to a file
  update   Change the label or messages of a field or consent
  validate Check a custom registry against the built-in form
  help     Show this help message

Examples:
  registry-updater export -path configs/fields.json
  registry-updater update -path configs/fields.json -name professione -field label -value "Occupazione"
  registry-updater update -path configs/fields.json -name capPartner -field invalidMessage -value "CAP non valido"
  registry-updater validate -path configs/fields.json

Use 'registry-updater <command> -h' for more information about a command.
`)
}
