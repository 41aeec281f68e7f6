// Package render encodes inventory documents for the command line.
package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
	"github.com/tphummel/lab_inventory/internal/models"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ValidFormats is the set of accepted --format values.
var ValidFormats = map[string]bool{
	FormatJSON: true,
	FormatYAML: true,
}

// JSON writes v with 2-space indentation and a trailing newline.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// YAML writes v as a YAML document. An Inventory is rewritten into the
// static inventory layout (all.hosts.<name>: vars) so the output can be
// checked in as an inventory file.
func YAML(w io.Writer, v any) error {
	if inv, ok := v.(models.Inventory); ok {
		v = StaticInventory(inv)
	}
	b, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	_, err = w.Write(b)
	return err
}

// StaticInventory converts a --list document into the ordered structure of
// a YAML inventory file.
func StaticInventory(inv models.Inventory) yaml.MapSlice {
	hosts := yaml.MapSlice{}
	for _, name := range inv.All.Hosts {
		r, ok := inv.Meta.Hostvars.Get(name)
		if !ok {
			continue
		}
		hosts = append(hosts, yaml.MapItem{Key: name, Value: r})
	}
	return yaml.MapSlice{
		{Key: "all", Value: yaml.MapSlice{
			{Key: "hosts", Value: hosts},
		}},
	}
}

// Write encodes v in the named format.
func Write(w io.Writer, format string, v any) error {
	switch format {
	case FormatJSON, "":
		return JSON(w, v)
	case FormatYAML:
		return YAML(w, v)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
