// Package output renders command results as YAML or JSON.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Format defines the output format for CLI commands.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatYAML, FormatJSON:
		return Format(s), nil
	case "":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want yaml or json)", s)
	}
}

// Printer writes values in one format.
type Printer struct {
	W      io.Writer
	Format Format
}

// Print writes data in the printer's format.
func (p Printer) Print(data any) error {
	switch p.Format {
	case FormatJSON:
		enc := json.NewEncoder(p.W)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(data)
	case FormatYAML, "":
		enc := yaml.NewEncoder(p.W)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	default:
		return fmt.Errorf("unknown output format: %s", p.Format)
	}
}

// PrintJSON decodes a stored JSON document and prints it. Numbers keep
// their textual form.
func (p Printer) PrintJSON(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("decode stored JSON: %w", err)
	}
	return p.Print(normalizeNumbers(v))
}

// normalizeNumbers turns json.Number into int64 or float64 so YAML emits
// plain numbers.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, child := range t {
			t[k] = normalizeNumbers(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = normalizeNumbers(child)
		}
		return t
	default:
		return v
	}
}
