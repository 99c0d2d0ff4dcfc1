// Package extract pulls schema fields out of merged OCR text with
// label-anchored rules. It is pure: the same schema and text always give the
// same result.
package extract

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Fields maps a schema field to its value; nil means not found.
type Fields map[string]*string

// Str returns a pointer to s.
func Str(s string) *string { return &s }

// Value returns the field's value and whether it is set and non-empty.
func (f Fields) Value(field string) (string, bool) {
	v, ok := f[field]
	if !ok || v == nil || *v == "" {
		return "", false
	}
	return *v, true
}

// Clone returns a deep copy.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		if v != nil {
			out[k] = Str(*v)
		} else {
			out[k] = nil
		}
	}
	return out
}

// directKeys maps keys of a model-emitted JSON object onto schema fields.
var directKeys = map[string]string{
	"name_en":       "name",
	"name_bn":       "name_bn",
	"father_name":   "father_name",
	"mother_name":   "mother_name",
	"date_of_birth": "dob",
	"nid_no":        "nid_no",
}

// Extract resolves every field of schema against merged. Every schema key is
// present in the result.
func Extract(schema map[string]string, merged string) Fields {
	text, seeded := prepare(merged)
	text = NormalizeDigits(text)

	out := make(Fields, len(schema))
	for field, description := range schema {
		if v, ok := seeded[field]; ok {
			out[field] = Str(v)
			continue
		}
		out[field] = nil

		kind := Classify(field, description)
		if detect, ok := detectors[kind]; ok {
			if v, found := detect(text); found {
				out[field] = Str(v)
				continue
			}
		}

		terms := []string{field}
		if description != "" && description != field {
			terms = append(terms, description)
		}
		if v, found := generic(text, terms...); found {
			out[field] = Str(v)
		}
	}
	return out
}

// prepare turns merged text into the matching text. A JSON array of lines is
// flattened to one line per entry; a JSON object seeds direct fields and is
// matched in its serialized form.
func prepare(merged string) (string, map[string]string) {
	trimmed := strings.TrimSpace(merged)
	if trimmed == "" {
		return merged, nil
	}

	if !json.Valid([]byte(trimmed)) {
		return merged, nil
	}
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	var data any
	if err := dec.Decode(&data); err != nil {
		return merged, nil
	}

	switch v := data.(type) {
	case []any:
		lines := make([]string, 0, len(v))
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				s, _ := obj["text"].(string)
				lines = append(lines, s)
				continue
			}
			lines = append(lines, scalarString(item))
		}
		return strings.Join(lines, "\n"), nil

	case map[string]any:
		seeded := make(map[string]string)
		for key, field := range directKeys {
			if s := scalarString(v[key]); s != "" {
				seeded[field] = s
			}
		}
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return merged, seeded
		}
		return strings.TrimSpace(buf.String()), seeded
	}
	return merged, nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
