package judge

import (
	"sort"
	"strings"

	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/extract"
)

// Class groups fields that share a merge rule.
type Class string

const (
	// ClassProtected holds numbers and dates. The draft is trusted.
	ClassProtected Class = "protected"

	// ClassFreeText holds names, addresses and MRZ lines. The judge is trusted.
	ClassFreeText Class = "free_text"

	// ClassDefault applies to every field not listed in the policy.
	ClassDefault Class = "default"
)

// Rule says what a non-empty verdict value may do to a drafted field.
// Empty verdict values never change anything.
type Rule struct {
	Overwrite bool // replace a non-empty draft value
	Fill      bool // set a draft value that is null or empty
}

// Policy is the merge table consulted for every verdict field.
type Policy struct {
	Fields map[string]Class
	Rules  map[Class]Rule
}

// DefaultPolicy is the merge table used by the pipeline.
var DefaultPolicy = Policy{
	Fields: map[string]Class{
		"dob":            ClassProtected,
		"nid_no":         ClassProtected,
		"issue_date":     ClassProtected,
		"blood_group":    ClassProtected,
		"name":           ClassFreeText,
		"name_bn":        ClassFreeText,
		"address_bn":     ClassFreeText,
		"place_of_birth": ClassFreeText,
		"mrz_line1":      ClassFreeText,
		"mrz_line2":      ClassFreeText,
		"mrz_line3":      ClassFreeText,
	},
	Rules: map[Class]Rule{
		ClassProtected: {Overwrite: false, Fill: true},
		ClassFreeText:  {Overwrite: true, Fill: true},
		ClassDefault:   {Overwrite: false, Fill: true},
	},
}

// ClassOf returns the class of field.
func (p Policy) ClassOf(field string) Class {
	if c, ok := p.Fields[field]; ok {
		return c
	}
	return ClassDefault
}

// Change records one field the verdict altered.
type Change struct {
	Field  string `json:"field"`
	Action string `json:"action"` // "corrected" or "filled"
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
}

// Apply merges verdict into a copy of draft. A verdict key absent from the
// draft counts as an empty drafted value.
func (p Policy) Apply(draft extract.Fields, verdict map[string]string) (extract.Fields, []Change) {
	out := draft.Clone()
	var changes []Change

	for field, value := range verdict {
		if strings.TrimSpace(value) == "" {
			continue
		}
		rule := p.Rules[p.ClassOf(field)]
		current, has := draft.Value(field)

		switch {
		case has && rule.Overwrite:
			if current != value {
				out[field] = extract.Str(value)
				changes = append(changes, Change{Field: field, Action: "corrected", From: current, To: value})
			}
		case !has && rule.Fill:
			out[field] = extract.Str(value)
			changes = append(changes, Change{Field: field, Action: "filled", To: value})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Field < changes[j].Field })
	return out, changes
}
