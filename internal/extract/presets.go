package extract

import (
	"fmt"
	"sort"
)

// Presets are the built-in schemas for Bangladesh national ID cards.
var Presets = map[string]map[string]string{
	"nid_front": {
		"name":        "Full Name in English",
		"name_bn":     "Full Name in Bangla",
		"father_name": "Father's Name",
		"mother_name": "Mother's Name",
		"dob":         "Date of Birth (YYYY-MM-DD)",
		"nid_no":      "NID Number (10, 13, or 17 digits)",
	},
	"nid_back": {
		"address_bn":     "Address in Bangla (Thikana)",
		"blood_group":    "Blood Group",
		"place_of_birth": "Place of Birth",
		"issue_date":     "Issue Date",
		"mrz_line1":      "MRZ Line 1",
		"mrz_line2":      "MRZ Line 2",
		"mrz_line3":      "MRZ Line 3",
	},
}

// Preset returns a copy of the named preset schema.
func Preset(name string) (map[string]string, error) {
	p, ok := Presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown document type %q (known: %v)", name, PresetNames())
	}
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out, nil
}

// PresetNames lists preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
