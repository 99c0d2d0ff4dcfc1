package extract

import "strings"

// Kind is the closed set of field classes the engine knows how to detect.
type Kind int

const (
	Generic Kind = iota
	Identifier
	DateOfBirth
	PersonalNamePrimary
	PersonalNameSecondary
	GuardianPaternal
	GuardianMaternal
	BloodGroup
	PlaceOfBirth
	IssueDate
	Address
)

var kindNames = map[Kind]string{
	Generic:               "generic",
	Identifier:            "identifier",
	DateOfBirth:           "date_of_birth",
	PersonalNamePrimary:   "name_primary",
	PersonalNameSecondary: "name_secondary",
	GuardianPaternal:      "guardian_paternal",
	GuardianMaternal:      "guardian_maternal",
	BloodGroup:            "blood_group",
	PlaceOfBirth:          "place_of_birth",
	IssueDate:             "issue_date",
	Address:               "address",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Classify maps a schema field and its description to a Kind. Checks run in
// precedence order and the first hit wins.
func Classify(field, description string) Kind {
	f := strings.ToLower(field)
	d := strings.ToLower(description)

	if strings.Contains(f, "nid") {
		return Identifier
	}
	if strings.Contains(f, "dob") || strings.Contains(d, "date of birth") ||
		(strings.Contains(f, "date") && strings.Contains(f, "birth")) {
		return DateOfBirth
	}
	if f == "name" || strings.Contains(d, "name") {
		switch {
		case strings.Contains(f, "bn") || strings.Contains(d, "bangla"):
			return PersonalNameSecondary
		case f == "name":
			return PersonalNamePrimary
		case strings.Contains(f, "father"):
			return GuardianPaternal
		case strings.Contains(f, "mother"):
			return GuardianMaternal
		}
	}
	if strings.Contains(f, "blood") || strings.Contains(f, "group") {
		return BloodGroup
	}
	if strings.Contains(f, "place") && strings.Contains(f, "birth") {
		return PlaceOfBirth
	}
	if strings.Contains(f, "issue") && strings.Contains(f, "date") {
		return IssueDate
	}
	if strings.Contains(f, "address") || strings.Contains(f, "thikana") {
		return Address
	}
	return Generic
}
