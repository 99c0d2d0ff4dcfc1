package extract

import (
	"regexp"
	"strings"
)

// detector finds a value for one Kind in normalized text.
type detector func(text string) (string, bool)

const dateGrammar = `\d{1,2}[\s\-/]+[A-Za-z]+[\s\-/]+\d{4}|\d{2}[\s\-/]+\d{2}[\s\-/]+\d{4}`

var (
	identifierRe  = regexp.MustCompile(`\b\d{10,17}\b`)
	dobRe         = regexp.MustCompile(`(?i)(?:Date of Birth|DOB)[:\s]*(` + dateGrammar + `)`)
	primaryNameRe = regexp.MustCompile(`(?i)\bName[:\s]+([^\n]+)`)
	secondaryRe   = regexp.MustCompile(`(?:নাম|Name \(Bangla\))[:\s]+([^\n]+)`)
	paternalRe    = regexp.MustCompile(`(?i)(?:Father'?s? Name|পিতা)[:\s]+([^\n]+)`)
	maternalRe    = regexp.MustCompile(`(?i)(?:Mother'?s? Name|মাতা)[:\s]+([^\n]+)`)
	bloodGroupRe  = regexp.MustCompile(`(?i)(?:Blood Group|BG)[:\s]+([A-Za-z]{1,2}\s*[+\-−]?(?:ve)?)`)
	placeRe       = regexp.MustCompile(`(?i)(?:Place of Birth|Birth Place)[:\s]+([^\n]+)`)
	issueDateRe   = regexp.MustCompile(`(?i)(?:Issue Date|Date of Issue|প্রদানের তারিখ)[:\s]+(` + dateGrammar + `)`)
	addressRe     = regexp.MustCompile(`(?i)(?:Address|Thikana|ঠিকানা)[:\s]+([\s\S]+?)(?:\n\s*\n|Blood Group|Place of Birth|Issue Date|Date of Issue|প্রদানের তারিখ|$)`)
)

// possessives disqualify a bare "Name" label for the primary name.
var possessives = []string{"father's ", "mother's ", "father’s ", "mother’s "}

var detectors = map[Kind]detector{
	Identifier:            longestIdentifier,
	DateOfBirth:           firstGroup(dobRe),
	PersonalNamePrimary:   primaryName,
	PersonalNameSecondary: firstGroup(secondaryRe),
	GuardianPaternal:      firstGroup(paternalRe),
	GuardianMaternal:      firstGroup(maternalRe),
	BloodGroup:            firstGroup(bloodGroupRe),
	PlaceOfBirth:          firstGroup(placeRe),
	IssueDate:             firstGroup(issueDateRe),
	Address:               firstGroup(addressRe),
}

func firstGroup(re *regexp.Regexp) detector {
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		v := strings.TrimSpace(m[1])
		return v, v != ""
	}
}

// longestIdentifier picks the longest 10–17 digit run; ties go to the first.
func longestIdentifier(text string) (string, bool) {
	best := ""
	for _, m := range identifierRe.FindAllString(text, -1) {
		if len(m) > len(best) {
			best = m
		}
	}
	return best, best != ""
}

func primaryName(text string) (string, bool) {
	for _, loc := range primaryNameRe.FindAllStringSubmatchIndex(text, -1) {
		before := strings.ToLower(text[:loc[0]])
		if hasAnySuffix(before, possessives) {
			continue
		}
		v := strings.TrimSpace(text[loc[2]:loc[3]])
		if v != "" {
			return v, true
		}
	}
	return "", false
}

// generic looks for each term as a literal label followed by same-line text.
func generic(text string, terms ...string) (string, bool) {
	for _, term := range terms {
		if term == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(term) + `[:\s]+([^\n]+)`)
		if err != nil {
			continue
		}
		if v, ok := firstGroup(re)(text); ok {
			return v, true
		}
	}
	return "", false
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}
