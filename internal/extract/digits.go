package extract

import (
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

const (
	bengaliZero = '০'
	bengaliNine = '৯'
)

var bengaliDigits = runes.Map(func(r rune) rune {
	if r >= bengaliZero && r <= bengaliNine {
		return '0' + (r - bengaliZero)
	}
	return r
})

// NormalizeDigits rewrites Bengali digits ০–৯ as ASCII 0–9.
func NormalizeDigits(s string) string {
	out, _, err := transform.String(bengaliDigits, s)
	if err != nil {
		return s
	}
	return out
}
