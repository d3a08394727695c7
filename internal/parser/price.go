package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/IshaanNene/pricetracker/internal/types"
)

// Verdict explains why Inspect did or did not accept a text.
type Verdict int

const (
	Accepted Verdict = iota
	NoNumber
	Excluded
	OutOfRange
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case NoNumber:
		return "no_number"
	case Excluded:
		return "excluded"
	case OutOfRange:
		return "out_of_range"
	default:
		return "unknown"
	}
}

// Phrases that sit next to digits near real prices but never label one.
var excludedPhrase = regexp.MustCompile(`(?i)\b(deliver(y|ed|s)?|ratings?|rated|reviews?|discounts?|emi|warranty|sellers?|off|save|saving|savings|cashback)\b`)

var currencyMarks = regexp.MustCompile(`(?i)₹|&#8377;|\binr\b|\brs\.?`)

// A number token with optional separators, fraction and trailing percent sign.
var numberToken = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?\s*%?`)

// ParseCandidate extracts the first plausible price from text.
// It returns false when the text holds no number, names a decoy phrase,
// or every number lies outside r.
func ParseCandidate(text string, r types.PriceRange) (types.Candidate, bool) {
	c, v := Inspect(text, r)
	return c, v == Accepted
}

// Inspect is ParseCandidate with the rejection reason exposed.
func Inspect(text string, r types.PriceRange) (types.Candidate, Verdict) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return types.Candidate{}, NoNumber
	}
	if excludedPhrase.MatchString(raw) {
		return types.Candidate{}, Excluded
	}

	cleaned := currencyMarks.ReplaceAllString(raw, " ")
	verdict := NoNumber
	for _, tok := range numberToken.FindAllString(cleaned, -1) {
		value, ok := parseAmount(tok)
		if !ok {
			continue
		}
		if !r.Valid() || !r.Contains(value) {
			verdict = OutOfRange
			continue
		}
		return types.Candidate{Value: value, Raw: raw}, Accepted
	}
	return types.Candidate{}, verdict
}

func parseAmount(tok string) (float64, bool) {
	tok = strings.TrimSpace(tok)
	if strings.HasSuffix(tok, "%") {
		return 0, false
	}
	tok = strings.TrimRight(tok, ",")
	intPart, frac, hasFrac := strings.Cut(tok, ".")
	if hasFrac && (len(frac) == 0 || len(frac) > 2) {
		return 0, false
	}
	if !validGrouping(intPart) {
		return 0, false
	}
	digits := strings.ReplaceAll(intPart, ",", "")
	if hasFrac {
		digits += "." + frac
	}
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return math.Round(v*100) / 100, true
}

// validGrouping accepts Western (12,499) and Indian (1,24,999) digit groups.
func validGrouping(s string) bool {
	if !strings.Contains(s, ",") {
		return s != ""
	}
	groups := strings.Split(s, ",")
	if len(groups[0]) == 0 || len(groups[0]) > 3 {
		return false
	}
	last := groups[len(groups)-1]
	if len(last) != 3 {
		return false
	}
	for _, g := range groups[1 : len(groups)-1] {
		if len(g) != 2 && len(g) != 3 {
			return false
		}
	}
	return true
}
