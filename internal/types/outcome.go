package types

import "fmt"

// PriceRange is an inclusive plausibility window for parsed prices.
type PriceRange struct {
	Min float64 `mapstructure:"min" yaml:"min" json:"min"`
	Max float64 `mapstructure:"max" yaml:"max" json:"max"`
}

// Contains reports whether v lies within the range, bounds included.
func (r PriceRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Valid reports whether the range is usable.
func (r PriceRange) Valid() bool {
	return r.Min > 0 && r.Max > r.Min
}

// Within reports whether r is no wider than outer.
func (r PriceRange) Within(outer PriceRange) bool {
	return r.Min >= outer.Min && r.Max <= outer.Max
}

func (r PriceRange) String() string {
	return fmt.Sprintf("[%g, %g]", r.Min, r.Max)
}

// Tier identifies the extraction stage that produced a candidate.
type Tier string

const (
	TierNone      Tier = ""
	TierSelector  Tier = "A"
	TierHeuristic Tier = "B"
	TierPattern   Tier = "C"
	TierBare      Tier = "D"
)

// Confidence is the coarse trust level attached to a tier.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Confidence returns the confidence level a tier implies.
func (t Tier) Confidence() Confidence {
	switch t {
	case TierSelector:
		return ConfidenceHigh
	case TierHeuristic:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Candidate is a parsed, range-checked price proposed by a tier.
type Candidate struct {
	Value    float64
	Raw      string
	Tier     Tier
	Selector string
	Label    string
	Score    float64
}

// Outcome is the tagged result of one scrape attempt.
type Outcome struct {
	OK bool

	// Success fields.
	Price      float64
	Currency   string
	RawText    string
	Label      string
	Name       string
	Tier       Tier
	Confidence Confidence

	// Failure fields.
	Reason string
	Err    error
}

// Success builds a successful outcome from a candidate.
func Success(c Candidate, currency string) Outcome {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Outcome{
		OK:         true,
		Price:      c.Value,
		Currency:   currency,
		RawText:    c.Raw,
		Label:      c.Label,
		Tier:       c.Tier,
		Confidence: c.Tier.Confidence(),
	}
}

// Failure builds a failed outcome; Reason is the error text.
func Failure(err error) Outcome {
	if err == nil {
		err = ErrNotFound
	}
	return Outcome{Reason: err.Error(), Err: err}
}

// DefaultCurrency is recorded when a vendor does not state one.
const DefaultCurrency = "INR"
