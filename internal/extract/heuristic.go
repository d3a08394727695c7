package extract

import (
	"context"
	"strings"

	"github.com/IshaanNene/pricetracker/internal/fetcher"
	"github.com/IshaanNene/pricetracker/internal/parser"
	"github.com/IshaanNene/pricetracker/internal/types"
)

// Leaf elements whose text carries a rupee marker.
const (
	currencyLeavesXPath       = `xpath://body//*[not(*)][not(self::script) and not(self::style)][contains(., '₹') or contains(., 'INR') or contains(., 'Rs.')]`
	scopedCurrencyLeavesXPath = `xpath:.//*[not(*)][not(self::script) and not(self::style)][contains(., '₹') or contains(., 'INR') or contains(., 'Rs.')]`
)

// Per-query cap on elements considered by the heuristic tier.
const maxHeuristicElements = 200

const (
	cueBonus      = 4
	struckPenalty = 100
)

var priceCues = []string{"price", "amount", "total", "per night", "you pay", "offer"}

type scored struct {
	c     types.Candidate
	score float64
}

// heuristicTier ranks elements whose class names hint at a price together
// with currency-bearing leaves, by rendered size and nearby price wording.
func (r *Runner) heuristicTier(_ context.Context, sess fetcher.Session, plan Plan) (types.Candidate, parser.Verdict, error) {
	selectors := append(append([]string(nil), plan.HeuristicSelectors...), currencyLeavesXPath)
	c, v := bestScored(sess, selectors, plan.Ranges.Heuristic)
	return c, v, nil
}

// bestScored evaluates every element matched by selectors and returns the
// highest scoring accepted candidate. Ties keep the earliest element.
func bestScored(s scope, selectors []string, rng types.PriceRange) (types.Candidate, parser.Verdict) {
	verdict := parser.NoNumber
	var best *scored
	for _, sel := range selectors {
		els, err := s.QueryAll(sel)
		if err != nil {
			continue
		}
		if len(els) > maxHeuristicElements {
			els = els[:maxHeuristicElements]
		}
		for _, el := range els {
			c, v := inspectLeaf(el, rng)
			if v == parser.OutOfRange {
				verdict = parser.OutOfRange
			}
			if v != parser.Accepted {
				continue
			}
			c.Selector = sel
			c.Score = scoreElement(el)
			if best == nil || c.Score > best.score {
				best = &scored{c: c, score: c.Score}
			}
		}
	}
	if best == nil {
		return types.Candidate{}, verdict
	}
	return best.c, parser.Accepted
}

// inspectLeaf parses an element, borrowing its parent's text when the
// element holds only the currency symbol.
func inspectLeaf(el fetcher.Element, rng types.PriceRange) (types.Candidate, parser.Verdict) {
	text, err := el.Text()
	if err != nil {
		return types.Candidate{}, parser.NoNumber
	}
	if !hasDigit(text) {
		if p, ok := el.Parent(); ok {
			if pt, err := p.Text(); err == nil && len(pt) < 80 {
				text = pt
			}
		}
	}
	return parser.Inspect(text, rng)
}

func scoreElement(el fetcher.Element) float64 {
	size := el.FontSize()
	if size <= 0 {
		size = 16
	}
	score := size
	if hasPriceCue(el) {
		score += cueBonus
	}
	if isStruck(el) {
		score -= struckPenalty
	}
	return score
}

func hasPriceCue(el fetcher.Element) bool {
	if containsCue(classOf(el)) {
		return true
	}
	p, ok := el.Parent()
	if !ok {
		return false
	}
	if containsCue(classOf(p)) {
		return true
	}
	if text, err := p.Text(); err == nil && len(text) < 200 {
		return containsCue(text)
	}
	return false
}

func containsCue(s string) bool {
	s = strings.ToLower(s)
	for _, cue := range priceCues {
		if strings.Contains(s, cue) {
			return true
		}
	}
	return false
}

// isStruck reports whether el or its parent renders as a crossed-out list price.
func isStruck(el fetcher.Element) bool {
	check := func(e fetcher.Element) bool {
		switch e.TagName() {
		case "del", "s", "strike":
			return true
		}
		if style, ok := e.Attr("style"); ok && strings.Contains(style, "line-through") {
			return true
		}
		for _, cls := range strings.Fields(strings.ToLower(classOf(e))) {
			if strings.Contains(cls, "strike") || strings.Contains(cls, "line-through") || strings.Contains(cls, "mrp") {
				return true
			}
		}
		return false
	}
	if check(el) {
		return true
	}
	if p, ok := el.Parent(); ok {
		return check(p)
	}
	return false
}

func classOf(el fetcher.Element) string {
	cls, _ := el.Attr("class")
	return cls
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}
