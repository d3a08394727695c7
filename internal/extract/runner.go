package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/pricetracker/internal/fetcher"
	"github.com/IshaanNene/pricetracker/internal/parser"
	"github.com/IshaanNene/pricetracker/internal/types"
)

// Runner walks the extraction tiers over a loaded page.
type Runner struct {
	scanner *parser.Scanner
	logger  *slog.Logger
}

// NewRunner creates a runner using scanner for the text-scan tiers.
func NewRunner(scanner *parser.Scanner, logger *slog.Logger) *Runner {
	return &Runner{
		scanner: scanner,
		logger:  logger.With("component", "extractor"),
	}
}

type tierFunc func(ctx context.Context, sess fetcher.Session, plan Plan) (types.Candidate, parser.Verdict, error)

// Run tries tiers A through D in order and returns the first accepted
// candidate. When every tier comes up empty the error is ErrInvalidRange if
// a price-bearing tier (A to C) saw numbers that only failed the range
// check, else ErrNotFound. Stray bare numbers never count as a price.
func (r *Runner) Run(ctx context.Context, sess fetcher.Session, plan Plan) (types.Candidate, error) {
	tiers := []struct {
		tier types.Tier
		run  tierFunc
	}{
		{types.TierSelector, r.selectorTier},
		{types.TierHeuristic, r.heuristicTier},
		{types.TierPattern, r.patternTier},
		{types.TierBare, r.bareTier},
	}

	sawOutOfRange := false
	for _, t := range tiers {
		if err := ctx.Err(); err != nil {
			return types.Candidate{}, err
		}
		c, verdict, err := t.run(ctx, sess, plan)
		if err != nil {
			// A failing tier falls through to the next one.
			r.logger.Warn("tier failed", "site", plan.Site, "tier", t.tier, "error", err)
			continue
		}
		r.logger.Debug("tier result", "site", plan.Site, "tier", t.tier, "verdict", verdict.String())
		if verdict == parser.Accepted {
			c.Tier = t.tier
			return c, nil
		}
		if verdict == parser.OutOfRange && t.tier != types.TierBare {
			sawOutOfRange = true
		}
	}

	if sawOutOfRange {
		return types.Candidate{}, types.NewScrapeError(types.ErrInvalidRange, plan.Site, sess.URL(),
			"numbers found but none within the plausible range")
	}
	return types.Candidate{}, types.NewScrapeError(types.ErrNotFound, plan.Site, sess.URL(),
		"no tier produced a price")
}

// selectorTier reads the vendor's price selectors in order and accepts the
// first element whose text parses within the selector range. Structured
// product data is consulted after the selectors when the plan allows it.
func (r *Runner) selectorTier(_ context.Context, sess fetcher.Session, plan Plan) (types.Candidate, parser.Verdict, error) {
	c, verdict, err := firstBySelectors(sess, plan.PriceSelectors, plan.Ranges.Selector)
	if verdict == parser.Accepted || !plan.Structured {
		return c, verdict, err
	}
	sc, sv := structuredPrice(sess, plan.Ranges.Selector)
	if sv == parser.Accepted {
		return sc, sv, nil
	}
	if sv == parser.OutOfRange {
		verdict = sv
	}
	return c, verdict, err
}

// scope is a Session or an Element: anything that can be queried.
type scope interface {
	QueryAll(selector string) ([]fetcher.Element, error)
}

func firstBySelectors(s scope, selectors []string, rng types.PriceRange) (types.Candidate, parser.Verdict, error) {
	verdict := parser.NoNumber
	var lastErr error
	queried := 0
	for _, sel := range selectors {
		els, err := s.QueryAll(sel)
		if err != nil {
			lastErr = err
			continue
		}
		queried++
		for _, el := range els {
			c, v := inspectElement(el, rng)
			if v == parser.Accepted {
				c.Selector = sel
				return c, v, nil
			}
			if v == parser.OutOfRange {
				verdict = parser.OutOfRange
			}
		}
	}
	if queried == 0 && lastErr != nil {
		return types.Candidate{}, verdict, lastErr
	}
	return types.Candidate{}, verdict, nil
}

// Attributes that carry a machine-readable price when the text is empty.
var priceAttrs = []string{"content", "data-price", "value"}

func inspectElement(el fetcher.Element, rng types.PriceRange) (types.Candidate, parser.Verdict) {
	text, err := el.Text()
	if err != nil {
		return types.Candidate{}, parser.NoNumber
	}
	c, v := parser.Inspect(text, rng)
	if v == parser.Accepted || text != "" {
		return c, v
	}
	for _, a := range priceAttrs {
		if val, ok := el.Attr(a); ok && val != "" {
			return parser.Inspect(val, rng)
		}
	}
	return c, v
}

// patternTier scans the serialized document with the vendor's currency
// patterns and takes the first match in pattern then document order.
func (r *Runner) patternTier(_ context.Context, sess fetcher.Session, plan Plan) (types.Candidate, parser.Verdict, error) {
	content, err := sess.HTML()
	if err != nil {
		return types.Candidate{}, parser.NoNumber, fmt.Errorf("read html: %w", err)
	}
	patterns := plan.Patterns
	if len(patterns) == 0 {
		patterns = parser.DefaultCurrencyPatterns
	}
	found, verdict := r.scanner.ScanPatterns(content, patterns, plan.Ranges.Pattern)
	if len(found) == 0 {
		return types.Candidate{}, verdict, nil
	}
	return found[0], parser.Accepted, nil
}

// bareTier scans the visible text for free-standing numbers and picks the
// most frequent in-range value; ties go to the earliest occurrence.
func (r *Runner) bareTier(_ context.Context, sess fetcher.Session, plan Plan) (types.Candidate, parser.Verdict, error) {
	text, err := sess.VisibleText()
	if err != nil {
		return types.Candidate{}, parser.NoNumber, fmt.Errorf("read text: %w", err)
	}
	found, verdict := r.scanner.ScanBare(text, plan.Ranges.Bare)
	if len(found) == 0 {
		return types.Candidate{}, verdict, nil
	}
	return mode(found), parser.Accepted, nil
}

func mode(cs []types.Candidate) types.Candidate {
	counts := make(map[float64]int, len(cs))
	for _, c := range cs {
		counts[c.Value]++
	}
	best := cs[0]
	for _, c := range cs[1:] {
		if counts[c.Value] > counts[best.Value] {
			best = c
		}
	}
	best.Score = float64(counts[best.Value])
	return best
}
