package parser

import (
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/IshaanNene/pricetracker/internal/types"
)

// DefaultCurrencyPatterns find currency-prefixed amounts in page text.
var DefaultCurrencyPatterns = []string{
	`₹\s*([\d,]+(?:\.\d{1,2})?)`,
	`INR\s*([\d,]+(?:\.\d{1,2})?)`,
	`Rs\.?\s*([\d,]+(?:\.\d{1,2})?)`,
}

// Scanner runs regular-expression scans over serialized page content.
// Compiled patterns are cached because vendor patterns come from config.
type Scanner struct {
	cache  *lru.Cache[string, *regexp.Regexp]
	logger *slog.Logger
}

// NewScanner creates a scanner holding up to size compiled patterns.
func NewScanner(size int, logger *slog.Logger) (*Scanner, error) {
	if size <= 0 {
		size = 64
	}
	cache, err := lru.New[string, *regexp.Regexp](size)
	if err != nil {
		return nil, fmt.Errorf("create pattern cache: %w", err)
	}
	return &Scanner{
		cache:  cache,
		logger: logger.With("component", "pattern_scanner"),
	}, nil
}

// ScanPatterns applies each pattern in order to content and returns every
// range-valid match as a candidate, preserving pattern then document order.
// A pattern with a capture group yields its first group; otherwise the full match.
func (s *Scanner) ScanPatterns(content string, patterns []string, r types.PriceRange) ([]types.Candidate, Verdict) {
	content = html.UnescapeString(content)
	var out []types.Candidate
	verdict := NoNumber

	for _, pattern := range patterns {
		re, err := s.getOrCompile(pattern)
		if err != nil {
			s.logger.Warn("skipping pattern", "pattern", pattern, "error", err)
			continue
		}
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			text := m[0]
			if len(m) > 1 && m[1] != "" {
				text = m[1]
			}
			c, v := Inspect(text, r)
			if v == Accepted {
				c.Raw = strings.TrimSpace(m[0])
				c.Selector = pattern
				out = append(out, c)
				continue
			}
			if v == OutOfRange {
				verdict = OutOfRange
			}
		}
	}
	if len(out) > 0 {
		verdict = Accepted
	}
	return out, verdict
}

// ScanBare finds free-standing digit groups in visible text.
// Values that look like recent years are skipped.
func (s *Scanner) ScanBare(text string, r types.PriceRange) ([]types.Candidate, Verdict) {
	var out []types.Candidate
	verdict := NoNumber
	for _, tok := range numberToken.FindAllString(text, -1) {
		tok = strings.TrimSpace(tok)
		value, ok := parseAmount(tok)
		if !ok || looksLikeYear(tok, value) {
			continue
		}
		if !r.Contains(value) {
			verdict = OutOfRange
			continue
		}
		out = append(out, types.Candidate{Value: value, Raw: tok})
	}
	if len(out) > 0 {
		verdict = Accepted
	}
	return out, verdict
}

func looksLikeYear(tok string, v float64) bool {
	return !strings.Contains(tok, ",") && v >= 1990 && v <= 2035
}

// getOrCompile returns a cached compiled regex or compiles and caches a new one.
func (s *Scanner) getOrCompile(pattern string) (*regexp.Regexp, error) {
	if re, ok := s.cache.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}
	s.cache.Add(pattern, re)
	return re, nil
}
