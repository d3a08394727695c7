package extract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/IshaanNene/pricetracker/internal/fetcher"
	"github.com/IshaanNene/pricetracker/internal/parser"
	"github.com/IshaanNene/pricetracker/internal/types"
)

const (
	jsonLDSelector    = `script[type="application/ld+json"]`
	microdataSelector = `[itemprop="price"], [itemprop="lowPrice"]`
	metaPriceSelector = `meta[property="product:price:amount"], meta[property="og:price:amount"]`
)

type structuredSource struct {
	name   string
	values func(sess fetcher.Session) []string
}

var structuredSources = []structuredSource{
	{"json-ld", jsonLDPrices},
	{"microdata", microdataPrices},
	{"meta", metaPrices},
}

// structuredPrice reads the machine-readable prices shops publish for search
// engines: JSON-LD offers, microdata and product meta tags, in that order.
func structuredPrice(sess fetcher.Session, rng types.PriceRange) (types.Candidate, parser.Verdict) {
	verdict := parser.NoNumber
	for _, src := range structuredSources {
		for _, raw := range src.values(sess) {
			c, v := parser.Inspect(raw, rng)
			if v == parser.Accepted {
				c.Selector = "structured:" + src.name
				return c, v
			}
			if v == parser.OutOfRange {
				verdict = v
			}
		}
	}
	return types.Candidate{}, verdict
}

func jsonLDPrices(sess fetcher.Session) []string {
	els, err := sess.QueryAll(jsonLDSelector)
	if err != nil {
		return nil
	}
	var out []string
	for _, el := range els {
		raw, err := el.Text()
		if err != nil || strings.TrimSpace(raw) == "" {
			continue
		}
		var doc any
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			continue
		}
		out = offerPrices(doc, false, out)
	}
	return out
}

// offerPrices collects price and lowPrice from Offer objects, reached either
// by an "@type" naming an offer or through an "offers" key. Other keys are
// not descended so the order stays deterministic.
func offerPrices(v any, inOffer bool, out []string) []string {
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			out = offerPrices(e, inOffer, out)
		}
	case map[string]any:
		if inOffer || isOfferType(t["@type"]) {
			for _, k := range []string{"price", "lowPrice"} {
				if s := scalar(t[k]); s != "" {
					out = append(out, s)
				}
			}
			if spec, ok := t["priceSpecification"]; ok {
				out = offerPrices(spec, true, out)
			}
		}
		for _, k := range []string{"@graph", "mainEntity", "offers"} {
			if child, ok := t[k]; ok {
				out = offerPrices(child, k == "offers", out)
			}
		}
	}
	return out
}

func isOfferType(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.HasSuffix(t, "Offer") || t == "PriceSpecification" || t == "UnitPriceSpecification"
	case []any:
		for _, e := range t {
			if isOfferType(e) {
				return true
			}
		}
	}
	return false
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func microdataPrices(sess fetcher.Session) []string {
	els, err := sess.QueryAll(microdataSelector)
	if err != nil {
		return nil
	}
	var out []string
	for _, el := range els {
		if v, ok := el.Attr("content"); ok && strings.TrimSpace(v) != "" {
			out = append(out, v)
			continue
		}
		if text, err := el.Text(); err == nil && text != "" {
			out = append(out, text)
		}
	}
	return out
}

func metaPrices(sess fetcher.Session) []string {
	els, err := sess.QueryAll(metaPriceSelector)
	if err != nil {
		return nil
	}
	var out []string
	for _, el := range els {
		if v, ok := el.Attr("content"); ok && strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
