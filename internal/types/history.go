package types

import "time"

// DateLayout is the calendar-day format used in history files.
const DateLayout = "2006-01-02"

// Entry status values.
const (
	EntrySuccess = "success"
	EntryError   = "error"
)

// HistoryEntry is one recorded scrape outcome.
type HistoryEntry struct {
	Date     string   `json:"date"`
	Price    *float64 `json:"price"`
	Currency *string  `json:"currency"`
	Status   string   `json:"status"`
	RawData  string   `json:"rawData,omitempty"`
	Error    string   `json:"error,omitempty"`
	Label    string   `json:"label,omitempty"`
	Tier     Tier     `json:"tier,omitempty"`
}

// History is the per-product price history document.
type History struct {
	ProductID string         `json:"productId"`
	Prices    []HistoryEntry `json:"prices"`
}

// Day formats t as a UTC calendar day.
func Day(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// EntryFromOutcome converts an outcome into a history entry dated on now.
// The price is set if and only if the outcome succeeded.
func EntryFromOutcome(o Outcome, now time.Time) HistoryEntry {
	e := HistoryEntry{Date: Day(now)}
	if !o.OK {
		e.Status = EntryError
		e.Error = o.Reason
		return e
	}
	price := o.Price
	currency := o.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	e.Status = EntrySuccess
	e.Price = &price
	e.Currency = &currency
	e.RawData = o.RawText
	e.Label = o.Label
	e.Tier = o.Tier
	return e
}

// LastSuccess returns the newest successful entry, if any.
func (h *History) LastSuccess() (HistoryEntry, bool) {
	for i := len(h.Prices) - 1; i >= 0; i-- {
		if h.Prices[i].Status == EntrySuccess && h.Prices[i].Price != nil {
			return h.Prices[i], true
		}
	}
	return HistoryEntry{}, false
}
