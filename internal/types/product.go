package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of a tracked product.
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusError   Status = "error"
)

// ProductID accepts either a JSON string or a JSON number.
type ProductID string

func (id *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ProductID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("product id must be a string or number: %w", err)
	}
	*id = ProductID(n.String())
	return nil
}

func (id ProductID) String() string { return string(id) }

// Product is one tracked catalog entry.
type Product struct {
	ID          ProductID  `json:"id"`
	Name        string     `json:"name"`
	Site        string     `json:"site"`
	URL         string     `json:"url"`
	RoomType    string     `json:"roomType,omitempty"`
	Status      Status     `json:"status"`
	LastError   *string    `json:"lastError"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`

	// Extra holds catalog fields this program does not interpret.
	Extra map[string]json.RawMessage `json:"-"`
}

var productFields = map[string]bool{
	"id": true, "name": true, "site": true, "url": true, "roomType": true,
	"status": true, "lastError": true, "lastUpdated": true,
}

// productAlias drops the methods so encoding/json does not recurse.
type productAlias Product

func (p *Product) UnmarshalJSON(data []byte) error {
	var alias productAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k := range productFields {
		delete(raw, k)
	}
	if len(raw) > 0 {
		alias.Extra = raw
	}
	*p = Product(alias)
	return nil
}

func (p Product) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(productAlias(p))
	if err != nil {
		return nil, err
	}
	if len(p.Extra) == 0 {
		return known, nil
	}
	merged := make(map[string]json.RawMessage, len(p.Extra)+len(productFields))
	for k, v := range p.Extra {
		merged[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// MarkActive records a successful attempt and clears any previous error.
func (p *Product) MarkActive(now time.Time) {
	p.Status = StatusActive
	p.LastError = nil
	p.LastUpdated = &now
}

// MarkError records a failed attempt.
func (p *Product) MarkError(reason string, now time.Time) {
	p.Status = StatusError
	p.LastError = &reason
	p.LastUpdated = &now
}

// ErrorMessage returns the last error or "" when none is recorded.
func (p *Product) ErrorMessage() string {
	if p.LastError == nil {
		return ""
	}
	return *p.LastError
}

// Target is what a vendor strategy needs to scrape one product.
type Target struct {
	ProductID ProductID
	Site      string
	URL       string
	RoomType  string
}

// TargetOf builds the scrape target for a product.
func TargetOf(p *Product) Target {
	return Target{ProductID: p.ID, Site: p.Site, URL: p.URL, RoomType: p.RoomType}
}
