package types

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for the scrape failure taxonomy.
var (
	ErrBlocked         = errors.New("blocked")
	ErrNotFound        = errors.New("price not found")
	ErrTimeout         = errors.New("navigation timed out")
	ErrUnsupportedSite = errors.New("unsupported site")
	ErrInvalidRange    = errors.New("price outside plausible range")
)

// ScrapeError is the error carried by a failed scrape outcome.
type ScrapeError struct {
	Kind   error
	Site   string
	URL    string
	Detail string
	Err    error
}

func (e *ScrapeError) Error() string {
	switch {
	case errors.Is(e.Kind, ErrBlocked):
		// Recorded verbatim as the product's lastError.
		return ErrBlocked.Error()
	case errors.Is(e.Kind, ErrUnsupportedSite):
		return fmt.Sprintf("%v: %s", e.Kind, e.Site)
	case e.Detail != "":
		return fmt.Sprintf("%v: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return e.Kind.Error()
	}
}

func (e *ScrapeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewScrapeError builds a ScrapeError of the given kind.
func NewScrapeError(kind error, site, url, detail string) *ScrapeError {
	return &ScrapeError{Kind: kind, Site: site, URL: url, Detail: detail}
}

// FetchError wraps errors raised while rendering a page.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur while persisting history or catalog data.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Kind maps an error onto a short label used in logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrBlocked):
		return "blocked"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrUnsupportedSite):
		return "unsupported_site"
	case errors.Is(err, ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "other"
	}
}
