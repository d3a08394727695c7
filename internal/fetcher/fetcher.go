package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IshaanNene/pricetracker/internal/config"
)

// Provider loads pages and hands out sessions over the rendered result.
type Provider interface {
	// Load navigates to url and returns a session the caller must Close.
	Load(ctx context.Context, url string, opts LoadOptions) (Session, error)

	// Close releases any resources held by the provider.
	Close() error

	// Type returns the provider type identifier.
	Type() string
}

// Session is one loaded page. It is owned by a single extraction call.
type Session interface {
	URL() string
	Title() (string, error)
	QueryAll(selector string) ([]Element, error)
	HTML() (string, error)
	// VisibleText returns the page's rendered text without markup or scripts.
	VisibleText() (string, error)
	// Evaluate runs a JavaScript function expression in the page and
	// returns its JSON-decoded result.
	Evaluate(js string) (any, error)
	Screenshot(path string) error
	Close() error
}

// Element is a DOM node inside a session.
type Element interface {
	Text() (string, error)
	Attr(name string) (string, bool)
	TagName() string
	// FontSize is the computed font size in CSS pixels, 0 when unknown.
	FontSize() float64
	Parent() (Element, bool)
	QueryAll(selector string) ([]Element, error)
}

// WaitPolicy says when a page counts as loaded.
type WaitPolicy string

const (
	WaitLoad   WaitPolicy = "load"
	WaitStable WaitPolicy = "stable"
	WaitIdle   WaitPolicy = "idle"
)

// Viewport is the emulated screen.
type Viewport struct {
	Width  int
	Height int
	Mobile bool
}

// LoadOptions is the per-vendor navigation profile.
type LoadOptions struct {
	UserAgent string
	Viewport  Viewport
	Headers   map[string]string
	Wait      WaitPolicy
	Timeout   time.Duration
	// Settle is an extra pause after the wait policy is met.
	Settle time.Duration
}

// XPathPrefix marks a selector as XPath instead of CSS.
const XPathPrefix = "xpath:"

// ErrScreenshotUnsupported is returned by sessions that have no rendered surface.
var ErrScreenshotUnsupported = errors.New("screenshot not supported by this provider")

// ErrEvaluateUnsupported is returned by sessions that cannot run scripts.
var ErrEvaluateUnsupported = errors.New("script evaluation not supported by this provider")

// splitSelector reports whether selector is XPath and returns the bare expression.
func splitSelector(selector string) (string, bool) {
	if expr, ok := strings.CutPrefix(selector, XPathPrefix); ok {
		return strings.TrimSpace(expr), true
	}
	return selector, false
}

// OptionsFor converts a vendor render profile into load options,
// falling back to the browser-wide defaults.
func OptionsFor(r config.RenderConfig, b config.BrowserConfig) LoadOptions {
	opts := LoadOptions{
		UserAgent: r.UserAgent,
		Viewport:  Viewport{Width: r.ViewportWidth, Height: r.ViewportHeight, Mobile: r.Mobile},
		Headers:   r.Headers,
		Wait:      WaitPolicy(r.Wait),
		Timeout:   r.Timeout,
		Settle:    r.Settle,
	}
	if opts.UserAgent == "" {
		opts.UserAgent = b.UserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = b.DefaultTimeout
	}
	if opts.Wait == "" {
		opts.Wait = WaitLoad
	}
	return opts
}

// New creates the provider selected by cfg.Browser.Engine.
func New(cfg *config.Config, logger *slog.Logger) (Provider, error) {
	var proxies *ProxyManager
	if cfg.Proxy.Enabled && len(cfg.Proxy.URLs) > 0 {
		proxies = NewProxyManager(&cfg.Proxy, logger)
	}

	switch cfg.Browser.Engine {
	case "rod", "":
		opts := []RodOption{WithRodProxy(proxies)}
		if cfg.Browser.Stealth {
			opts = append(opts, WithStealth(DefaultStealthConfig()))
		}
		return NewRodProvider(cfg.Browser, logger, opts...), nil
	case "chromedp":
		return NewChromedpProvider(cfg.Browser, logger, WithChromedpProxy(proxies)), nil
	case "http":
		return NewHTTPProvider(cfg.Browser, logger, WithHTTPProxy(proxies))
	default:
		return nil, fmt.Errorf("unknown render engine %q", cfg.Browser.Engine)
	}
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
