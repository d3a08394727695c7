package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/pricetracker/internal/types"
)

// StaticSession answers DOM queries over an HTML snapshot.
// CSS selectors go through goquery; xpath: selectors through htmlquery.
type StaticSession struct {
	url   string
	raw   string
	root  *html.Node
	doc   *goquery.Document
	onEnd func()
}

// NewStaticSession parses body as the page served at pageURL.
func NewStaticSession(pageURL, body string) (*StaticSession, error) {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &StaticSession{
		url:  pageURL,
		raw:  body,
		root: root,
		doc:  goquery.NewDocumentFromNode(root),
	}, nil
}

func (s *StaticSession) URL() string { return s.url }

func (s *StaticSession) Title() (string, error) {
	return strings.TrimSpace(s.doc.Find("title").First().Text()), nil
}

func (s *StaticSession) QueryAll(selector string) ([]Element, error) {
	return queryNodes(s.doc.Selection, s.root, selector)
}

func (s *StaticSession) HTML() (string, error) { return s.raw, nil }

// VisibleText joins the page's text nodes with single spaces so that
// adjacent cells or spans never fuse into one number.
func (s *StaticSession) VisibleText() (string, error) {
	var parts []string
	for _, body := range s.doc.Find("body").Nodes {
		parts = appendTextNodes(parts, body)
	}
	return collapseSpace(strings.Join(parts, " ")), nil
}

var hiddenTags = map[string]bool{"script": true, "style": true, "noscript": true, "template": true}

func appendTextNodes(parts []string, n *html.Node) []string {
	switch n.Type {
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			parts = append(parts, t)
		}
		return parts
	case html.ElementNode:
		if hiddenTags[n.Data] {
			return parts
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		parts = appendTextNodes(parts, c)
	}
	return parts
}

func (s *StaticSession) Evaluate(string) (any, error) { return nil, ErrEvaluateUnsupported }

func (s *StaticSession) Screenshot(string) error { return ErrScreenshotUnsupported }

func (s *StaticSession) Close() error {
	if s.onEnd != nil {
		s.onEnd()
		s.onEnd = nil
	}
	return nil
}

func queryNodes(scope *goquery.Selection, node *html.Node, selector string) ([]Element, error) {
	expr, isXPath := splitSelector(selector)
	if isXPath {
		nodes, err := htmlquery.QueryAll(node, expr)
		if err != nil {
			return nil, fmt.Errorf("xpath %q: %w", expr, err)
		}
		out := make([]Element, 0, len(nodes))
		for _, n := range nodes {
			if n.Type != html.ElementNode {
				continue
			}
			// Absolute expressions may match outside an element scope.
			if sel := scope.FindNodes(n); sel.Length() > 0 {
				out = append(out, staticElement{sel: sel})
			}
		}
		return out, nil
	}

	// goquery silently matches nothing on a bad selector; parse first to surface it.
	if _, err := cascadia.ParseGroup(selector); err != nil {
		return nil, fmt.Errorf("css %q: %w", selector, err)
	}
	var out []Element
	scope.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, staticElement{sel: sel})
	})
	return out, nil
}

type staticElement struct {
	sel *goquery.Selection
}

func (e staticElement) Text() (string, error) {
	return collapseSpace(e.sel.Text()), nil
}

func (e staticElement) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

func (e staticElement) TagName() string {
	return goquery.NodeName(e.sel)
}

var inlineFontSize = regexp.MustCompile(`(?i)font-size\s*:\s*([\d.]+)\s*px`)

// Default sizes for tags when no inline style says otherwise.
var tagFontSize = map[string]float64{
	"h1": 32, "h2": 24, "h3": 18.72, "h4": 16, "h5": 13.28, "h6": 10.72,
	"small": 13.33, "sub": 13.33, "sup": 13.33,
}

// FontSize uses the nearest inline font-size declaration, then tag defaults.
func (e staticElement) FontSize() float64 {
	for sel := e.sel; sel.Length() > 0; sel = sel.Parent() {
		if style, ok := sel.Attr("style"); ok {
			if m := inlineFontSize.FindStringSubmatch(style); m != nil {
				if v, err := strconv.ParseFloat(m[1], 64); err == nil {
					return v
				}
			}
		}
		if v, ok := tagFontSize[goquery.NodeName(sel)]; ok {
			return v
		}
	}
	return 16
}

func (e staticElement) Parent() (Element, bool) {
	p := e.sel.Parent()
	if p.Length() == 0 || p.Nodes[0].Type != html.ElementNode {
		return nil, false
	}
	return staticElement{sel: p}, true
}

func (e staticElement) QueryAll(selector string) ([]Element, error) {
	if e.sel.Length() == 0 {
		return nil, nil
	}
	return queryNodes(e.sel, e.sel.Nodes[0], selector)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// StaticProvider serves fixed HTML documents by URL.
// A URL whose exact form is not registered falls back to a page registered
// for the same scheme, host and path.
type StaticProvider struct {
	mu     sync.Mutex
	pages  map[string]string
	errs   map[string]error
	loads  []string
	opened int
	closed int
}

// NewStaticProvider creates an empty static provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		pages: make(map[string]string),
		errs:  make(map[string]error),
	}
}

// Add registers body as the document served at rawURL.
func (p *StaticProvider) Add(rawURL, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages[rawURL] = body
}

// Fail makes loads of rawURL return err.
func (p *StaticProvider) Fail(rawURL string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[rawURL] = err
}

func (p *StaticProvider) Load(ctx context.Context, rawURL string, _ LoadOptions) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loads = append(p.loads, rawURL)

	if err := p.lookupErr(rawURL); err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}
	body, ok := p.lookup(rawURL)
	if !ok {
		return nil, &types.FetchError{URL: rawURL, Err: fmt.Errorf("no static page registered")}
	}
	sess, err := NewStaticSession(rawURL, body)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}
	p.opened++
	sess.onEnd = func() {
		p.mu.Lock()
		p.closed++
		p.mu.Unlock()
	}
	return sess, nil
}

func (p *StaticProvider) lookup(rawURL string) (string, bool) {
	if body, ok := p.pages[rawURL]; ok {
		return body, true
	}
	key := pathKey(rawURL)
	for u, body := range p.pages {
		if pathKey(u) == key {
			return body, true
		}
	}
	return "", false
}

func (p *StaticProvider) lookupErr(rawURL string) error {
	if err, ok := p.errs[rawURL]; ok {
		return err
	}
	key := pathKey(rawURL)
	for u, err := range p.errs {
		if pathKey(u) == key {
			return err
		}
	}
	return nil
}

func pathKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Scheme + "://" + u.Host + u.Path
}

// Loads returns every URL requested so far, in order.
func (p *StaticProvider) Loads() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.loads...)
}

// OpenSessions returns how many sessions were loaded but not closed.
func (p *StaticProvider) OpenSessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened - p.closed
}

func (p *StaticProvider) Close() error { return nil }

func (p *StaticProvider) Type() string { return "static" }
