package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/pricetracker/internal/config"
	"github.com/IshaanNene/pricetracker/internal/types"
)

// RodProvider renders pages in headless Chromium via Rod.
// The browser is launched on first use and shared by every session;
// each Load opens a fresh page that its session closes.
type RodProvider struct {
	cfg        config.BrowserConfig
	stealthCfg *StealthConfig
	proxyMgr   *ProxyManager
	logger     *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

// RodOption configures the RodProvider.
type RodOption func(*RodProvider)

// WithStealth enables stealth pages and the given fingerprint overrides.
func WithStealth(cfg *StealthConfig) RodOption {
	return func(rp *RodProvider) { rp.stealthCfg = cfg }
}

// WithRodProxy sets the proxy manager consulted at browser launch.
func WithRodProxy(pm *ProxyManager) RodOption {
	return func(rp *RodProvider) { rp.proxyMgr = pm }
}

// NewRodProvider creates a Rod provider. No browser is started yet.
func NewRodProvider(cfg config.BrowserConfig, logger *slog.Logger, opts ...RodOption) *RodProvider {
	rp := &RodProvider{
		cfg:    cfg,
		logger: logger.With("component", "rod_provider"),
	}
	for _, opt := range opts {
		opt(rp)
	}
	return rp
}

// ensureBrowser launches and connects Chromium once.
func (rp *RodProvider) ensureBrowser() (*rod.Browser, error) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	if rp.browser != nil {
		return rp.browser, nil
	}

	l := launcher.New().
		Headless(rp.cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-accelerated-2d-canvas").
		Set("no-first-run").
		Set("disable-blink-features", "AutomationControlled")
	if rp.cfg.NoSandbox {
		l = l.NoSandbox(true).Set("disable-setuid-sandbox")
	}
	if rp.cfg.BinPath != "" {
		l = l.Bin(rp.cfg.BinPath)
	}
	if rp.cfg.UserDataDir != "" {
		l = l.UserDataDir(rp.cfg.UserDataDir)
	}
	if proxyURL := rp.proxyMgr.Next(); proxyURL != nil {
		l = l.Proxy(proxyURL.Host)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	rp.browser = browser

	rp.logger.Info("browser ready",
		"headless", rp.cfg.Headless,
		"stealth", rp.stealthCfg != nil,
	)
	return browser, nil
}

// Load opens a page, applies the profile and navigates to rawURL.
func (rp *RodProvider) Load(ctx context.Context, rawURL string, opts LoadOptions) (Session, error) {
	browser, err := rp.ensureBrowser()
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}

	var page *rod.Page
	if rp.stealthCfg != nil {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: fmt.Errorf("open page: %w", err)}
	}
	page = page.Context(ctx)

	sess := &rodSession{page: page, url: rawURL, logger: rp.logger}
	if err := rp.prepare(page, opts); err != nil {
		_ = sess.Close()
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = rp.cfg.DefaultTimeout
	}
	start := time.Now()
	if err := page.Timeout(timeout).Navigate(rawURL); err != nil {
		_ = sess.Close()
		return nil, navigationError(rawURL, timeout, err)
	}
	if err := rp.wait(page, opts.Wait, timeout); err != nil {
		// Late subresources are common on vendor pages; extract from what loaded.
		rp.logger.Warn("wait policy not met, continuing", "url", rawURL, "wait", opts.Wait, "error", err)
	}
	if err := SleepContext(ctx, opts.Settle); err != nil {
		_ = sess.Close()
		return nil, navigationError(rawURL, timeout, err)
	}

	if info, err := page.Info(); err == nil && info != nil {
		sess.url = info.URL
		sess.title = info.Title
	}
	rp.logger.Debug("page loaded",
		"url", rawURL,
		"final_url", sess.url,
		"duration", time.Since(start),
	)
	return sess, nil
}

func (rp *RodProvider) prepare(page *rod.Page, opts LoadOptions) error {
	if opts.UserAgent != "" {
		err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent})
		if err != nil {
			return fmt.Errorf("set user agent: %w", err)
		}
	}
	if len(opts.Headers) > 0 {
		headers := make([]string, 0, len(opts.Headers)*2)
		for k, v := range opts.Headers {
			headers = append(headers, k, v)
		}
		if _, err := page.SetExtraHeaders(headers); err != nil {
			return fmt.Errorf("set headers: %w", err)
		}
	}
	if opts.Viewport.Width > 0 && opts.Viewport.Height > 0 {
		err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             opts.Viewport.Width,
			Height:            opts.Viewport.Height,
			DeviceScaleFactor: 1,
			Mobile:            opts.Viewport.Mobile,
		})
		if err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
	}
	if rp.stealthCfg != nil {
		if _, err := page.EvalOnNewDocument(rp.stealthCfg.StealthJS()); err != nil {
			return fmt.Errorf("inject stealth script: %w", err)
		}
	}
	return nil
}

func (rp *RodProvider) wait(page *rod.Page, policy WaitPolicy, timeout time.Duration) error {
	p := page.Timeout(timeout)
	defer p.CancelTimeout()
	switch policy {
	case WaitStable:
		return p.WaitStable(300 * time.Millisecond)
	case WaitIdle:
		if err := p.WaitLoad(); err != nil {
			return err
		}
		return p.WaitIdle(timeout)
	default:
		return p.WaitLoad()
	}
}

func navigationError(rawURL string, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &types.FetchError{URL: rawURL, Err: fmt.Errorf("%w after %s", types.ErrTimeout, timeout)}
	}
	return &types.FetchError{URL: rawURL, Err: err}
}

// Close shuts down the browser.
func (rp *RodProvider) Close() error {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	if rp.browser == nil {
		return nil
	}
	err := rp.browser.Close()
	rp.browser = nil
	return err
}

// Type returns the provider type identifier.
func (rp *RodProvider) Type() string {
	return "rod"
}

type rodSession struct {
	page   *rod.Page
	url    string
	title  string
	logger *slog.Logger
	once   sync.Once
}

func (s *rodSession) URL() string { return s.url }

func (s *rodSession) Title() (string, error) {
	if s.title != "" {
		return s.title, nil
	}
	info, err := s.page.Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.Title, nil
}

func (s *rodSession) QueryAll(selector string) ([]Element, error) {
	expr, isXPath := splitSelector(selector)
	var (
		els rod.Elements
		err error
	)
	if isXPath {
		els, err = s.page.ElementsX(expr)
	} else {
		els, err = s.page.Elements(expr)
	}
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	return wrapRod(els), nil
}

func (s *rodSession) HTML() (string, error) {
	return s.page.HTML()
}

func (s *rodSession) VisibleText() (string, error) {
	res, err := s.page.Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return "", fmt.Errorf("read page text: %w", err)
	}
	return collapseSpace(res.Value.Str()), nil
}

func (s *rodSession) Evaluate(js string) (any, error) {
	res, err := s.page.Eval(js)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	return res.Value.Val(), nil
}

func (s *rodSession) Screenshot(path string) error {
	img, err := s.page.Screenshot(true, nil)
	if err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	return os.WriteFile(path, img, 0o644)
}

func (s *rodSession) Close() error {
	var err error
	s.once.Do(func() {
		err = s.page.Close()
	})
	return err
}

type rodElement struct {
	el *rod.Element
}

func wrapRod(els rod.Elements) []Element {
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, rodElement{el: el})
	}
	return out
}

func (e rodElement) Text() (string, error) {
	text, err := e.el.Text()
	if err != nil {
		return "", err
	}
	return collapseSpace(text), nil
}

func (e rodElement) Attr(name string) (string, bool) {
	v, err := e.el.Attribute(name)
	if err != nil || v == nil {
		return "", false
	}
	return *v, true
}

func (e rodElement) TagName() string {
	res, err := e.el.Eval(`() => this.tagName`)
	if err != nil {
		return ""
	}
	return strings.ToLower(res.Value.Str())
}

func (e rodElement) FontSize() float64 {
	res, err := e.el.Eval(`() => parseFloat(getComputedStyle(this).fontSize) || 0`)
	if err != nil {
		return 0
	}
	return res.Value.Num()
}

func (e rodElement) Parent() (Element, bool) {
	p, err := e.el.Parent()
	if err != nil || p == nil {
		return nil, false
	}
	return rodElement{el: p}, true
}

func (e rodElement) QueryAll(selector string) ([]Element, error) {
	expr, isXPath := splitSelector(selector)
	var (
		els rod.Elements
		err error
	)
	if isXPath {
		els, err = e.el.ElementsX(expr)
	} else {
		els, err = e.el.Elements(expr)
	}
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	return wrapRod(els), nil
}
