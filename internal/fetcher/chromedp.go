package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/IshaanNene/pricetracker/internal/config"
	"github.com/IshaanNene/pricetracker/internal/types"
)

// ChromedpProvider renders pages with chromedp. DOM queries run over the
// rendered HTML snapshot; screenshots come from the live tab.
type ChromedpProvider struct {
	cfg      config.BrowserConfig
	proxyMgr *ProxyManager
	stealth  *StealthConfig
	logger   *slog.Logger

	mu           sync.Mutex
	browserCtx   context.Context
	cancelAlloc  context.CancelFunc
	cancelBrowse context.CancelFunc
}

// ChromedpOption configures the ChromedpProvider.
type ChromedpOption func(*ChromedpProvider)

// WithChromedpProxy sets the proxy manager consulted at browser start.
func WithChromedpProxy(pm *ProxyManager) ChromedpOption {
	return func(cp *ChromedpProvider) { cp.proxyMgr = pm }
}

// NewChromedpProvider creates a chromedp provider. No browser is started yet.
func NewChromedpProvider(cfg config.BrowserConfig, logger *slog.Logger, opts ...ChromedpOption) *ChromedpProvider {
	cp := &ChromedpProvider{
		cfg:    cfg,
		logger: logger.With("component", "chromedp_provider"),
	}
	if cfg.Stealth {
		cp.stealth = DefaultStealthConfig()
	}
	for _, opt := range opts {
		opt(cp)
	}
	return cp
}

func (cp *ChromedpProvider) ensureBrowser() (context.Context, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if cp.browserCtx != nil {
		return cp.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cp.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(cp.cfg.UserAgent),
	)
	if cp.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cp.cfg.BinPath != "" {
		opts = append(opts, chromedp.ExecPath(cp.cfg.BinPath))
	}
	if cp.cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cp.cfg.UserDataDir))
	}
	if proxyURL := cp.proxyMgr.Next(); proxyURL != nil {
		opts = append(opts, chromedp.ProxyServer(proxyURL.String()))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowse := chromedp.NewContext(allocCtx)
	// The first Run starts the browser; it must not carry a per-load deadline.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowse()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	cp.browserCtx, cp.cancelAlloc, cp.cancelBrowse = browserCtx, cancelAlloc, cancelBrowse
	cp.logger.Info("browser ready", "headless", cp.cfg.Headless)
	return browserCtx, nil
}

// Load opens a tab, applies the profile, navigates and snapshots the DOM.
func (cp *ChromedpProvider) Load(ctx context.Context, rawURL string, opts LoadOptions) (Session, error) {
	browserCtx, err := cp.ensureBrowser()
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	stop := context.AfterFunc(ctx, cancelTab)
	release := func() {
		stop()
		cancelTab()
	}
	if err := chromedp.Run(tabCtx); err != nil {
		release()
		return nil, &types.FetchError{URL: rawURL, Err: fmt.Errorf("open tab: %w", err)}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = cp.cfg.DefaultTimeout
	}
	runCtx, cancelRun := context.WithTimeout(tabCtx, timeout)
	defer cancelRun()

	var title, location, doc string
	actions := []chromedp.Action{network.Enable()}
	if opts.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(opts.UserAgent))
	}
	if len(opts.Headers) > 0 {
		headers := make(network.Headers, len(opts.Headers))
		for k, v := range opts.Headers {
			headers[k] = v
		}
		actions = append(actions, network.SetExtraHTTPHeaders(headers))
	}
	if opts.Viewport.Width > 0 && opts.Viewport.Height > 0 {
		actions = append(actions, emulation.SetDeviceMetricsOverride(
			int64(opts.Viewport.Width), int64(opts.Viewport.Height), 1, opts.Viewport.Mobile))
	}
	if cp.stealth != nil {
		js := cp.stealth.StealthJS()
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(js).Do(ctx)
			return err
		}))
	}
	actions = append(actions,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if opts.Wait == WaitStable || opts.Wait == WaitIdle {
		actions = append(actions, chromedp.Sleep(500*time.Millisecond))
	}
	if opts.Settle > 0 {
		actions = append(actions, chromedp.Sleep(opts.Settle))
	}
	actions = append(actions,
		chromedp.Title(&title),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &doc, chromedp.ByQuery),
	)

	start := time.Now()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		release()
		return nil, navigationError(rawURL, timeout, err)
	}

	snapshot, err := NewStaticSession(location, doc)
	if err != nil {
		release()
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}
	cp.logger.Debug("page loaded",
		"url", rawURL,
		"final_url", location,
		"size", len(doc),
		"duration", time.Since(start),
	)
	return &chromedpSession{StaticSession: snapshot, tabCtx: tabCtx, title: title, release: release}, nil
}

// Close shuts down the browser.
func (cp *ChromedpProvider) Close() error {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if cp.browserCtx == nil {
		return nil
	}
	cp.cancelBrowse()
	cp.cancelAlloc()
	cp.browserCtx = nil
	return nil
}

// Type returns the provider type identifier.
func (cp *ChromedpProvider) Type() string {
	return "chromedp"
}

type chromedpSession struct {
	*StaticSession
	tabCtx  context.Context
	title   string
	release func()
	once    sync.Once
}

func (s *chromedpSession) Title() (string, error) { return s.title, nil }

// Evaluate runs against the live tab, not the snapshot.
func (s *chromedpSession) Evaluate(js string) (any, error) {
	var res any
	if err := chromedp.Run(s.tabCtx, chromedp.Evaluate("("+js+")()", &res)); err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	return res, nil
}

// FullScreenshot encodes PNG only at quality 100; anything lower is JPEG.
const pngQuality = 100

func (s *chromedpSession) Screenshot(path string) error {
	var img []byte
	if err := chromedp.Run(s.tabCtx, chromedp.FullScreenshot(&img, pngQuality)); err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	return os.WriteFile(path, img, 0o644)
}

func (s *chromedpSession) Close() error {
	s.once.Do(s.release)
	return nil
}
