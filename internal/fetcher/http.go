package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/pricetracker/internal/config"
	"github.com/IshaanNene/pricetracker/internal/types"
)

// HTTPProvider loads pages with a plain HTTP GET and no script execution.
// It suits vendors that render prices server-side.
type HTTPProvider struct {
	client      *http.Client
	proxyMgr    *ProxyManager
	maxBodySize int64
	defaultUA   string
	logger      *slog.Logger
}

// HTTPOption configures the HTTPProvider.
type HTTPOption func(*HTTPProvider)

// WithHTTPProxy routes requests through the proxy manager.
func WithHTTPProxy(pm *ProxyManager) HTTPOption {
	return func(p *HTTPProvider) { p.proxyMgr = pm }
}

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(p *HTTPProvider) { p.client = c }
}

type proxyKey struct{}

// NewHTTPProvider creates a new HTTP provider.
func NewHTTPProvider(cfg config.BrowserConfig, logger *slog.Logger, opts ...HTTPOption) (*HTTPProvider, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	// The proxy chosen for a request travels in its context so failures can
	// be attributed to it.
	proxyFromContext := func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyKey{}).(*url.URL); ok && u != nil {
			return u, nil
		}
		return nil, nil
	}

	p := &HTTPProvider{
		client: &http.Client{
			Transport: newBrowserTransport(proxyFromContext),
			Jar:       jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("max redirects (10) reached")
				}
				return nil
			},
		},
		maxBodySize: cfg.MaxBodySize,
		defaultUA:   cfg.UserAgent,
		logger:      logger.With("component", "http_provider"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Load fetches rawURL and parses the response into a static session.
func (p *HTTPProvider) Load(ctx context.Context, rawURL string, opts LoadOptions) (Session, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	proxy := p.proxyMgr.Next()
	if proxy != nil {
		ctx = context.WithValue(ctx, proxyKey{}, proxy)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = p.defaultUA
	}
	if ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &types.FetchError{URL: rawURL, Err: fmt.Errorf("%w after %s", types.ErrTimeout, opts.Timeout)}
		}
		if proxy != nil && isConnectionError(err) {
			p.proxyMgr.MarkFailed(proxy, err)
		}
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if p.maxBodySize > 0 {
		reader = io.LimitReader(reader, p.maxBodySize)
	}
	reader, err = decompressReader(resp, reader)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &types.FetchError{URL: rawURL, Err: fmt.Errorf("%w reading body", types.ErrTimeout)}
		}
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	// Error statuses still carry a page; block detection inspects it.
	if resp.StatusCode >= 400 {
		p.logger.Warn("non-success status", "url", rawURL, "status", resp.StatusCode)
	}
	p.logger.Debug("http load complete",
		"url", rawURL,
		"final_url", finalURL,
		"status", resp.StatusCode,
		"size", len(body),
		"duration", time.Since(start),
	)

	sess, err := NewStaticSession(finalURL, string(body))
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}
	return sess, nil
}

// Close releases idle connections.
func (p *HTTPProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// Type returns the provider type identifier.
func (p *HTTPProvider) Type() string {
	return "http"
}

// decompressReader wraps a reader with the appropriate decompressor.
// Handles gzip, deflate, and brotli (br) encodings.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// isConnectionError reports whether err came from reaching the remote end.
func isConnectionError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ECONNREFUSED) ||
			opErr.Timeout()
	}
	return false
}
