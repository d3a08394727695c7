package fetcher

import (
	"crypto/tls"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"time"
)

// StealthConfig configures fingerprint spoofing injected into browser pages.
type StealthConfig struct {
	// Language override (e.g., "en-US")
	Language string

	// Platform override (e.g., "Win32", "MacIntel", "Linux x86_64")
	Platform string

	// Hardware concurrency (number of CPU cores to report)
	HardwareConcurrency int

	// DeviceMemory (GB of RAM to report)
	DeviceMemory int
}

// DefaultStealthConfig returns a stealth configuration that mimics a typical desktop browser.
func DefaultStealthConfig() *StealthConfig {
	platforms := []string{"Win32", "MacIntel", "Linux x86_64"}
	return &StealthConfig{
		Language:            "en-US",
		Platform:            platforms[rand.Intn(len(platforms))],
		HardwareConcurrency: 4 + rand.Intn(13), // 4-16 cores
		DeviceMemory:        8,
	}
}

// StealthJS returns JavaScript to run in every page before its own scripts.
func (sc *StealthConfig) StealthJS() string {
	return fmt.Sprintf(`
Object.defineProperty(navigator, 'platform', { get: () => '%s' });
Object.defineProperty(navigator, 'language', { get: () => '%s' });
Object.defineProperty(navigator, 'languages', { get: () => ['%s', 'en'] });
Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => %d });
Object.defineProperty(navigator, 'deviceMemory', { get: () => %d });

Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
try { delete navigator.__proto__.webdriver; } catch (e) {}

window.chrome = window.chrome || {
	runtime: { onMessage: { addListener: () => {} }, sendMessage: () => {} },
	loadTimes: () => ({}),
	csi: () => ({}),
};

const originalQuery = window.navigator.permissions && window.navigator.permissions.query;
if (originalQuery) {
	window.navigator.permissions.query = (parameters) => (
		parameters.name === 'notifications' ?
			Promise.resolve({ state: Notification.permission }) :
			originalQuery(parameters)
	);
}
`, sc.Platform, sc.Language, sc.Language, sc.HardwareConcurrency, sc.DeviceMemory)
}

// browserTransport fills in the navigation headers a real browser sends.
type browserTransport struct {
	inner http.RoundTripper
}

func newBrowserTransport(proxy func(*http.Request) (*url.URL, error)) *browserTransport {
	return &browserTransport{
		inner: &http.Transport{
			Proxy: proxy,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
				CurvePreferences: []tls.CurveID{
					tls.X25519,
					tls.CurveP256,
					tls.CurveP384,
				},
			},
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        16,
			IdleConnTimeout:     90 * time.Second,
			DisableCompression:  true, // decoded by decompressReader, brotli included
		},
	}
}

// RoundTrip implements http.RoundTripper.
func (t *browserTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	}
	if req.Header.Get("Sec-Fetch-Dest") == "" {
		req.Header.Set("Sec-Fetch-Dest", "document")
		req.Header.Set("Sec-Fetch-Mode", "navigate")
		req.Header.Set("Sec-Fetch-Site", "none")
		req.Header.Set("Sec-Fetch-User", "?1")
	}
	if req.Header.Get("Upgrade-Insecure-Requests") == "" {
		req.Header.Set("Upgrade-Insecure-Requests", "1")
	}
	return t.inner.RoundTrip(req)
}
