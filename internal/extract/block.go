package extract

import (
	"strings"
)

// BlockDetector recognizes interstitial, bot-check and error pages by their
// title or final URL, before any tier runs.
type BlockDetector struct {
	titleMarkers []string
	urlMarkers   []string
}

// NewBlockDetector creates a detector. Markers match case-insensitively as substrings.
func NewBlockDetector(titleMarkers, urlMarkers []string) *BlockDetector {
	return &BlockDetector{
		titleMarkers: lowerAll(titleMarkers),
		urlMarkers:   lowerAll(urlMarkers),
	}
}

// Check reports whether the page looks blocked and which marker matched.
func (d *BlockDetector) Check(title, url string) (bool, string) {
	t := strings.ToLower(title)
	for _, m := range d.titleMarkers {
		if m != "" && strings.Contains(t, m) {
			return true, "title:" + m
		}
	}
	u := strings.ToLower(url)
	for _, m := range d.urlMarkers {
		if m != "" && strings.Contains(u, m) {
			return true, "url:" + m
		}
	}
	return false, ""
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
