// Package article downloads web pages and extracts their readable text.
package article

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-shiori/go-readability"
)

// MaxBodySize caps how much of a page is read.
const MaxBodySize = 10 * 1024 * 1024

// Article is the readable part of a web page.
type Article struct {
	URL      string
	Title    string
	Byline   string
	SiteName string
	Text     string
}

// Source names the article for storage: its title, or its URL when the page
// has none.
func (a *Article) Source() string {
	if t := strings.TrimSpace(a.Title); t != "" {
		return t
	}
	return a.URL
}

// Some sites reject requests that do not look like they come from a browser.
var browserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "ja,en-US;q=0.9,en;q=0.8",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "cross-site",
	"Upgrade-Insecure-Requests": "1",
}

// Fetch downloads rawURL and extracts its article.
func Fetch(ctx context.Context, client *http.Client, rawURL string) (*Article, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if pageURL.Scheme != "http" && pageURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid url %q: scheme must be http or https", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	if resp.ContentLength > MaxBodySize {
		return nil, fmt.Errorf("content length %d exceeds limit of %d bytes", resp.ContentLength, MaxBodySize)
	}

	// Read one byte past the limit to tell a full page from a truncated one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > MaxBodySize {
		return nil, fmt.Errorf("response body exceeded maximum size of %d bytes", MaxBodySize)
	}

	a, err := Extract(body, pageURL)
	if err != nil {
		return nil, err
	}
	a.URL = rawURL
	return a, nil
}

// Extract pulls the article out of an HTML page. Furigana is removed first
// so it does not end up inline in the text.
func Extract(page []byte, pageURL *url.URL) (*Article, error) {
	parsed, err := readability.FromReader(bytes.NewReader(SanitizeRuby(page)), pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract article: %w", err)
	}
	a := &Article{
		Title:    parsed.Title,
		Byline:   parsed.Byline,
		SiteName: parsed.SiteName,
		Text:     strings.TrimSpace(parsed.TextContent),
	}
	if pageURL != nil {
		a.URL = pageURL.String()
	}
	return a, nil
}

var (
	reRT = regexp.MustCompile(`(?si)<rt\b[^>]*>.*?</rt>`)
	reRP = regexp.MustCompile(`(?si)<rp\b[^>]*>.*?</rp>`)
)

// SanitizeRuby removes ruby text (<rt>...</rt>) and ruby parentheses
// (<rp>...</rp>) from HTML, so "<ruby>漢字<rt>かんじ</rt></ruby>" reads as
// "漢字" rather than "漢字かんじ". It works on Shift_JIS input too, since the
// tag bytes are ASCII and '<' is never a trailing byte there.
func SanitizeRuby(content []byte) []byte {
	cleaned := reRT.ReplaceAll(content, nil)
	return reRP.ReplaceAll(cleaned, nil)
}
