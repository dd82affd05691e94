package mask

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/maskagent/mask/internal/extract"
)

const (
	// maxPageChars is the hard ceiling on extracted page text.
	maxPageChars = 10000
	// truncationMark is appended when a page hits the ceiling.
	truncationMark = "...[truncated]"
	// maxBodyBytes bounds how much of a response body is read.
	maxBodyBytes = 1 << 20 // 1MB
	// fetchTimeout bounds one page fetch.
	fetchTimeout = 10 * time.Second

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) MaskAgent/1.0"
)

// Fetcher retrieves and extracts one page. Implementations never return a Go
// error: failures surface as a ScrapedPage with Err set, so a bad page can
// never abort a scrape batch.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ScrapedPage
}

// HTTPFetcher fetches pages over HTTP with browser-like headers, follows
// redirects, and extracts cleaned text plus same-domain outbound links.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates an HTTPFetcher with the default per-fetch timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: fetchTimeout}}
}

var _ Fetcher = (*HTTPFetcher)(nil)

// Fetch retrieves rawURL and extracts its content. Timeouts, transport
// errors, and non-2xx statuses all produce an error record.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ScrapedPage {
	page := ScrapedPage{URL: rawURL, Title: "Error"}

	base, err := url.Parse(rawURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") {
		page.Err = "invalid URL"
		return page
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		page.Err = err.Error()
		return page
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			page.Err = "timeout"
		} else {
			page.Err = err.Error()
		}
		return page
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		page.Err = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return page
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		page.Err = fmt.Sprintf("read error: %v", err)
		return page
	}
	if len(body) == 0 {
		page.Err = "no content received"
		return page
	}

	extracted, err := extract.FromHTML(string(body), base)
	if err != nil {
		page.Err = fmt.Sprintf("parse error: %v", err)
		return page
	}

	page.Title = extracted.Title
	if page.Title == "" {
		page.Title = rawURL
	}
	page.Content = truncateContent(extracted.Text)
	page.Links = extracted.Links
	page.Err = ""
	return page
}

// truncateContent caps text at maxPageChars, appending the truncation marker.
func truncateContent(text string) string {
	if len(text) <= maxPageChars {
		return text
	}
	return text[:maxPageChars] + truncationMark
}

// isTimeout reports whether err is a network timeout.
func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	for e := err; e != nil; {
		if t, ok := e.(timeouter); ok && t.Timeout() {
			return true
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		e = u.Unwrap()
	}
	return false
}
