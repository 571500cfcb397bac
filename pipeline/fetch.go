package pipeline

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/briefloop/researchcore/llm"
)

const (
	fetchStatusOK = "ok"
	snippetMaxLen = 500
	maxBodyBytes  = 2 << 20 // 2MiB, enough for an article page
)

var (
	titleTagRe      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	publishedMetaRe = regexp.MustCompile(`(?is)<meta[^>]+(?:property|name)="article:published_time"[^>]+content="([^"]+)"`)
	tagRe           = regexp.MustCompile(`(?is)<[^>]+>`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

// HTTPFetcher is the default ContentFetcher: a bare GET plus a best-effort
// <title> and stripped-text extraction. No example repo in the retrieved
// pack imports an HTML-parsing or readability library from real source
// (DESIGN.md), so this stays on net/http and a small regex-based extractor
// rather than reaching for a library nothing in the corpus actually uses.
type HTTPFetcher struct {
	client  *http.Client
	timeout time.Duration
}

func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPFetcher{client: client, timeout: defaultFetchTimeout}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) llm.ExtractedItem {
	item := llm.ExtractedItem{URL: url, FetchStatus: "fetch_error"}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		item.FetchStatus = "bad_url"
		return item
	}
	req.Header.Set("User-Agent", "researchcore/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		item.FetchStatus = "fetch_error"
		return item
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		item.FetchStatus = "http_error"
		return item
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		item.FetchStatus = "read_error"
		return item
	}

	html := string(body)
	item.Title = extractTitle(html)
	item.Snippet = extractSnippet(html)
	item.PublishedDate = extractPublishedDate(html)
	item.FetchStatus = fetchStatusOK
	return item
}

func extractTitle(html string) string {
	m := titleTagRe.FindStringSubmatch(html)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(m[1], " "))
}

func extractSnippet(html string) string {
	text := tagRe.ReplaceAllString(html, " ")
	text = strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	if len(text) > snippetMaxLen {
		text = text[:snippetMaxLen]
	}
	return text
}

func extractPublishedDate(html string) *time.Time {
	m := publishedMetaRe.FindStringSubmatch(html)
	if len(m) < 2 {
		return nil
	}
	t, err := time.Parse(time.RFC3339, m[1])
	if err != nil {
		return nil
	}
	return &t
}

var _ ContentFetcher = (*HTTPFetcher)(nil)
