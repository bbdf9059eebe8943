package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

const (
	webUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"
	webReadCap   = 10000
	searchURL    = "https://html.duckduckgo.com/html/"
)

func (d *Dispatcher) webRead(ctx context.Context, rawURL string) Result {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return errorf("WEB_READ requires a URL")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errorf("Failed to fetch URL: %v", err)
	}
	req.Header.Set("User-Agent", webUserAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return errorf("Failed to fetch URL: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return errorf("Failed to fetch URL: status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return errorf("Failed to parse page: %v", err)
	}
	text := strings.Join(visibleText(doc), "\n")
	output, truncated := truncate(text, webReadCap)
	return success(output, truncated)
}

func (d *Dispatcher) webSearch(ctx context.Context, query string) Result {
	query = strings.TrimSpace(query)
	if query == "" {
		return errorf("WEB_SEARCH requires a query")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		searchURL+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return errorf("Web search failed: %v", err)
	}
	req.Header.Set("User-Agent", webUserAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return errorf("Web search failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errorf("Web search failed: status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return errorf("Web search failed: %v", err)
	}
	hits := parseSearchResults(doc, d.searchResults)
	if len(hits) == 0 {
		return success("No results found.", false)
	}

	var b strings.Builder
	for i, h := range hits {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n\n", i+1, h.Title, h.URL, h.Snippet)
	}
	output, truncated := d.truncated(strings.TrimRight(b.String(), "\n"))
	return success(output, truncated)
}

type searchHit struct {
	Title   string
	URL     string
	Snippet string
}

// parseSearchResults walks the DuckDuckGo HTML response. Each hit is an
// anchor with class "result__a"; the snippet carries class "result__snippet".
func parseSearchResults(doc *html.Node, max int) []searchHit {
	var hits []searchHit
	var current *searchHit

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(hits) >= max && current == nil {
			return
		}
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result__a"):
				if current != nil && current.Title != "" {
					hits = append(hits, *current)
				}
				current = &searchHit{
					Title: strings.TrimSpace(strings.Join(visibleText(n), " ")),
					URL:   attr(n, "href"),
				}
			case hasClass(n, "result__snippet"):
				if current != nil {
					current.Snippet = strings.TrimSpace(strings.Join(visibleText(n), " "))
					hits = append(hits, *current)
					current = nil
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if current != nil && current.Title != "" && len(hits) < max {
		hits = append(hits, *current)
	}
	if len(hits) > max {
		hits = hits[:max]
	}
	return hits
}

// visibleText collects text content, skipping script, style and chrome tags.
func visibleText(n *html.Node) []string {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "nav", "footer", "header", "noscript":
			return nil
		}
	}
	var lines []string
	if n.Type == html.TextNode {
		if s := strings.TrimSpace(n.Data); s != "" {
			lines = append(lines, s)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		lines = append(lines, visibleText(c)...)
	}
	return lines
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
