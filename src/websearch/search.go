package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Content string `json:"content,omitempty"`
}

// Searcher answers free-text queries with ranked results.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]Result, error)
}

// DuckDuckGo queries the HTML endpoint (no API key required) and scrapes the
// result list.
type DuckDuckGo struct {
	Client *http.Client
}

func NewDuckDuckGo() *DuckDuckGo {
	return &DuckDuckGo{Client: &http.Client{Timeout: 8 * time.Second}}
}

func (d *DuckDuckGo) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if k < 1 {
		k = 1
	}
	if k > 10 {
		k = 10
	}
	endpoint := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search: status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("web search: parse: %w", err)
	}
	results := parseResults(doc, k)
	return results, nil
}

// parseResults walks the DuckDuckGo HTML result page. Each hit is an anchor
// with class result__a; the snippet carries class result__snippet.
func parseResults(doc *html.Node, k int) []Result {
	var out []Result
	var cur *Result
	var walk func(n *html.Node)
	text := func(n *html.Node) string {
		var sb strings.Builder
		var inner func(*html.Node)
		inner = func(m *html.Node) {
			if m.Type == html.TextNode {
				sb.WriteString(m.Data)
			}
			for c := m.FirstChild; c != nil; c = c.NextSibling {
				inner(c)
			}
		}
		inner(n)
		return strings.TrimSpace(sb.String())
	}
	walk = func(n *html.Node) {
		if len(out) >= k {
			return
		}
		if n.Type == html.ElementNode {
			cls := attr(n, "class")
			switch {
			case n.Data == "a" && strings.Contains(cls, "result__a"):
				if cur != nil {
					out = append(out, *cur)
					if len(out) >= k {
						return
					}
				}
				cur = &Result{Title: text(n), URL: cleanResultURL(attr(n, "href"))}
			case strings.Contains(cls, "result__snippet"):
				if cur != nil && cur.Snippet == "" {
					cur.Snippet = text(n)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if cur != nil && len(out) < k {
		out = append(out, *cur)
	}
	return out
}

// cleanResultURL unwraps DuckDuckGo's redirect links (/l/?uddg=<encoded>).
func cleanResultURL(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		if decoded, err := url.QueryUnescape(target); err == nil {
			return decoded
		}
	}
	if u.Scheme == "" {
		return "https:" + href
	}
	return href
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
