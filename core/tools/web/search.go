package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html"
)

type SearchResult struct {
	Title string `json:"title"`
	Href  string `json:"href"`
	Body  string `json:"body"`
}

// Search queries the DuckDuckGo HTML endpoint and returns the top results.
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	ctx, span := tracer.Start(ctx, "web search")
	defer span.End()
	span.SetAttributes(attribute.String("search.query", query))

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty search query")
	}

	endpoint := c.options.SearchURL + "?" + url.Values{"q": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating search request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.options.HTTPClient.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending search request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error parsing search results: %w", err)
	}

	results := parseResults(doc, c.options.MaxResults)
	span.SetAttributes(attribute.Int("search.results", len(results)))
	logger.Debug("web search finished", "query", query, "results", len(results))
	return results, nil
}

func parseResults(doc *html.Node, limit int) []SearchResult {
	var results []SearchResult
	var current *SearchResult

	for n := range doc.Descendants() {
		if len(results) >= limit && current == nil {
			break
		}
		if n.Type != html.ElementNode || n.Data != "a" {
			continue
		}
		switch {
		case hasClass(n, "result__a"):
			if current != nil {
				results = append(results, *current)
				if len(results) >= limit {
					current = nil
					continue
				}
			}
			current = &SearchResult{Title: nodeText(n), Href: resultURL(attr(n, "href"))}
		case hasClass(n, "result__snippet") && current != nil:
			current.Body = nodeText(n)
			results = append(results, *current)
			current = nil
		}
	}
	if current != nil && len(results) < limit {
		results = append(results, *current)
	}
	return results
}

// resultURL unwraps DuckDuckGo redirect links.
func resultURL(href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	if parsed.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
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

func nodeText(n *html.Node) string {
	var b strings.Builder
	for d := range n.Descendants() {
		if d.Type == html.TextNode {
			b.WriteString(d.Data)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
