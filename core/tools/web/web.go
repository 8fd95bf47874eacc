// Package web provides the web_search and web_fetch tools.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/koscakluka/xperto/core/tools"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultSearchURL  = "https://html.duckduckgo.com/html/"
	defaultMaxResults = 3
	defaultMaxContent = 20000
	fetchTimeout      = 10 * time.Second
	userAgent         = "Mozilla/5.0 (X11; Linux x86_64) xperto"
)

type Options struct {
	SearchURL  string
	MaxResults int
	MaxContent int
	HTTPClient *http.Client
}

type Option func(*Options)

func WithSearchURL(url string) Option {
	return func(o *Options) {
		o.SearchURL = url
	}
}

func WithMaxResults(n int) Option {
	return func(o *Options) {
		o.MaxResults = n
	}
}

// WithMaxContent limits how many characters of a fetched page are returned.
func WithMaxContent(n int) Option {
	return func(o *Options) {
		o.MaxContent = n
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = client
	}
}

type Client struct {
	options Options
}

func New(opts ...Option) *Client {
	options := Options{
		SearchURL:  DefaultSearchURL,
		MaxResults: defaultMaxResults,
		MaxContent: defaultMaxContent,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.HTTPClient == nil {
		options.HTTPClient = &http.Client{
			Timeout:   fetchTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{options: options}
}

type searchParams struct {
	Query string `json:"query" jsonschema:"description=The search query to look up on the web"`
}

type fetchParams struct {
	URL string `json:"url" jsonschema:"description=The URL of the web page to fetch"`
}

// Tools returns web_search and web_fetch bound to the client.
func (c *Client) Tools() ([]tools.Tool, error) {
	search, err := tools.New("web_search", "Fetch relevant information from the web via search",
		func(ctx context.Context, p searchParams) (string, error) {
			results, err := c.Search(ctx, p.Query)
			if err != nil {
				return "", err
			}
			return encode(map[string]any{"results": results})
		})
	if err != nil {
		return nil, err
	}

	fetch, err := tools.New("web_fetch", "Fetch and extract the main content from a web page",
		func(ctx context.Context, p fetchParams) (string, error) {
			return encode(map[string]any{"result": c.Fetch(ctx, p.URL)})
		})
	if err != nil {
		return nil, err
	}

	return []tools.Tool{search, fetch}, nil
}

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool result: %w", err)
	}
	return string(b), nil
}
