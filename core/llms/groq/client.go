package groq

import (
	"context"
	"net/http"

	"github.com/koscakluka/xperto/core/conversation"
	"github.com/koscakluka/xperto/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.1-8b-instant"
)

type ClientOptions struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

type ClientOption func(*ClientOptions)

// WithBaseURL points the client at another OpenAI compatible chat
// completions endpoint.
func WithBaseURL(baseURL string) ClientOption {
	return func(o *ClientOptions) {
		o.BaseURL = baseURL
	}
}

func WithModel(model string) ClientOption {
	return func(o *ClientOptions) {
		o.Model = model
	}
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(o *ClientOptions) {
		o.HTTPClient = client
	}
}

// Client streams chat completions over server sent events. It is small and
// fast enough to answer turn completeness questions while the user talks.
type Client struct {
	apiKey  string
	options ClientOptions
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	options := ClientOptions{BaseURL: DefaultBaseURL, Model: DefaultModel}
	for _, opt := range opts {
		opt(&options)
	}
	if options.HTTPClient == nil {
		options.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)}
	}
	return &Client{apiKey: apiKey, options: options}
}

func (c *Client) Stream(_ context.Context, messages []conversation.Message, tools []conversation.ToolSchema) llms.Stream {
	return &Stream{
		client:   c,
		messages: toMessages(messages),
		tools:    toTools(tools),
	}
}

var _ llms.Generator = (*Client)(nil)
