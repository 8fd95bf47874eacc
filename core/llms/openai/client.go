package openai

import (
	"context"
	"net/http"

	"github.com/koscakluka/xperto/core/conversation"
	"github.com/koscakluka/xperto/core/llms"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const DefaultModel = "gpt-4.1-mini"

type ClientOptions struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

type ClientOption func(*ClientOptions)

// WithBaseURL is used for OpenAI compatible providers.
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

// Client generates responses with the chat completions API.
type Client struct {
	api   openai.Client
	model string
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	options := ClientOptions{Model: DefaultModel}
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

	requestOptions := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(options.HTTPClient),
	}
	if options.BaseURL != "" {
		requestOptions = append(requestOptions, option.WithBaseURL(options.BaseURL))
	}

	return &Client{
		api:   openai.NewClient(requestOptions...),
		model: options.Model,
	}
}

func (c *Client) Stream(_ context.Context, messages []conversation.Message, tools []conversation.ToolSchema) llms.Stream {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: toMessages(messages),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if len(tools) > 0 {
		params.Tools = toTools(tools)
	}
	return &Stream{client: c, params: params}
}

var _ llms.Generator = (*Client)(nil)
