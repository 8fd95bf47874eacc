package deepgram

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

const (
	DefaultURL      = "wss://api.deepgram.com/v1/listen"
	DefaultModel    = "nova-3"
	DefaultLanguage = "en-US"
)

type ClientOptions struct {
	APIKey   string
	URL      string
	Model    string
	Language string
	Diarize  bool
}

type ClientOption func(*ClientOptions)

// WithAPIKey overrides the DEEPGRAM_API_KEY environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(o *ClientOptions) {
		o.APIKey = apiKey
	}
}

func WithURL(url string) ClientOption {
	return func(o *ClientOptions) {
		o.URL = url
	}
}

func WithModel(model string) ClientOption {
	return func(o *ClientOptions) {
		o.Model = model
	}
}

func WithLanguage(language string) ClientOption {
	return func(o *ClientOptions) {
		o.Language = language
	}
}

// WithDiarization tags every final transcription with the speaker who said
// it.
func WithDiarization() ClientOption {
	return func(o *ClientOptions) {
		o.Diarize = true
	}
}

type TranscriptionClient struct {
	options ClientOptions

	conn   *websocket.Conn
	connMu sync.Mutex

	lastMsgTs atomic.Int64

	// utterance state, only touched by the read loop
	accumulatedTranscript string
	accumulatedSpeaker    string
	unendedSegment        bool
}

func NewTranscriptionClient(opts ...ClientOption) (*TranscriptionClient, error) {
	options := ClientOptions{
		URL:      DefaultURL,
		Model:    DefaultModel,
		Language: DefaultLanguage,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.APIKey == "" {
		apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
		if !ok {
			return nil, fmt.Errorf("deepgram api key not found")
		}
		options.APIKey = apiKey
	}

	return &TranscriptionClient{options: options}, nil
}
