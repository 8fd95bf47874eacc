package deepgram

import (
	"fmt"
	"os"

	"github.com/koscakluka/xperto/core/audio"
)

const (
	DefaultURL   = "wss://api.deepgram.com/v1/speak"
	DefaultVoice = "aura-helios-en"
)

type ClientOptions struct {
	APIKey       string
	URL          string
	Voice        string
	EncodingInfo audio.EncodingInfo
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

func WithVoice(voice string) ClientOption {
	return func(o *ClientOptions) {
		if voice != "" {
			o.Voice = voice
		}
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) ClientOption {
	return func(o *ClientOptions) {
		if encodingInfo.IsZero() {
			logger.Warn("ignoring incomplete speech encoding", "sample_rate", encodingInfo.SampleRate)
			return
		}
		o.EncodingInfo = encodingInfo
	}
}

type TextToSpeechClient struct {
	options ClientOptions
}

func NewTextToSpeechClient(opts ...ClientOption) (*TextToSpeechClient, error) {
	options := ClientOptions{
		URL:          DefaultURL,
		Voice:        DefaultVoice,
		EncodingInfo: audio.GetDefaultEncodingInfo(),
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
	if err := options.EncodingInfo.Validate(); err != nil {
		return nil, fmt.Errorf("invalid encoding: %w", err)
	}

	return &TextToSpeechClient{options: options}, nil
}

func (c *TextToSpeechClient) EncodingInfo() audio.EncodingInfo {
	return c.options.EncodingInfo
}

func (c *TextToSpeechClient) Voice() string {
	return c.options.Voice
}
