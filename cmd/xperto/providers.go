package main

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/koscakluka/xperto/core/audio"
	"github.com/koscakluka/xperto/core/audio/miniaudio"
	"github.com/koscakluka/xperto/core/llms"
	"github.com/koscakluka/xperto/core/llms/groq"
	"github.com/koscakluka/xperto/core/llms/openai"
	sttdeepgram "github.com/koscakluka/xperto/core/speechtotext/deepgram"
	ttsdeepgram "github.com/koscakluka/xperto/core/texttospeech/deepgram"
	"github.com/koscakluka/xperto/core/tools"
	"github.com/koscakluka/xperto/core/tools/web"
	"github.com/koscakluka/xperto/internal/config"
)

var deepgramLanguages = map[string]string{
	"EN": "en-US",
	"DE": "de",
}

type providers struct {
	audio       *miniaudio.Client
	transcriber *sttdeepgram.TranscriptionClient
	synthesizer *ttsdeepgram.TextToSpeechClient
	llm         llms.Generator
	classifier  llms.Generator
	tools       *tools.Registry
}

func newProviders(cfg *config.Config, deviceOpts ...miniaudio.ClientOption) (*providers, error) {
	if cfg.Services.STT.Provider != "deepgram" {
		return nil, fmt.Errorf("unsupported speech to text provider %q", cfg.Services.STT.Provider)
	}
	if cfg.Services.TTS.Provider != "deepgram" {
		return nil, fmt.Errorf("unsupported text to speech provider %q", cfg.Services.TTS.Provider)
	}

	llm, err := newGenerator(cfg.Services.LLM.Provider, cfg.Services.LLM.Model, cfg.Services.LLM.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("response llm: %w", err)
	}
	classifier, err := newGenerator(cfg.Services.Classifier.Provider, cfg.Services.Classifier.Model, cfg.Services.Classifier.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("classifier llm: %w", err)
	}
	registry, err := newToolRegistry(cfg.Services.LLM.Tools)
	if err != nil {
		return nil, err
	}

	transcriber, err := sttdeepgram.NewTranscriptionClient(
		sttdeepgram.WithModel(cfg.Services.STT.Model),
		sttdeepgram.WithLanguage(deepgramLanguages[cfg.Bot.Language]),
		sttdeepgram.WithDiarization(),
	)
	if err != nil {
		return nil, err
	}

	encoding := audio.EncodingInfo{
		SampleRate: cfg.Bot.SampleRate,
		Channels:   audio.DefaultChannels,
		Format:     audio.DefaultFormat,
	}
	synthesizer, err := ttsdeepgram.NewTextToSpeechClient(
		ttsdeepgram.WithVoice(cfg.Services.TTS.Voice),
		ttsdeepgram.WithEncodingInfo(encoding),
	)
	if err != nil {
		return nil, err
	}

	device, err := miniaudio.NewClient(encoding, deviceOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio devices: %w", err)
	}

	return &providers{
		audio:       device,
		transcriber: transcriber,
		synthesizer: synthesizer,
		llm:         llm,
		classifier:  classifier,
		tools:       registry,
	}, nil
}

func (p *providers) Close() {
	p.audio.Close()
}

func newGenerator(provider, model, baseURL string) (llms.Generator, error) {
	switch strings.ToLower(provider) {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, errors.New("OPENAI_API_KEY not set")
		}
		opts := []openai.ClientOption{}
		if model != "" {
			opts = append(opts, openai.WithModel(model))
		}
		if baseURL != "" {
			opts = append(opts, openai.WithBaseURL(baseURL))
		}
		return openai.NewClient(apiKey, opts...), nil
	case "groq":
		apiKey := os.Getenv("GROQ_API_KEY")
		if apiKey == "" {
			return nil, errors.New("GROQ_API_KEY not set")
		}
		opts := []groq.ClientOption{}
		if model != "" {
			opts = append(opts, groq.WithModel(model))
		}
		if baseURL != "" {
			opts = append(opts, groq.WithBaseURL(baseURL))
		}
		return groq.NewClient(apiKey, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", provider)
	}
}

// newToolRegistry registers the named tools. No names means no tools.
func newToolRegistry(names []string) (*tools.Registry, error) {
	if len(names) == 0 {
		return nil, nil
	}

	available, err := web.New().Tools()
	if err != nil {
		return nil, fmt.Errorf("failed to build web tools: %w", err)
	}

	registry := tools.NewRegistry()
	for _, name := range names {
		i := slices.IndexFunc(available, func(t tools.Tool) bool { return t.Name == name })
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", tools.ErrUnknownTool, name)
		}
		registry.Register(available[i])
	}
	return registry, nil
}
