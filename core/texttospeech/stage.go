package texttospeech

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/koscakluka/xperto/core/events"
	"github.com/koscakluka/xperto/core/pipeline"
)

var fillerPhrases = map[string]string{
	"EN": "One moment please, let me look that up.",
	"DE": "Einen Moment bitte, ich schaue das mal nach.",
}

// FillerPhrase returns what is said while a tool runs, English unless the
// language is known.
func FillerPhrase(language string) string {
	if phrase, ok := fillerPhrases[strings.ToUpper(language)]; ok {
		return phrase
	}
	return fillerPhrases["EN"]
}

type StageOptions struct {
	FillerPhrase string
}

type StageOption func(*StageOptions)

func WithLanguage(language string) StageOption {
	return func(o *StageOptions) {
		o.FillerPhrase = FillerPhrase(language)
	}
}

// WithFillerPhrase replaces the filler phrase. An empty phrase disables it.
func WithFillerPhrase(phrase string) StageOption {
	return func(o *StageOptions) {
		o.FillerPhrase = phrase
	}
}

type utterance struct {
	generator SpeechGenerator
	cancelled atomic.Bool
}

// Stage speaks responses sentence by sentence as their text streams in, so
// speech starts before the response is complete.
type Stage struct {
	synthesizer Synthesizer
	options     StageOptions

	mu           sync.Mutex
	current      *utterance
	pending      string
	fillerSpoken bool

	// Generators may report the end of speech from inside EndOfText, so
	// playing is guarded separately from mu.
	playingMu sync.Mutex
	playing   map[*utterance]struct{}
}

func NewStage(synthesizer Synthesizer, opts ...StageOption) *Stage {
	options := StageOptions{FillerPhrase: FillerPhrase("EN")}
	for _, opt := range opts {
		opt(&options)
	}
	return &Stage{
		synthesizer: synthesizer,
		options:     options,
		playing:     map[*utterance]struct{}{},
	}
}

func (s *Stage) Name() string { return "text to speech" }

// Playing reports how many utterances are still producing audio.
func (s *Stage) Playing() int {
	s.playingMu.Lock()
	defer s.playingMu.Unlock()
	return len(s.playing)
}

func (s *Stage) Process(ctx context.Context, event events.Event, direction events.Direction, out pipeline.Output) {
	if direction != events.Downstream {
		out.Push(ctx, event, direction)
		return
	}

	s.mu.Lock()
	switch e := event.(type) {
	case events.ResponseStarted:
		s.pending = ""
		s.fillerSpoken = false
	case events.GeneratedText:
		s.pending += e.Text
		sentences, rest := splitSentences(s.pending)
		s.pending = rest
		for _, sentence := range sentences {
			s.say(ctx, sentence, out)
		}
	case events.ResponseEnded:
		s.flushPending(ctx, out)
		s.endUtterance()
	case events.Speak:
		s.flushPending(ctx, out)
		s.say(ctx, e.Text, out)
		s.endUtterance()
	case events.FunctionCallStarted:
		s.flushPending(ctx, out)
		if !s.fillerSpoken && s.options.FillerPhrase != "" {
			s.fillerSpoken = true
			fillersSpoken.Add(ctx, 1)
			s.say(ctx, s.options.FillerPhrase, out)
		}
	case events.InterruptionStarted:
		s.pending = ""
		s.cancelAll(ctx)
	case events.End:
		s.flushPending(ctx, out)
		s.endUtterance()
	case events.Cancel:
		s.pending = ""
		s.cancelAll(ctx)
	}
	s.mu.Unlock()

	out.Push(ctx, event, direction)
}

func (s *Stage) flushPending(ctx context.Context, out pipeline.Output) {
	rest := strings.TrimSpace(s.pending)
	s.pending = ""
	if rest != "" {
		s.say(ctx, rest, out)
	}
}

// say must be called with mu held.
func (s *Stage) say(ctx context.Context, text string, out pipeline.Output) {
	if s.current == nil {
		u, err := s.open(ctx, out)
		if err != nil {
			logger.Error("failed to open speech generator", "error", err)
			out.Push(ctx, events.NewError(err), events.Upstream)
			return
		}
		s.current = u
		s.playingMu.Lock()
		s.playing[u] = struct{}{}
		s.playingMu.Unlock()
	}

	if err := s.current.generator.SendText(text + " "); err != nil {
		logger.Warn("failed to send text for synthesis", "error", err)
		s.playingMu.Lock()
		delete(s.playing, s.current)
		s.playingMu.Unlock()
		s.current = nil
		return
	}
	if err := s.current.generator.Mark(); err != nil {
		logger.Warn("failed to mark synthesized text", "error", err)
	}
	sentencesSpoken.Add(ctx, 1)
}

func (s *Stage) open(ctx context.Context, out pipeline.Output) (*utterance, error) {
	u := &utterance{}
	sampleRate := s.synthesizer.EncodingInfo().SampleRate
	generator, err := s.synthesizer.NewSpeechGenerator(ctx,
		WithSpeechAudioCallback(func(audio []byte) {
			if u.cancelled.Load() || len(audio) == 0 {
				return
			}
			out.Push(ctx, events.NewSpeechAudio(audio, sampleRate), events.Downstream)
		}),
		WithSpeechEndedCallback(func() {
			s.playingMu.Lock()
			defer s.playingMu.Unlock()
			delete(s.playing, u)
		}),
		WithErrorCallback(func(err error) {
			if !u.cancelled.Load() {
				logger.Warn("speech generation failed", "error", err)
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	u.generator = generator
	return u, nil
}

// endUtterance must be called with mu held.
func (s *Stage) endUtterance() {
	if s.current == nil {
		return
	}
	if err := s.current.generator.EndOfText(); err != nil {
		logger.Warn("failed to end synthesized text", "error", err)
	}
	s.current = nil
}

// cancelAll must be called with mu held.
func (s *Stage) cancelAll(ctx context.Context) {
	s.playingMu.Lock()
	playing := s.playing
	s.playing = map[*utterance]struct{}{}
	s.playingMu.Unlock()

	for u := range playing {
		u.cancelled.Store(true)
		if err := u.generator.Cancel(); err != nil {
			logger.Debug("failed to cancel speech generator", "error", err)
		}
		utterancesCancelled.Add(ctx, 1)
	}
	s.current = nil
}

// splitSentences returns the complete sentences in text and the unfinished
// rest. A sentence ends with punctuation followed by whitespace, so a
// trailing "3." waits for the next segment.
func splitSentences(text string) (sentences []string, rest string) {
	start := 0
	for i := 0; i < len(text)-1; i++ {
		switch text[i] {
		case '.', '!', '?', ';':
		default:
			continue
		}
		if !unicode.IsSpace(rune(text[i+1])) {
			continue
		}
		if sentence := strings.TrimSpace(text[start : i+1]); sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = i + 1
	}
	return sentences, text[start:]
}
