// Package wake holds back user transcriptions until the assistant is
// addressed by one of its wake phrases.
package wake

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/koscakluka/xperto/core/events"
	"github.com/koscakluka/xperto/core/pipeline"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type State int

const (
	StateIdle State = iota
	StateAwake
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwake:
		return "awake"
	}
	return "unknown"
}

const DefaultKeepalive = 30 * time.Second

type Options struct {
	Keepalive    time.Duration
	InitialState State
	Now          func() time.Time
}

type Option func(*Options)

func WithKeepalive(keepalive time.Duration) Option {
	return func(o *Options) {
		o.Keepalive = keepalive
	}
}

// StartIdle makes the gate require a wake phrase before the first
// transcription passes.
func StartIdle() Option {
	return func(o *Options) {
		o.InitialState = StateIdle
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.Now = now
	}
}

type phraseMatcher interface {
	FindStringSubmatch(s string) []string
}

// Gate buffers final transcriptions while idle and releases them, in order,
// once the text accumulated from them contains a wake phrase. While awake,
// transcriptions pass immediately and every pass extends the keepalive
// window. Interim transcriptions never change the state; they are dropped
// while idle.
type Gate struct {
	options  Options
	patterns []phraseMatcher

	mu       sync.Mutex
	state    State
	lastWake time.Time
	buffer   []events.Event
	combined string
}

func New(phrases []string, opts ...Option) (*Gate, error) {
	options := Options{
		Keepalive:    DefaultKeepalive,
		InitialState: StateAwake,
		Now:          time.Now,
	}
	for _, opt := range opts {
		opt(&options)
	}

	patterns := make([]phraseMatcher, 0, len(phrases))
	for _, phrase := range phrases {
		pattern, err := phrasePattern(phrase)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, pattern)
	}

	return &Gate{
		options:  options,
		patterns: patterns,
		state:    options.InitialState,
		lastWake: options.Now(),
	}, nil
}

// phrasePattern matches the words of phrase as whole words, case
// insensitive, with any amount of whitespace between them. RE2's \b only
// knows ASCII word characters, so the edges are spelled out to keep names
// like "André" matchable.
func phrasePattern(phrase string) (*regexp.Regexp, error) {
	words := strings.Fields(phrase)
	if len(words) == 0 {
		return nil, fmt.Errorf("empty wake phrase")
	}
	for i, word := range words {
		words[i] = regexp.QuoteMeta(word)
	}

	pattern, err := regexp.Compile(`(?i)(?:^|[^\p{L}\p{N}_])(` + strings.Join(words, `\s*`) + `)(?:$|[^\p{L}\p{N}_])`)
	if err != nil {
		return nil, fmt.Errorf("failed to compile wake phrase %q: %w", phrase, err)
	}
	return pattern, nil
}

func (g *Gate) Name() string { return "wake gate" }

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Gate) Process(ctx context.Context, event events.Event, direction events.Direction, out pipeline.Output) {
	switch e := event.(type) {
	case events.TranscriptionUpdate:
		if !e.Final {
			if g.State() == StateAwake {
				out.Push(ctx, event, direction)
			}
			return
		}
		released, err := g.handleTranscription(ctx, e)
		if err != nil {
			logger.Error("wake gate failed", "error", err)
			out.Push(ctx, events.NewError(err), events.Upstream)
			return
		}
		for _, event := range released {
			out.Push(ctx, event, events.Downstream)
		}
	default:
		out.Push(ctx, event, direction)
	}
}

func (g *Gate) handleTranscription(ctx context.Context, transcription events.TranscriptionUpdate) (released []events.Event, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("wake phrase matching panicked: %v", recovered)
		}
	}()

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.options.Now()
	if g.state == StateAwake {
		if now.Sub(g.lastWake) < g.options.Keepalive {
			// Every transcription passing while awake extends the window, not
			// only the ones carrying a wake phrase.
			g.lastWake = now
			return []events.Event{transcription}, nil
		}

		logger.Debug("wake keepalive expired", "keepalive", g.options.Keepalive)
		g.transition(ctx, StateIdle)
		g.buffer = nil
		g.combined = ""
	}

	g.buffer = append(g.buffer, transcription)
	if g.combined == "" {
		g.combined = transcription.Text
	} else {
		g.combined += " " + transcription.Text
	}

	for _, pattern := range g.patterns {
		if match := pattern.FindStringSubmatch(g.combined); match != nil {
			logger.Info("wake phrase detected", "phrase", match[1], "buffered", len(g.buffer))
			g.transition(ctx, StateAwake)
			g.lastWake = now
			released = g.buffer
			g.buffer = nil
			g.combined = ""
			return released, nil
		}
	}

	logger.Debug("buffering transcription while idle", "buffered", len(g.buffer))
	return nil, nil
}

func (g *Gate) transition(ctx context.Context, to State) {
	g.state = to
	wakeTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("wake.state", to.String())))
}
