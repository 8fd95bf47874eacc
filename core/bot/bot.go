package bot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/koscakluka/xperto/core/aggregators"
	"github.com/koscakluka/xperto/core/audio"
	"github.com/koscakluka/xperto/core/checkpoint"
	"github.com/koscakluka/xperto/core/conversation"
	"github.com/koscakluka/xperto/core/events"
	"github.com/koscakluka/xperto/core/llms"
	"github.com/koscakluka/xperto/core/notifier"
	"github.com/koscakluka/xperto/core/pipeline"
	"github.com/koscakluka/xperto/core/recording"
	"github.com/koscakluka/xperto/core/sessions"
	"github.com/koscakluka/xperto/core/speechtotext"
	"github.com/koscakluka/xperto/core/texttospeech"
	"github.com/koscakluka/xperto/core/turns"
	"github.com/koscakluka/xperto/core/wake"
	"github.com/koscakluka/xperto/internal/config"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// localParticipant is the person at the machine running the bot.
const localParticipant = "local"

// Toolbox is what the response model can call.
type Toolbox interface {
	llms.ToolCaller
	Schemas() []conversation.ToolSchema
}

type Options struct {
	Transcriber speechtotext.Transcriber
	Synthesizer texttospeech.Synthesizer
	Capturer    audio.Capturer
	Player      audio.Player

	// LLM writes the responses, Classifier judges whether the user finished
	// speaking. The classifier should be a small, fast model.
	LLM        llms.Generator
	Classifier llms.Generator
	Tools      Toolbox

	Store    *sessions.Store
	ResumeID string

	Now func() time.Time
}

type Option func(*Options)

func WithSpeechToText(transcriber speechtotext.Transcriber) Option {
	return func(o *Options) { o.Transcriber = transcriber }
}

func WithTextToSpeech(synthesizer texttospeech.Synthesizer) Option {
	return func(o *Options) { o.Synthesizer = synthesizer }
}

func WithAudioInput(capturer audio.Capturer) Option {
	return func(o *Options) { o.Capturer = capturer }
}

func WithAudioOutput(player audio.Player) Option {
	return func(o *Options) { o.Player = player }
}

func WithLLM(generator llms.Generator) Option {
	return func(o *Options) { o.LLM = generator }
}

func WithClassifier(generator llms.Generator) Option {
	return func(o *Options) { o.Classifier = generator }
}

func WithTools(tools Toolbox) Option {
	return func(o *Options) { o.Tools = tools }
}

func WithSessionStore(store *sessions.Store) Option {
	return func(o *Options) { o.Store = store }
}

// WithResume continues the saved session matching id (or a unique part of
// it) instead of starting a new one.
func WithResume(id string) Option {
	return func(o *Options) { o.ResumeID = id }
}

func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Now = now }
}

// Bot is one natural conversation session: local audio in, speech out, with
// the response held back until the completeness classifier decides the
// user finished their turn.
type Bot struct {
	config  *config.Config
	options Options

	state        *conversation.State
	sessionID    string
	resumed      bool
	participants int

	transcript *recording.Transcript
	tracker    *participantTracker
	saver      *checkpoint.Saver
	task       *pipeline.Task

	runOnce sync.Once
}

// New prepares the session and assembles its pipeline. Nothing is captured
// or sent to a provider before Run.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Bot, error) {
	options := Options{Now: time.Now}
	for _, opt := range opts {
		opt(&options)
	}
	if err := options.validate(); err != nil {
		return nil, err
	}

	b := &Bot{
		config:       cfg,
		options:      options,
		state:        conversation.New(),
		participants: 1,
	}
	if err := b.bootstrap(ctx); err != nil {
		return nil, err
	}

	transcript, err := recording.OpenTranscript(cfg.Paths.Transcripts, cfg.Name, recording.WithClock(options.Now))
	if err != nil {
		return nil, err
	}
	b.transcript = transcript

	p, err := b.assemble()
	if err != nil {
		transcript.Close()
		return nil, err
	}
	b.task = pipeline.NewTask(p, pipeline.WithIdleTimeout(cfg.Bot.IdleTimeout()))
	return b, nil
}

func (o Options) validate() error {
	var errs []error
	if o.Transcriber == nil {
		errs = append(errs, errors.New("speech to text client is required"))
	}
	if o.Synthesizer == nil {
		errs = append(errs, errors.New("text to speech client is required"))
	}
	if o.Capturer == nil {
		errs = append(errs, errors.New("audio input is required"))
	}
	if o.Player == nil {
		errs = append(errs, errors.New("audio output is required"))
	}
	if o.LLM == nil {
		errs = append(errs, errors.New("response llm is required"))
	}
	if o.Classifier == nil {
		errs = append(errs, errors.New("classifier llm is required"))
	}
	if o.Store == nil {
		errs = append(errs, errors.New("session store is required"))
	}
	return errors.Join(errs...)
}

// bootstrap fills the conversation either from a saved session or from the
// persona and the intro instructions.
func (b *Bot) bootstrap(ctx context.Context) error {
	cfg := b.config
	if b.options.ResumeID != "" {
		record, err := b.options.Store.Load(ctx, b.options.ResumeID)
		if err != nil {
			return fmt.Errorf("failed to resume session: %w", err)
		}
		b.sessionID = record.SessionID
		b.resumed = true
		b.participants = max(record.ParticipantCount, 1)
		b.state.Reset(record.Messages...)
		logger.Info("resuming session", "session_id", record.SessionID, "messages", len(record.Messages))
	} else {
		name := ""
		if len(cfg.Bot.AssistantNames) > 0 {
			name = cfg.Bot.AssistantNames[0]
		}
		persona, err := Persona(cfg.Prompts.Persona, cfg.Bot.Language, name)
		if err != nil {
			return err
		}
		intro, err := Intro(cfg.Prompts.Intro, cfg.Bot.Language)
		if err != nil {
			return err
		}
		b.sessionID = b.options.Store.NewSessionID(cfg.Name)
		aggregators.Reset(b.state, persona, intro)
		logger.Info("starting new session", "session_id", b.sessionID)
	}

	if b.options.Tools != nil {
		b.state.SetTools(b.options.Tools.Schemas())
	}
	return nil
}

func (b *Bot) assemble() (*pipeline.Pipeline, error) {
	cfg := b.config
	n := notifier.New()

	wakeGate, err := wake.New(cfg.Bot.AssistantNames,
		wake.WithKeepalive(cfg.Bot.KeepaliveTimeout()),
		wake.WithClock(b.options.Now))
	if err != nil {
		return nil, err
	}

	b.saver = checkpoint.New(b.state, b.options.Store, b.sessionID, cfg.Name,
		checkpoint.WithInterval(cfg.Bot.SaveInterval()),
		checkpoint.WithClock(b.options.Now),
		checkpoint.WithParticipants(b.participants))
	b.tracker = newParticipantTracker(b.transcript, b.saver, b.participants)

	encoding := audio.EncodingInfo{
		SampleRate: cfg.Bot.SampleRate,
		Channels:   audio.DefaultChannels,
		Format:     audio.DefaultFormat,
	}

	var serviceOpts []llms.ServiceOption
	if b.options.Tools != nil {
		serviceOpts = append(serviceOpts, llms.WithTools(b.options.Tools))
	}

	processors := []pipeline.Processor{
		audio.NewInput(b.options.Capturer, encoding),
		speechtotext.NewStage(b.options.Transcriber, speechtotext.WithStageEncoding(encoding)),
		recording.NewUserTranscript(b.transcript),
		b.tracker,
		wakeGate,
		aggregators.NewUserAggregator(b.state, aggregators.WithSpeakerLabels()),
		pipeline.NewParallel(
			[]pipeline.Processor{
				pipeline.NewFilter("block user stopped speaking", pipeline.Block(events.KindUserStoppedSpeaking)),
			},
			[]pipeline.Processor{
				turns.NewJudgeContextFilter(n),
				llms.NewService(b.options.Classifier, llms.WithName("classifier")),
				turns.NewCompletenessCheck(n),
			},
			[]pipeline.Processor{
				pipeline.NewFilter("llm triggers", pipeline.Only(
					events.KindContextUpdate,
					events.KindMessagesRequest,
					events.KindInterruptionStarted,
					events.KindInterruptionEnded,
					events.KindFunctionCallStarted,
					events.KindFunctionCallResult,
				)),
				llms.NewService(b.options.LLM, serviceOpts...),
				// The first turn is the intro, nobody has to finish speaking.
				turns.NewOutputGate(n, turns.StartOpen()),
			},
		),
		texttospeech.NewStage(b.options.Synthesizer, texttospeech.WithLanguage(cfg.Bot.Language)),
		turns.NewIdleWatchdog(n, turns.WithTimeout(cfg.Bot.UserIdleTimeout())),
		audio.NewOutput(b.options.Player),
	}
	if cfg.Bot.AudioRecording {
		processors = append(processors,
			recording.NewAudioRecorder(cfg.Paths.Recordings, cfg.Name, recording.WithRecorderClock(b.options.Now)))
	}
	processors = append(processors,
		recording.NewAssistantTranscript(b.transcript, b.assistantName()),
		aggregators.NewAssistantAggregator(b.state),
		b.saver,
	)
	return pipeline.New(processors...), nil
}

func (b *Bot) assistantName() string {
	if len(b.config.Bot.AssistantNames) == 0 {
		return "assistant"
	}
	return b.config.Bot.AssistantNames[0]
}

func (b *Bot) SessionID() string { return b.sessionID }

func (b *Bot) Resumed() bool { return b.resumed }

func (b *Bot) Conversation() *conversation.State { return b.state }

func (b *Bot) TranscriptPath() string { return b.transcript.Path() }

// Run starts the conversation and blocks until it ends: Stop was called,
// ctx was cancelled, nobody spoke for the configured idle timeout or a
// fatal error occurred. Run may only be called once.
func (b *Bot) Run(ctx context.Context) error {
	err := errors.New("bot already ran")
	b.runOnce.Do(func() { err = b.run(ctx) })
	return err
}

func (b *Bot) run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "run conversation")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", b.sessionID),
		attribute.Bool("session.resumed", b.resumed),
		attribute.String("session.config", b.config.Name),
	)
	sessionsStarted.Add(ctx, 1, metric.WithAttributes(attribute.Bool("session.resumed", b.resumed)))

	defer func() {
		if err := b.transcript.Close(); err != nil {
			logger.Warn("failed to close transcript", "path", b.transcript.Path(), "error", err)
		}
	}()

	b.transcript.ParticipantJoined(localParticipant)
	defer b.transcript.ParticipantLeft(localParticipant)

	b.task.Queue(events.NewContextUpdate(b.state))
	logger.Info("conversation started",
		"session_id", b.sessionID,
		"transcript", b.transcript.Path(),
		"recordings", filepath.Clean(b.config.Paths.Recordings),
	)

	err := b.task.Run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	logger.Info("conversation ended", "session_id", b.sessionID, "messages", b.state.Len())
	return err
}

// Stop ends the conversation gracefully: pending speech is flushed and the
// session is saved.
func (b *Bot) Stop() {
	b.task.End()
}

// Cancel stops the conversation right away. The session is still saved.
func (b *Bot) Cancel() {
	b.task.Cancel()
}
