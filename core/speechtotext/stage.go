package speechtotext

import (
	"context"
	"fmt"
	"sync"

	"github.com/koscakluka/xperto/core/audio"
	"github.com/koscakluka/xperto/core/events"
	"github.com/koscakluka/xperto/core/pipeline"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type StageOptions struct {
	EncodingInfo   audio.EncodingInfo
	InterimResults bool
}

type StageOption func(*StageOptions)

func WithStageEncoding(encoding audio.EncodingInfo) StageOption {
	return func(o *StageOptions) {
		o.EncodingInfo = encoding
	}
}

// WithInterimResults also emits interim transcriptions.
func WithInterimResults() StageOption {
	return func(o *StageOptions) {
		o.InterimResults = true
	}
}

// Stage feeds user audio to a Transcriber and turns what it hears into
// events. Voice activity becomes InterruptionStarted and InterruptionEnded
// around the final transcriptions of an utterance. Audio chunks are
// forwarded untouched.
type Stage struct {
	transcriber Transcriber
	options     StageOptions

	mu        sync.Mutex
	streaming bool
}

func NewStage(transcriber Transcriber, opts ...StageOption) *Stage {
	options := StageOptions{EncodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(&options)
	}
	return &Stage{transcriber: transcriber, options: options}
}

func (s *Stage) Name() string { return "speech to text" }

func (s *Stage) Process(ctx context.Context, event events.Event, direction events.Direction, out pipeline.Output) {
	if direction != events.Downstream {
		out.Push(ctx, event, direction)
		return
	}

	switch e := event.(type) {
	case events.Start:
		out.Push(ctx, event, direction)
		if err := s.start(ctx, out); err != nil {
			logger.Error("failed to start transcription", "error", err)
			out.Push(ctx, events.NewFatalError(err), events.Downstream)
		}
		return
	case events.AudioChunk:
		if s.isStreaming() {
			if err := s.transcriber.SendAudio(e.Audio); err != nil {
				audioSendFailures.Add(ctx, 1)
				logger.Debug("failed to send audio to transcriber", "error", err)
			}
		}
	case events.End, events.Cancel:
		s.stop()
	}
	out.Push(ctx, event, direction)
}

func (s *Stage) isStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

func (s *Stage) start(ctx context.Context, out pipeline.Output) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streaming {
		return nil
	}

	push := func(event events.Event) { out.Push(ctx, event, events.Downstream) }
	opts := []TranscriptionOption{
		WithEncodingInfo(s.options.EncodingInfo),
		WithTranscriptionCallback(func(transcript, speakerID string) {
			transcriptions.Add(ctx, 1, metric.WithAttributes(attribute.String("stt.speaker", speakerID)))
			push(events.NewTranscription(transcript, speakerID))
		}),
		WithSpeechStartedCallback(func() { push(events.NewInterruptionStarted()) }),
		WithSpeechEndedCallback(func() { push(events.NewInterruptionEnded()) }),
	}
	if s.options.InterimResults {
		opts = append(opts, WithInterimTranscriptionCallback(func(transcript, speakerID string) {
			push(events.NewInterimTranscription(transcript, speakerID))
		}))
	}

	if err := s.transcriber.Transcribe(ctx, opts...); err != nil {
		return fmt.Errorf("failed to open transcription stream: %w", err)
	}
	s.streaming = true
	return nil
}

func (s *Stage) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.streaming {
		return
	}
	if err := s.transcriber.StopStream(); err != nil {
		logger.Warn("failed to stop transcription stream", "error", err)
	}
	s.streaming = false
}
