package speechtotext

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/koscakluka/xperto/core/events"
)

type stubTranscriber struct {
	options  TranscriptionOptions
	audio    [][]byte
	stopped  bool
	startErr error
}

func (s *stubTranscriber) Transcribe(_ context.Context, opts ...TranscriptionOption) error {
	if s.startErr != nil {
		return s.startErr
	}
	for _, opt := range opts {
		opt(&s.options)
	}
	return nil
}

func (s *stubTranscriber) SendAudio(audio []byte) error {
	s.audio = append(s.audio, audio)
	return nil
}

func (s *stubTranscriber) StopStream() error {
	s.stopped = true
	return nil
}

type collector struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *collector) Push(_ context.Context, event events.Event, _ events.Direction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *collector) kinds() []events.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	var kinds []events.Kind
	for _, event := range c.events {
		kinds = append(kinds, event.Kind())
	}
	return kinds
}

func TestStageTurnsCallbacksIntoEvents(t *testing.T) {
	transcriber := &stubTranscriber{}
	stage := NewStage(transcriber)
	out := &collector{}

	stage.Process(context.Background(), events.NewStart(), events.Downstream, out)
	transcriber.options.SpeechStartedCallback()
	transcriber.options.TranscriptionCallback("hello Experto", "0")
	transcriber.options.SpeechEndedCallback()

	want := []events.Kind{
		events.KindStart,
		events.KindInterruptionStarted,
		events.KindTranscriptionUpdate,
		events.KindInterruptionEnded,
	}
	got := out.kinds()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	transcription := out.events[2].(events.TranscriptionUpdate)
	if !transcription.Final || transcription.Text != "hello Experto" || transcription.SpeakerID != "0" {
		t.Fatalf("unexpected transcription %+v", transcription)
	}
	if transcriber.options.InterimTranscriptionCallback != nil {
		t.Fatalf("expected interim results to be off by default")
	}
}

func TestStageSendsAudioAndForwardsIt(t *testing.T) {
	transcriber := &stubTranscriber{}
	stage := NewStage(transcriber, WithInterimResults())
	out := &collector{}

	stage.Process(context.Background(), events.NewAudioChunk([]byte{1}, 16000, 1), events.Downstream, out)
	if len(transcriber.audio) != 0 {
		t.Fatalf("expected no audio to be sent before Start")
	}

	stage.Process(context.Background(), events.NewStart(), events.Downstream, out)
	stage.Process(context.Background(), events.NewAudioChunk([]byte{2}, 16000, 1), events.Downstream, out)
	transcriber.options.InterimTranscriptionCallback("hel", "0")
	stage.Process(context.Background(), events.NewEnd(), events.Downstream, out)

	if len(transcriber.audio) != 1 || transcriber.audio[0][0] != 2 {
		t.Fatalf("unexpected audio sent %v", transcriber.audio)
	}
	if !transcriber.stopped {
		t.Fatalf("expected the stream to be stopped on End")
	}
	interim := out.events[3].(events.TranscriptionUpdate)
	if interim.Final {
		t.Fatalf("expected an interim transcription")
	}
	if got := len(out.kinds()); got != 5 {
		t.Fatalf("expected every event forwarded, got %v", out.kinds())
	}
}

func TestStageFailingTranscriberIsFatal(t *testing.T) {
	stage := NewStage(&stubTranscriber{startErr: errors.New("unauthorized")})
	out := &collector{}

	stage.Process(context.Background(), events.NewStart(), events.Downstream, out)

	if e, ok := out.events[len(out.events)-1].(events.Error); !ok || !e.Fatal {
		t.Fatalf("expected a fatal error, got %v", out.kinds())
	}
}
