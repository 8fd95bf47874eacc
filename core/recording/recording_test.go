package recording

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/koscakluka/xperto/core/events"
)

type collector struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *collector) Push(_ context.Context, event events.Event, _ events.Direction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }
}

func TestTranscriptLogsBothSidesOfTheConversation(t *testing.T) {
	dir := t.TempDir()
	transcript, err := OpenTranscript(dir, "natural_conv_bot", WithClock(fixedClock()))
	if err != nil {
		t.Fatalf("failed to open transcript: %v", err)
	}
	if filepath.Base(transcript.Path()) != "20250304_050607_natural_conv_bot.log" {
		t.Fatalf("unexpected transcript path %s", transcript.Path())
	}

	user := NewUserTranscript(transcript)
	assistant := NewAssistantTranscript(transcript, "Experto")
	out := &collector{}
	ctx := context.Background()

	transcript.ParticipantJoined("local")
	user.Process(ctx, events.NewInterimTranscription("hello", "0"), events.Downstream, out)
	user.Process(ctx, events.NewTranscription("hello Experto", "0"), events.Downstream, out)
	assistant.Process(ctx, events.NewResponseStarted(), events.Downstream, out)
	assistant.Process(ctx, events.NewGeneratedText("Hi, "), events.Downstream, out)
	assistant.Process(ctx, events.NewGeneratedText("how can I help?"), events.Downstream, out)
	assistant.Process(ctx, events.NewResponseEnded(), events.Downstream, out)
	assistant.Process(ctx, events.NewResponseStarted(), events.Downstream, out)
	assistant.Process(ctx, events.NewGeneratedText("Well"), events.Downstream, out)
	assistant.Process(ctx, events.NewInterruptionStarted(), events.Downstream, out)
	transcript.ParticipantLeft("local")

	if err := transcript.Close(); err != nil {
		t.Fatalf("failed to close transcript: %v", err)
	}
	transcript.Write(RoleUser, "0", "after close")

	content, err := os.ReadFile(transcript.Path())
	if err != nil {
		t.Fatalf("failed to read transcript: %v", err)
	}
	want := []string{
		"[2025-03-04T05:06:07.000Z] Participant local joined the call.",
		"[2025-03-04T05:06:07.000Z] user 0: hello Experto",
		"[2025-03-04T05:06:07.000Z] assistant Experto: Hi, how can I help?",
		"[2025-03-04T05:06:07.000Z] assistant Experto: Well",
		"[2025-03-04T05:06:07.000Z] Participant local left the call.",
	}
	got := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %q", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if len(out.events) != 9 {
		t.Fatalf("expected every event to be forwarded, got %d", len(out.events))
	}
}

func pcm(samples ...int16) []byte {
	b := make([]byte, 2*len(samples))
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(sample))
	}
	return b
}

func TestAudioRecorderWritesTracksOnEnd(t *testing.T) {
	dir := t.TempDir()
	recorder := NewAudioRecorder(dir, "recording", WithRecorderClock(fixedClock()))
	out := &collector{}
	ctx := context.Background()

	recorder.Process(ctx, events.NewAudioChunk(pcm(1, -2), 16000, 1), events.Downstream, out)
	recorder.Process(ctx, events.NewAudioChunk(pcm(300), 16000, 1), events.Downstream, out)
	recorder.Process(ctx, events.NewAudioChunk(pcm(5), 8000, 1), events.Downstream, out)
	recorder.Process(ctx, events.NewEnd(), events.Downstream, out)

	path := filepath.Join(dir, "20250304_050607_recording_user.wav")
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("expected user track to be written: %v", err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		t.Fatalf("expected a valid wav file")
	}
	buffer, err := decoder.FullPCMBuffer()
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if buffer.Format.SampleRate != 16000 {
		t.Fatalf("unexpected sample rate %d", buffer.Format.SampleRate)
	}
	if len(buffer.Data) != 3 || buffer.Data[0] != 1 || buffer.Data[1] != -2 || buffer.Data[2] != 300 {
		t.Fatalf("unexpected samples %v", buffer.Data)
	}

	if _, err := os.Stat(filepath.Join(dir, "20250304_050607_recording_bot.wav")); !os.IsNotExist(err) {
		t.Fatalf("expected no bot track without speech, got %v", err)
	}

	paths, err := recorder.Save(ctx)
	if err != nil || paths != nil {
		t.Fatalf("expected a second save to do nothing, got %v %v", paths, err)
	}
}
