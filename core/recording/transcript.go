package recording

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/koscakluka/xperto/core/events"
	"github.com/koscakluka/xperto/core/pipeline"
)

const (
	fileTimestampLayout = "20060102_150405"
	lineTimestampLayout = "2006-01-02T15:04:05.000Z07:00"

	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type TranscriptOptions struct {
	Now func() time.Time
}

type TranscriptOption func(*TranscriptOptions)

func WithClock(now func() time.Time) TranscriptOption {
	return func(o *TranscriptOptions) {
		o.Now = now
	}
}

// Transcript appends one line per spoken message to a log file:
//
//	[2025-01-02T15:04:05.000Z] user 0: hello Experto
type Transcript struct {
	path string
	now  func() time.Time

	mu   sync.Mutex
	file *os.File
}

// OpenTranscript creates <dir>/<timestamp>_<name>.log.
func OpenTranscript(dir, name string, opts ...TranscriptOption) (*Transcript, error) {
	options := TranscriptOptions{Now: time.Now}
	for _, opt := range opts {
		opt(&options)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.log", options.Now().Format(fileTimestampLayout), name))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}

	logger.Info("transcript will be saved", "path", path)
	return &Transcript{path: path, now: options.Now, file: file}, nil
}

func (t *Transcript) Path() string { return t.path }

func (t *Transcript) Write(role, speaker, text string) {
	line := fmt.Sprintf("%s %s: %s", role, speaker, text)
	logger.Info("transcript", "line", line)
	t.writeLine(line)
}

func (t *Transcript) ParticipantJoined(id string) {
	t.writeLine(fmt.Sprintf("Participant %s joined the call.", id))
}

func (t *Transcript) ParticipantLeft(id string) {
	t.writeLine(fmt.Sprintf("Participant %s left the call.", id))
}

func (t *Transcript) writeLine(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return
	}
	if _, err := fmt.Fprintf(t.file, "[%s] %s\n", t.now().Format(lineTimestampLayout), line); err != nil {
		logger.Error("failed to write transcript line", "path", t.path, "error", err)
	}
}

func (t *Transcript) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	if err != nil {
		return fmt.Errorf("failed to close transcript: %w", err)
	}
	return nil
}

// UserTranscript logs final user transcriptions.
type UserTranscript struct {
	transcript *Transcript
}

func NewUserTranscript(t *Transcript) *UserTranscript {
	return &UserTranscript{transcript: t}
}

func (u *UserTranscript) Name() string { return "user transcript" }

func (u *UserTranscript) Process(ctx context.Context, event events.Event, direction events.Direction, out pipeline.Output) {
	if e, ok := event.(events.TranscriptionUpdate); ok && e.Final && direction == events.Downstream {
		u.transcript.Write(RoleUser, e.SpeakerID, e.Text)
	}
	out.Push(ctx, event, direction)
}

// AssistantTranscript logs what the assistant said, one line per response.
// An interrupted response is logged up to where it was cut off.
type AssistantTranscript struct {
	transcript *Transcript
	speaker    string

	text strings.Builder
}

func NewAssistantTranscript(t *Transcript, speaker string) *AssistantTranscript {
	return &AssistantTranscript{transcript: t, speaker: speaker}
}

func (a *AssistantTranscript) Name() string { return "assistant transcript" }

func (a *AssistantTranscript) Process(ctx context.Context, event events.Event, direction events.Direction, out pipeline.Output) {
	if direction == events.Downstream {
		switch e := event.(type) {
		case events.ResponseStarted:
			a.text.Reset()
		case events.GeneratedText:
			a.text.WriteString(e.Text)
		case events.Speak:
			a.transcript.Write(RoleAssistant, a.speaker, e.Text)
		case events.ResponseEnded, events.InterruptionStarted, events.End, events.Cancel:
			a.flush()
		}
	}
	out.Push(ctx, event, direction)
}

func (a *AssistantTranscript) flush() {
	text := strings.TrimSpace(a.text.String())
	a.text.Reset()
	if text != "" {
		a.transcript.Write(RoleAssistant, a.speaker, text)
	}
}
