package deepgram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/xperto/core/audio"
	"github.com/koscakluka/xperto/core/texttospeech"
)

// speakServer answers every Flush with one byte of audio per character
// spoken since the previous flush.
func speakServer(t *testing.T, spoken chan<- string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("model") != "aura-asteria-en" || r.URL.Query().Get("sample_rate") != "24000" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		pending := ""
		for {
			var msg websocketMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			switch msg.Type {
			case "Speak":
				pending += msg.Text
				spoken <- msg.Text
			case "Flush":
				_ = conn.WriteMessage(websocket.BinaryMessage, make([]byte, len(pending)))
				pending = ""
				flushed, _ := json.Marshal(websocketMessage{Type: "Flushed"})
				_ = conn.WriteMessage(websocket.TextMessage, flushed)
			case "Close":
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}))
}

type speechLog struct {
	mu     sync.Mutex
	audio  int
	marks  []string
	ended  int
	errors []error
}

func (l *speechLog) options() []texttospeech.SpeechOption {
	return []texttospeech.SpeechOption{
		texttospeech.WithSpeechAudioCallback(func(b []byte) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.audio += len(b)
		}),
		texttospeech.WithSpeechMarkCallback(func(mark string) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.marks = append(l.marks, mark)
		}),
		texttospeech.WithSpeechEndedCallback(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.ended++
		}),
		texttospeech.WithErrorCallback(func(err error) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.errors = append(l.errors, err)
		}),
	}
}

func (l *speechLog) isEnded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ended > 0
}

func TestSpeechGeneratorSpeaksMarkedSegmentsInOrder(t *testing.T) {
	spoken := make(chan string, 16)
	server := speakServer(t, spoken)
	defer server.Close()

	client, err := NewTextToSpeechClient(
		WithAPIKey("secret"),
		WithURL("ws"+strings.TrimPrefix(server.URL, "http")),
		WithVoice("aura-asteria-en"),
		WithEncodingInfo(audio.EncodingInfo{SampleRate: 24000, Format: audio.EncodingLinear16}),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	log := &speechLog{}
	generator, err := client.NewSpeechGenerator(context.Background(), log.options()...)
	if err != nil {
		t.Fatalf("failed to open generator: %v", err)
	}

	for _, step := range []func() error{
		func() error { return generator.SendText("Hello. ") },
		generator.Mark,
		func() error { return generator.SendText("Bye. ") },
		generator.Mark,
		generator.EndOfText,
	} {
		if err := step(); err != nil {
			t.Fatalf("generator step failed: %v", err)
		}
	}

	deadline := time.After(2 * time.Second)
	for !log.isEnded() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for speech to end")
		case <-time.After(time.Millisecond):
		}
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	if len(log.marks) != 2 || log.marks[0] != "Hello. " || log.marks[1] != "Bye. " {
		t.Fatalf("unexpected marks %q", log.marks)
	}
	if log.audio != len("Hello. Bye. ") {
		t.Fatalf("expected audio for every spoken character, got %d bytes", log.audio)
	}
	if log.ended != 1 || len(log.errors) != 0 {
		t.Fatalf("expected a clean single end, got %d ends and errors %v", log.ended, log.errors)
	}
	if err := generator.SendText("again"); err == nil {
		t.Fatalf("expected a finished generator to refuse text")
	}
}

func TestSpeechGeneratorEndsRightAwayWithoutText(t *testing.T) {
	server := speakServer(t, make(chan string, 1))
	defer server.Close()

	client, err := NewTextToSpeechClient(
		WithAPIKey("secret"),
		WithURL("ws"+strings.TrimPrefix(server.URL, "http")),
		WithVoice("aura-asteria-en"),
		WithEncodingInfo(audio.EncodingInfo{SampleRate: 24000, Format: audio.EncodingLinear16}),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	log := &speechLog{}
	generator, err := client.NewSpeechGenerator(context.Background(), log.options()...)
	if err != nil {
		t.Fatalf("failed to open generator: %v", err)
	}
	if err := generator.EndOfText(); err != nil {
		t.Fatalf("failed to end text: %v", err)
	}
	if !log.isEnded() {
		t.Fatalf("expected speech to end without any text")
	}
	if err := generator.Cancel(); err != nil {
		t.Fatalf("expected cancel after close to be ignored, got %v", err)
	}
}

func TestNewTextToSpeechClientRejectsUnknownEncoding(t *testing.T) {
	_, err := NewTextToSpeechClient(WithAPIKey("secret"),
		WithEncodingInfo(audio.EncodingInfo{SampleRate: 24000, Format: "opus"}))
	if err == nil {
		t.Fatalf("expected an unknown encoding to be rejected")
	}
}
