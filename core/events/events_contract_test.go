package events

import (
	"errors"
	"testing"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "start", event: NewStart(), expected: KindStart},
		{name: "end", event: NewEnd(), expected: KindEnd},
		{name: "cancel", event: NewCancel(), expected: KindCancel},
		{name: "error", event: NewError(errors.New("boom")), expected: KindError},
		{name: "audio chunk", event: NewAudioChunk([]byte{1}, 16000, 1), expected: KindAudioChunk},
		{name: "transcription", event: NewTranscription("hello", "0"), expected: KindTranscriptionUpdate},
		{name: "interim transcription", event: NewInterimTranscription("hel", "0"), expected: KindTranscriptionUpdate},
		{name: "interruption started", event: NewInterruptionStarted(), expected: KindInterruptionStarted},
		{name: "interruption ended", event: NewInterruptionEnded(), expected: KindInterruptionEnded},
		{name: "user stopped speaking", event: NewUserStoppedSpeaking(), expected: KindUserStoppedSpeaking},
		{name: "function call started", event: NewFunctionCallStarted("1", "web_search", "{}"), expected: KindFunctionCallStarted},
		{name: "function call result", event: NewFunctionCallResult("1", "web_search", "ok", nil), expected: KindFunctionCallResult},
		{name: "response started", event: NewResponseStarted(), expected: KindResponseStarted},
		{name: "generated text", event: NewGeneratedText("hi"), expected: KindGeneratedText},
		{name: "response ended", event: NewResponseEnded(), expected: KindResponseEnded},
		{name: "speak", event: NewSpeak("one moment"), expected: KindSpeak},
		{name: "speech audio", event: NewSpeechAudio([]byte{1}, 16000), expected: KindSpeechAudio},
		{name: "context update", event: NewContextUpdate(nil), expected: KindContextUpdate},
		{name: "messages request", event: NewMessagesRequest(nil), expected: KindMessagesRequest},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
			if testCase.event.ID() == "" {
				t.Fatalf("expected constructor to assign an id")
			}
			if testCase.event.Timestamp().IsZero() {
				t.Fatalf("expected constructor to assign a timestamp")
			}
		})
	}
}

func TestZeroValueEventsKeepTheirKind(t *testing.T) {
	if got := (UserStoppedSpeaking{}).Kind(); got != KindUserStoppedSpeaking {
		t.Fatalf("expected zero value to report %q, got %q", KindUserStoppedSpeaking, got)
	}
}

func TestEventIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		id := NewGeneratedText("x").ID()
		if seen[id] {
			t.Fatalf("duplicate event id %q", id)
		}
		seen[id] = true
	}
}

func TestClassification(t *testing.T) {
	testCases := []struct {
		name         string
		event        Event
		system       bool
		lifecycle    bool
		functionCall bool
		terminal     bool
	}{
		{name: "start", event: NewStart(), system: true, lifecycle: true},
		{name: "end", event: NewEnd(), system: true, lifecycle: true, terminal: true},
		{name: "cancel", event: NewCancel(), system: true, lifecycle: true, terminal: true},
		{name: "error", event: NewError(errors.New("x")), system: true, lifecycle: true},
		{name: "interruption", event: NewInterruptionStarted(), system: true},
		{name: "user stopped speaking", event: NewUserStoppedSpeaking(), system: true},
		{name: "function call", event: NewFunctionCallStarted("1", "f", ""), functionCall: true},
		{name: "function result", event: NewFunctionCallResult("1", "f", "", nil), functionCall: true},
		{name: "text", event: NewGeneratedText("x")},
		{name: "transcription", event: NewTranscription("x", "")},
		{name: "context", event: NewContextUpdate(nil)},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := IsSystem(testCase.event); got != testCase.system {
				t.Fatalf("IsSystem: expected %v, got %v", testCase.system, got)
			}
			if got := IsLifecycle(testCase.event); got != testCase.lifecycle {
				t.Fatalf("IsLifecycle: expected %v, got %v", testCase.lifecycle, got)
			}
			if got := IsFunctionCall(testCase.event); got != testCase.functionCall {
				t.Fatalf("IsFunctionCall: expected %v, got %v", testCase.functionCall, got)
			}
			if got := IsTerminal(testCase.event); got != testCase.terminal {
				t.Fatalf("IsTerminal: expected %v, got %v", testCase.terminal, got)
			}
		})
	}
}

func TestDirectionString(t *testing.T) {
	if Downstream.String() != "downstream" || Upstream.String() != "upstream" {
		t.Fatalf("unexpected direction names %q, %q", Downstream, Upstream)
	}
}
