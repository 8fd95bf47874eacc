package speechtotext

import (
	"context"

	"github.com/koscakluka/xperto/core/audio"
)

type TranscriptionOptions struct {
	// InterimTranscriptionCallback receives the transcript of the current
	// utterance so far. It may be revised by later calls.
	InterimTranscriptionCallback func(transcript, speakerID string)
	// TranscriptionCallback receives the final transcript of an utterance
	// and the diarized speaker who said it.
	TranscriptionCallback func(transcript, speakerID string)

	SpeechStartedCallback func()
	SpeechEndedCallback   func()

	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

func WithTranscriptionCallback(callback func(transcript, speakerID string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.TranscriptionCallback = callback
	}
}

func WithInterimTranscriptionCallback(callback func(transcript, speakerID string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.InterimTranscriptionCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}

// Transcriber streams audio to a speech-to-text service. Transcribe opens
// the stream, callbacks fire from the transcriber's own goroutine in the
// order the service reported them.
type Transcriber interface {
	Transcribe(ctx context.Context, opts ...TranscriptionOption) error
	SendAudio(audio []byte) error
	StopStream() error
}
