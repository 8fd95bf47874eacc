package events

const (
	// KindAudioChunk identifies raw user input audio.
	KindAudioChunk Kind = "audio.chunk"
	// KindTranscriptionUpdate identifies an interim or final transcription.
	KindTranscriptionUpdate Kind = "transcription.update"
	// KindInterruptionStarted identifies the user starting to speak.
	KindInterruptionStarted Kind = "interruption.started"
	// KindInterruptionEnded identifies the end of user speech activity.
	KindInterruptionEnded Kind = "interruption.ended"
	// KindUserStoppedSpeaking identifies a completed user utterance.
	KindUserStoppedSpeaking Kind = "user.stopped_speaking"
)

// AudioChunk carries raw PCM audio captured from the user.
type AudioChunk struct {
	base
	Audio      []byte
	SampleRate int
	Channels   int
}

// NewAudioChunk creates an audio chunk event.
func NewAudioChunk(audio []byte, sampleRate, channels int) AudioChunk {
	return AudioChunk{base: newBase(), Audio: audio, SampleRate: sampleRate, Channels: channels}
}

func (AudioChunk) Kind() Kind { return KindAudioChunk }

// TranscriptionUpdate carries transcribed user speech. Interim updates may
// be revised by later updates, final ones may not.
type TranscriptionUpdate struct {
	base
	Text      string
	SpeakerID string
	Final     bool
}

// NewTranscription creates a final transcription event.
func NewTranscription(text, speakerID string) TranscriptionUpdate {
	return TranscriptionUpdate{base: newBase(), Text: text, SpeakerID: speakerID, Final: true}
}

// NewInterimTranscription creates an interim transcription event.
func NewInterimTranscription(text, speakerID string) TranscriptionUpdate {
	return TranscriptionUpdate{base: newBase(), Text: text, SpeakerID: speakerID}
}

func (TranscriptionUpdate) Kind() Kind { return KindTranscriptionUpdate }

type InterruptionStarted struct{ base }

func NewInterruptionStarted() InterruptionStarted {
	return InterruptionStarted{base: newBase()}
}

func (InterruptionStarted) Kind() Kind { return KindInterruptionStarted }

type InterruptionEnded struct{ base }

func NewInterruptionEnded() InterruptionEnded {
	return InterruptionEnded{base: newBase()}
}

func (InterruptionEnded) Kind() Kind { return KindInterruptionEnded }

type UserStoppedSpeaking struct{ base }

func NewUserStoppedSpeaking() UserStoppedSpeaking {
	return UserStoppedSpeaking{base: newBase()}
}

func (UserStoppedSpeaking) Kind() Kind { return KindUserStoppedSpeaking }
