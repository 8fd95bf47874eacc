package events

const (
	// KindResponseStarted identifies generation start.
	KindResponseStarted Kind = "response.started"
	// KindGeneratedText identifies a streamed generated text segment.
	KindGeneratedText Kind = "response.text"
	// KindResponseEnded identifies generation end.
	KindResponseEnded Kind = "response.ended"
	// KindSpeak identifies text to be spoken verbatim.
	KindSpeak Kind = "speech.speak"
	// KindSpeechAudio identifies synthesized speech audio.
	KindSpeechAudio Kind = "speech.audio"
)

type ResponseStarted struct{ base }

func NewResponseStarted() ResponseStarted { return ResponseStarted{base: newBase()} }

func (ResponseStarted) Kind() Kind { return KindResponseStarted }

// GeneratedText is an append-only segment of a generated response.
type GeneratedText struct {
	base
	Text string
}

func NewGeneratedText(text string) GeneratedText {
	return GeneratedText{base: newBase(), Text: text}
}

func (GeneratedText) Kind() Kind { return KindGeneratedText }

type ResponseEnded struct{ base }

func NewResponseEnded() ResponseEnded { return ResponseEnded{base: newBase()} }

func (ResponseEnded) Kind() Kind { return KindResponseEnded }

// Speak asks text-to-speech to say Text as is, outside of any response.
type Speak struct {
	base
	Text string
}

func NewSpeak(text string) Speak { return Speak{base: newBase(), Text: text} }

func (Speak) Kind() Kind { return KindSpeak }

// SpeechAudio carries synthesized audio on its way to the speaker.
type SpeechAudio struct {
	base
	Audio      []byte
	SampleRate int
}

func NewSpeechAudio(audio []byte, sampleRate int) SpeechAudio {
	return SpeechAudio{base: newBase(), Audio: audio, SampleRate: sampleRate}
}

func (SpeechAudio) Kind() Kind { return KindSpeechAudio }
