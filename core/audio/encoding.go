package audio

import "fmt"

const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	DefaultFormat     = EncodingLinear16
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Channels: DefaultChannels, Format: DefaultFormat}
}

type EncodingInfo struct {
	SampleRate int
	Channels   int
	Format     EncodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) Validate() error {
	if e.IsZero() {
		return fmt.Errorf("encoding info is incomplete")
	}
	if e.Format.ByteSize() < 0 {
		return fmt.Errorf("unknown encoding format %q", e.Format)
	}
	return nil
}

// SilenceValue is the byte that encodes silence in every sample byte.
func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	case EncodingLinear16:
		return 0
	}

	return 0
}

func (e EncodingInfo) channels() int {
	if e.Channels <= 0 {
		return 1
	}
	return e.Channels
}

// BytesPerSecond of audio in this encoding.
func (e EncodingInfo) BytesPerSecond() int {
	return e.SampleRate * e.channels() * e.Format.ByteSize()
}

// Silence returns a buffer of silence lasting ms milliseconds.
func (e EncodingInfo) Silence(ms int) []byte {
	chunk := make([]byte, e.BytesPerSecond()*ms/1000)
	if value := e.SilenceValue(); value != 0 {
		for i := range chunk {
			chunk[i] = value
		}
	}
	return chunk
}

type EncodingFormat string

func (e EncodingFormat) Name() string {
	return string(e)
}

func (e EncodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    EncodingFormat = "mulaw"
	EncodingALaw     EncodingFormat = "alaw"
	EncodingLinear16 EncodingFormat = "linear16"
)
