package deepgram

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"

	"github.com/koscakluka/xperto/core/audio"
)

var supportedSampleRates = []int{8000, 16000, 24000, 32000, 48000}

// encodingParams describes raw audio to the listen endpoint. Deepgram names
// the formats the same way audio.EncodingFormat does; companded formats are
// only accepted at telephony rate.
func encodingParams(encoding audio.EncodingInfo) (url.Values, error) {
	if !slices.Contains(supportedSampleRates, encoding.SampleRate) {
		return nil, fmt.Errorf("unsupported sample rate %d", encoding.SampleRate)
	}

	switch encoding.Format {
	case audio.EncodingLinear16:
	case audio.EncodingALaw, audio.EncodingMulaw:
		if encoding.SampleRate != 8000 {
			return nil, fmt.Errorf("unsupported sample rate %d for %s encoding", encoding.SampleRate, encoding.Format)
		}
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding.Format)
	}

	return url.Values{
		"encoding":    {encoding.Format.Name()},
		"sample_rate": {strconv.Itoa(encoding.SampleRate)},
		"channels":    {strconv.Itoa(max(encoding.Channels, 1))},
	}, nil
}
