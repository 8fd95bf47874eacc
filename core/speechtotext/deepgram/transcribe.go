package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/xperto/core/audio"
	"github.com/koscakluka/xperto/core/speechtotext"
	"github.com/koscakluka/xperto/internal/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

type callbackConfig struct {
	interimTranscriptionCallback func(transcript, speakerID string)
	transcriptionCallback        func(transcript, speakerID string)
	startSpeechCallback          func()
	endSpeechCallback            func()
}

type websocketConfig struct {
	shouldDetectSpeechStart            bool
	shouldEnhanceSpeechEndingDetection bool
	shouldRequestInterimResults        bool
}

// newCallbackConfig fills unset callbacks with no-ops and derives which
// server side features the configured callbacks need.
func newCallbackConfig(options speechtotext.TranscriptionOptions) (callbackConfig, websocketConfig) {
	callbacks := callbackConfig{
		interimTranscriptionCallback: func(string, string) {},
		transcriptionCallback:        func(string, string) {},
		startSpeechCallback:          func() {},
		endSpeechCallback:            func() {},
	}
	wsConfig := websocketConfig{}

	if options.InterimTranscriptionCallback != nil {
		callbacks.interimTranscriptionCallback = options.InterimTranscriptionCallback
		wsConfig.shouldRequestInterimResults = true
	}
	if options.TranscriptionCallback != nil {
		callbacks.transcriptionCallback = options.TranscriptionCallback
		wsConfig.shouldEnhanceSpeechEndingDetection = true
	}
	if options.SpeechStartedCallback != nil {
		callbacks.startSpeechCallback = options.SpeechStartedCallback
		wsConfig.shouldDetectSpeechStart = true
	}
	if options.SpeechEndedCallback != nil {
		callbacks.endSpeechCallback = options.SpeechEndedCallback
		wsConfig.shouldEnhanceSpeechEndingDetection = true
	}

	return callbacks, wsConfig
}

func (s *TranscriptionClient) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	ctx, span := tracer.Start(ctx, "open deepgram transcription")
	defer span.End()

	options := &speechtotext.TranscriptionOptions{EncodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(options)
	}

	encoding, err := encodingParams(options.EncodingInfo)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("invalid encoding: %w", err)
	}

	callbacks, wsConfig := newCallbackConfig(*options)
	conn, err := s.connectWebsocket(ctx, encoding, wsConfig)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to open websocket: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	s.lastMsgTs.Store(time.Now().UnixNano())

	go s.readAndProcessMessages(context.WithoutCancel(ctx), conn, callbacks, options.EncodingInfo)

	return nil
}

func (s *TranscriptionClient) connectWebsocket(ctx context.Context, encoding url.Values, config websocketConfig) (*websocket.Conn, error) {
	listenUrl, err := url.Parse(s.options.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid listen url: %w", err)
	}
	queryParams := listenUrl.Query()
	for key, values := range encoding {
		queryParams[key] = values
	}
	queryParams.Set("model", s.options.Model)
	queryParams.Set("language", s.options.Language)
	queryParams.Set("smart_format", "true")
	if s.options.Diarize {
		queryParams.Set("diarize", "true")
	}
	if config.shouldEnhanceSpeechEndingDetection {
		queryParams.Set("utterance_end_ms", "1000")
		queryParams.Set("interim_results", "true")
	} else if config.shouldRequestInterimResults {
		queryParams.Set("interim_results", "true")
	}
	queryParams.Set("endpointing", "300")
	if config.shouldDetectSpeechStart || config.shouldEnhanceSpeechEndingDetection {
		queryParams.Set("vad_events", "true")
	}

	listenUrl.RawQuery = queryParams.Encode()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, listenUrl.String(),
		http.Header{"Authorization": {"Token " + s.options.APIKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func (s *TranscriptionClient) sendKeepAlive(ctx context.Context) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return
	}

	if err := s.conn.WriteJSON(controlMessage{Type: "KeepAlive"}); err != nil {
		logger.Warn("failed to write keepalive to deepgram", "error", err)
		return
	}
	keepAlivesSent.Add(ctx, 1)
}

func (s *TranscriptionClient) SendAudio(audio []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("transcription stream not open")
	}

	s.lastMsgTs.Store(time.Now().UnixNano())
	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (s *TranscriptionClient) sendSilence(audio []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("transcription stream not open")
	}

	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

// StopStream asks deepgram to finish the pending transcription and close
// the connection. Transcriptions still in flight are delivered.
func (s *TranscriptionClient) StopStream() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn != nil {
		if err := s.conn.WriteJSON(controlMessage{Type: string(api.TypeCloseStreamResponse)}); err != nil {
			return fmt.Errorf("failed to close deepgram stream through websocket: %w", err)
		}
	}
	return nil
}

type controlMessage struct {
	Type string `json:"type"`
}

func (s *TranscriptionClient) readAndProcessMessages(ctx context.Context, conn *websocket.Conn, callbacks callbackConfig, encoding audio.EncodingInfo) {
	silenceCtx, silenceCancel := context.WithCancel(ctx)
	defer silenceCancel()

	go s.generateSilence(silenceCtx, encoding)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) || closeErr.Code != websocket.CloseNormalClosure {
				logger.Warn("failed to read deepgram websocket message", "error", err)
			}

			s.connMu.Lock()
			if s.conn == conn {
				s.conn = nil
			}
			s.connMu.Unlock()
			conn.Close()
			return
		}
		if msgType != websocket.BinaryMessage {
			s.processMessage(ctx, msg, callbacks)
		}
	}
}

// diarizedMessage picks out the per-word speakers that the listen response
// types leave out.
type diarizedMessage struct {
	Channel struct {
		Alternatives []struct {
			Words []struct {
				Speaker *int `json:"speaker"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// speaker returns the speaker of most words in the first alternative.
func (m diarizedMessage) speaker() string {
	if len(m.Channel.Alternatives) == 0 {
		return ""
	}
	counts := map[int]int{}
	best, bestCount := -1, 0
	for _, word := range m.Channel.Alternatives[0].Words {
		if word.Speaker == nil {
			continue
		}
		counts[*word.Speaker]++
		if counts[*word.Speaker] > bestCount {
			best, bestCount = *word.Speaker, counts[*word.Speaker]
		}
	}
	if best < 0 {
		return ""
	}
	return strconv.Itoa(best)
}

func (s *TranscriptionClient) processMessage(ctx context.Context, msg []byte, callbacks callbackConfig) {
	var parsedMsg controlMessage
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram transcript", "error", err)
			return
		}
		var diarized diarizedMessage
		if err := json.Unmarshal(msg, &diarized); err != nil {
			logger.Debug("failed to read deepgram speakers", "error", err)
		}
		speaker := diarized.speaker()

		transcript := ""
		if len(msgResp.Channel.Alternatives) > 0 {
			transcript = strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		}

		if msgResp.IsFinal {
			if len(transcript) > 0 {
				if s.accumulatedTranscript != "" && speaker != s.accumulatedSpeaker {
					speakerChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("stt.speaker", speaker)))
					s.flushTranscript(callbacks)
				}
				s.accumulatedTranscript = strings.TrimSpace(s.accumulatedTranscript + " " + transcript)
				s.accumulatedSpeaker = speaker
			}
			if msgResp.SpeechFinal {
				s.onSpeechEnded(callbacks)
			}
		} else if len(transcript) > 0 {
			callbacks.interimTranscriptionCallback(strings.TrimSpace(s.accumulatedTranscript+" "+transcript), speaker)
		}

	case api.TypeUtteranceEndResponse:
		if s.unendedSegment || s.accumulatedTranscript != "" {
			s.onSpeechEnded(callbacks)
		}

	case api.TypeSpeechStartedResponse:
		if !s.unendedSegment {
			s.unendedSegment = true
			callbacks.startSpeechCallback()
		}
	}
}

func (s *TranscriptionClient) flushTranscript(callbacks callbackConfig) {
	fullTranscript := strings.TrimSpace(s.accumulatedTranscript)
	speaker := s.accumulatedSpeaker
	s.accumulatedTranscript = ""
	s.accumulatedSpeaker = ""
	if len(fullTranscript) > 0 {
		callbacks.transcriptionCallback(fullTranscript, speaker)
	}
}

func (s *TranscriptionClient) onSpeechEnded(callbacks callbackConfig) {
	s.unendedSegment = false
	s.flushTranscript(callbacks)
	callbacks.endSpeechCallback()
}

// generateSilence keeps the stream alive while no audio is sent: first with
// a second of silence so deepgram can finalize the utterance, then with
// KeepAlive messages.
func (s *TranscriptionClient) generateSilence(ctx context.Context, encoding audio.EncodingInfo) {
	type silenceGeneratorState string
	const (
		silenceGeneratorStateWaiting   silenceGeneratorState = "waiting"
		silenceGeneratorStateSilence   silenceGeneratorState = "silence"
		silenceGeneratorStateKeepAlive silenceGeneratorState = "keepAlive"
	)

	const durationMs = 50
	ticker := time.NewTicker(durationMs * time.Millisecond)
	defer ticker.Stop()

	chunk := encoding.Silence(durationMs)
	sinceLastAudio := func() time.Duration {
		return time.Since(time.Unix(0, s.lastMsgTs.Load()))
	}

	var state = silenceGeneratorStateWaiting
	var firstSilenceTime *time.Time
	var lastKeepAliveTime *time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			switch state {
			case silenceGeneratorStateWaiting:
				if sinceLastAudio() > durationMs*time.Millisecond {
					state = silenceGeneratorStateSilence
					firstSilenceTime = utils.Ptr(time.Now())
					continue
				}

			case silenceGeneratorStateSilence:
				if sinceLastAudio() < durationMs*time.Millisecond {
					state = silenceGeneratorStateWaiting
					firstSilenceTime = nil
					continue
				}
				if time.Since(*firstSilenceTime) >= time.Second {
					state = silenceGeneratorStateKeepAlive
					lastKeepAliveTime = utils.Ptr(time.Now())
					firstSilenceTime = nil
					continue
				}

				if err := s.sendSilence(chunk); err != nil {
					logger.Debug("failed to send silence", "error", err)
				}

			case silenceGeneratorStateKeepAlive:
				if sinceLastAudio() < durationMs*time.Millisecond {
					state = silenceGeneratorStateWaiting
					continue
				}

				if time.Since(*lastKeepAliveTime) >= 5*time.Second {
					lastKeepAliveTime = utils.Ptr(time.Now())
					s.sendKeepAlive(ctx)
				}
			}
		}
	}
}
