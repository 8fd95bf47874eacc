package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/xperto/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type streamingRequest struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	// textBuffer holds the text between marks. The first segment is the one
	// deepgram is synthesizing, later ones wait for its Flushed message.
	textBuffer   []string
	textComplete bool
	cancelled    bool
	closed       bool
	ended        bool
	mu           sync.Mutex

	options texttospeech.SpeechOptions
}

func (c *TextToSpeechClient) NewSpeechGenerator(ctx context.Context, opts ...texttospeech.SpeechOption) (texttospeech.SpeechGenerator, error) {
	ctx, span := tracer.Start(ctx, "open deepgram speech generator")
	defer span.End()
	span.SetAttributes(attribute.String("tts.voice", c.options.Voice))

	req := &streamingRequest{
		options: texttospeech.SpeechOptions{
			SpeechAudioCallback: func([]byte) {},
			SpeechMarkCallback:  func(string) {},
			SpeechEndedCallback: func() {},
			ErrorCallback:       func(error) {},
		},
	}
	for _, opt := range opts {
		opt(&req.options)
	}

	var err error
	if req.ws, err = c.connectWebsocket(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to open websocket: %w", err)
	}

	go req.processIncomingMessages()

	return req, nil
}

func (c *TextToSpeechClient) connectWebsocket(ctx context.Context) (*websocket.Conn, error) {
	speakUrl, err := url.Parse(c.options.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid speak url: %w", err)
	}
	urlValues := speakUrl.Query()
	urlValues.Set("encoding", c.options.EncodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(c.options.EncodingInfo.SampleRate))
	urlValues.Set("model", c.options.Voice)
	urlValues.Set("container", "none")
	speakUrl.RawQuery = urlValues.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, speakUrl.String(),
		http.Header{"Authorization": {"token " + c.options.APIKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func (r *streamingRequest) processIncomingMessages() {
	for {
		msgType, msg, err := r.ws.ReadMessage()
		if err != nil {
			r.mu.Lock()
			expected := r.closed
			r.closed = true
			r.mu.Unlock()

			var closeErr *websocket.CloseError
			if !expected && (!errors.As(err, &closeErr) || closeErr.Code != websocket.CloseNormalClosure) {
				logger.Warn("deepgram speech websocket read failed", "error", err)
				r.options.ErrorCallback(err)
			}
			_ = r.ws.Close()
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if len(msg) > 0 {
				r.options.SpeechAudioCallback(msg)
			}
		case websocket.TextMessage:
			var parsedMsg websocketMessage
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				logger.Debug("failed to unmarshal deepgram message", "error", err)
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				r.onFlushed()
			case "Warning":
				logger.Warn("deepgram speech warning", "message", string(msg))
			default:
			}
		}
	}
}

func (r *streamingRequest) onFlushed() {
	r.mu.Lock()
	var mark string
	marked := false
	if len(r.textBuffer) > 0 {
		mark, marked = r.textBuffer[0], true
		r.textBuffer = r.textBuffer[1:]
	}

	finished := r.textComplete && r.pendingEmpty()
	if !finished && len(r.textBuffer) > 0 {
		if r.textBuffer[0] != "" {
			if err := r.sendWebsocketMessage(sendTextMsg(r.textBuffer[0])); err != nil {
				logger.Warn("failed to speak deepgram text", "error", err)
			}
		}
		if len(r.textBuffer) > 1 {
			if err := r.sendWebsocketMessage(flushMsg); err != nil {
				logger.Warn("failed to flush deepgram buffer", "error", err)
			}
		}
	}
	r.mu.Unlock()

	if marked {
		r.options.SpeechMarkCallback(mark)
	}
	if finished {
		r.finish()
	}
}

// pendingEmpty must be called with mu held.
func (r *streamingRequest) pendingEmpty() bool {
	for _, segment := range r.textBuffer {
		if segment != "" {
			return false
		}
	}
	return true
}

func (r *streamingRequest) finish() {
	r.mu.Lock()
	if r.ended {
		r.mu.Unlock()
		return
	}
	r.ended = true
	r.mu.Unlock()

	r.options.SpeechEndedCallback()
	_ = r.Close()
}

func (r *streamingRequest) checkOpen() error {
	if r.closed {
		return fmt.Errorf("streaming request closed")
	} else if r.cancelled {
		return fmt.Errorf("streaming request cancelled")
	} else if r.textComplete {
		return fmt.Errorf("streaming request text already completed")
	}
	return nil
}

func (r *streamingRequest) SendText(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkOpen(); err != nil {
		return err
	}

	if len(r.textBuffer) == 0 {
		r.textBuffer = append(r.textBuffer, "")
	}

	if len(r.textBuffer) == 1 {
		if err := r.sendWebsocketMessage(sendTextMsg(text)); err != nil {
			return fmt.Errorf("failed to send websocket send text message: %w", err)
		}
	}
	r.textBuffer[len(r.textBuffer)-1] += text
	return nil
}

func (r *streamingRequest) Mark() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkOpen(); err != nil {
		return err
	}
	return r.mark()
}

// mark must be called with mu held.
func (r *streamingRequest) mark() error {
	if len(r.textBuffer) == 1 {
		if err := r.sendWebsocketMessage(flushMsg); err != nil {
			return fmt.Errorf("failed to send websocket flush message: %w", err)
		}
	}

	// NOTE: For some reason deepgram sometimes drops text that is passed after
	// a flush unless there is some kind of break. This allows us to send the
	// text after we get the flush confirmation
	r.textBuffer = append(r.textBuffer, "")

	return nil
}

func (r *streamingRequest) EndOfText() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return fmt.Errorf("streaming request closed")
	} else if r.cancelled {
		r.mu.Unlock()
		return fmt.Errorf("streaming request cancelled")
	} else if r.textComplete {
		r.mu.Unlock()
		return nil
	}

	if len(r.textBuffer) > 0 && r.textBuffer[len(r.textBuffer)-1] != "" {
		if err := r.mark(); err != nil {
			r.mu.Unlock()
			return err
		}
	}
	r.textComplete = true
	finished := r.pendingEmpty()
	r.mu.Unlock()

	if finished {
		r.finish()
	}
	return nil
}

func (r *streamingRequest) Cancel() error {
	r.mu.Lock()
	if r.closed || r.cancelled {
		r.mu.Unlock()
		return nil
	}
	r.cancelled = true
	r.textBuffer = nil
	err := r.sendWebsocketMessage(clearMsg)
	r.mu.Unlock()

	if err != nil {
		logger.Debug("failed to send deepgram clear message", "error", err)
	}
	return r.Close()
}

func (r *streamingRequest) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}

	err := r.sendWebsocketMessage(closeMsg)
	r.closed = true
	if err != nil {
		if aggressiveCloseErr := r.ws.Close(); aggressiveCloseErr != nil {
			return fmt.Errorf("failed to close websocket: %w", errors.Join(err, aggressiveCloseErr))
		}
	}
	return nil
}

type websocketMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

var (
	sendTextMsg = func(text string) websocketMessage {
		return websocketMessage{Type: "Speak", Text: text}
	}
	flushMsg = websocketMessage{Type: "Flush"}
	clearMsg = websocketMessage{Type: "Clear"}
	closeMsg = websocketMessage{Type: "Close"}
)

// sendWebsocketMessage must be called with mu held.
func (r *streamingRequest) sendWebsocketMessage(msg websocketMessage) error {
	if r.closed || r.ws == nil {
		return fmt.Errorf("websocket connection closed")
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := r.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}
