package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/koscakluka/xperto/core/events"
	"github.com/koscakluka/xperto/core/pipeline"
)

// Capturer delivers microphone audio to onAudio until stopped. The buffer
// passed to onAudio is only valid for the duration of the call.
type Capturer interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
}

type Player interface {
	SendAudio(audio []byte) error
	ClearBuffer()
}

// Input is the head of a local pipeline: it turns captured audio into
// AudioChunk events between Start and End.
type Input struct {
	capturer Capturer
	encoding EncodingInfo

	mu        sync.Mutex
	capturing bool
}

func NewInput(capturer Capturer, encoding EncodingInfo) *Input {
	if encoding.IsZero() {
		encoding = GetDefaultEncodingInfo()
	}
	return &Input{capturer: capturer, encoding: encoding}
}

func (i *Input) Name() string { return "audio input" }

func (i *Input) Process(ctx context.Context, event events.Event, direction events.Direction, out pipeline.Output) {
	switch event.(type) {
	case events.Start:
		out.Push(ctx, event, direction)
		if err := i.start(ctx, out); err != nil {
			logger.Error("failed to start audio capture", "error", err)
			out.Push(ctx, events.NewFatalError(err), events.Downstream)
		}
		return
	case events.End, events.Cancel:
		i.stop()
	}
	out.Push(ctx, event, direction)
}

func (i *Input) start(ctx context.Context, out pipeline.Output) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.capturing {
		return nil
	}

	err := i.capturer.StartCapture(ctx, func(audio []byte) {
		chunk := make([]byte, len(audio))
		copy(chunk, audio)
		capturedBytes.Add(ctx, int64(len(chunk)))
		out.Push(ctx, events.NewAudioChunk(chunk, i.encoding.SampleRate, i.encoding.channels()), events.Downstream)
	})
	if err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}
	i.capturing = true
	return nil
}

func (i *Input) stop() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.capturing {
		return
	}
	if err := i.capturer.StopCapture(); err != nil {
		logger.Warn("failed to stop audio capture", "error", err)
	}
	i.capturing = false
}

// Output plays SpeechAudio and drops whatever is still queued for playback
// when the user interrupts.
type Output struct {
	player Player
}

func NewOutput(player Player) *Output {
	return &Output{player: player}
}

func (o *Output) Name() string { return "audio output" }

func (o *Output) Process(ctx context.Context, event events.Event, direction events.Direction, out pipeline.Output) {
	if direction == events.Downstream {
		switch e := event.(type) {
		case events.SpeechAudio:
			if err := o.player.SendAudio(e.Audio); err != nil {
				logger.Warn("failed to play speech audio", "error", err)
			} else {
				playedBytes.Add(ctx, int64(len(e.Audio)))
			}
		case events.InterruptionStarted:
			o.player.ClearBuffer()
			playbackClears.Add(ctx, 1)
		}
	}
	out.Push(ctx, event, direction)
}
