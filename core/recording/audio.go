package recording

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/koscakluka/xperto/core/events"
	"github.com/koscakluka/xperto/core/pipeline"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const bitDepth = 16

type AudioRecorderOptions struct {
	Now func() time.Time
}

type AudioRecorderOption func(*AudioRecorderOptions)

func WithRecorderClock(now func() time.Time) AudioRecorderOption {
	return func(o *AudioRecorderOptions) {
		o.Now = now
	}
}

type track struct {
	sampleRate int
	pcm        []byte
}

func (t *track) add(audio []byte, sampleRate int) {
	if t.sampleRate == 0 {
		t.sampleRate = sampleRate
	} else if sampleRate != t.sampleRate {
		logger.Warn("dropping audio with a different sample rate", "want", t.sampleRate, "got", sampleRate)
		return
	}
	t.pcm = append(t.pcm, audio...)
}

// AudioRecorder keeps the user's and the assistant's 16-bit mono audio and
// writes them as two WAV files when the conversation ends.
type AudioRecorder struct {
	dir     string
	name    string
	options AudioRecorderOptions

	mu    sync.Mutex
	user  track
	bot   track
	saved bool
}

func NewAudioRecorder(dir, name string, opts ...AudioRecorderOption) *AudioRecorder {
	options := AudioRecorderOptions{Now: time.Now}
	for _, opt := range opts {
		opt(&options)
	}
	return &AudioRecorder{dir: dir, name: name, options: options}
}

func (r *AudioRecorder) Name() string { return "audio recorder" }

func (r *AudioRecorder) Process(ctx context.Context, event events.Event, direction events.Direction, out pipeline.Output) {
	if direction == events.Downstream {
		switch e := event.(type) {
		case events.AudioChunk:
			r.mu.Lock()
			r.user.add(e.Audio, e.SampleRate)
			r.mu.Unlock()
		case events.SpeechAudio:
			r.mu.Lock()
			r.bot.add(e.Audio, e.SampleRate)
			r.mu.Unlock()
		case events.End, events.Cancel:
			if _, err := r.Save(ctx); err != nil {
				logger.Error("failed to save recording", "error", err)
			}
		}
	}
	out.Push(ctx, event, direction)
}

// Save writes the recorded tracks once and returns the files written.
// Empty tracks are skipped.
func (r *AudioRecorder) Save(ctx context.Context) ([]string, error) {
	_, span := tracer.Start(ctx, "save audio recording")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saved {
		return nil, nil
	}
	r.saved = true

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to create recordings directory: %w", err)
	}

	timestamp := r.options.Now().Format(fileTimestampLayout)
	var paths []string
	tracks := []struct {
		suffix string
		track  *track
	}{{"user", &r.user}, {"bot", &r.bot}}
	for _, tt := range tracks {
		suffix, t := tt.suffix, tt.track
		if len(t.pcm) == 0 {
			continue
		}
		path := filepath.Join(r.dir, fmt.Sprintf("%s_%s_%s.wav", timestamp, r.name, suffix))
		if err := writeWAV(path, t.pcm, t.sampleRate); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return paths, err
		}
		logger.Info("audio saved", "path", path)
		paths = append(paths, path)
	}
	span.SetAttributes(attribute.StringSlice("recording.paths", paths))
	return paths, nil
}

func writeWAV(path string, pcm []byte, sampleRate int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}

	encoder := wav.NewEncoder(file, sampleRate, bitDepth, 1, 1)
	buffer := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
	if err := encoder.Write(buffer); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to finish %s: %w", path, err)
	}
	return nil
}
