package miniaudio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/xperto/core/audio"
)

// Client owns one malgo context with a capture and a playback device, both
// using the same encoding.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	encoding     audio.EncodingInfo
	playbackClient
	captureClient
}

type ClientOptions struct {
	CaptureDevice  *malgo.DeviceID
	PlaybackDevice *malgo.DeviceID
}

type ClientOption func(*ClientOptions)

// WithCaptureDevice records from device instead of the system default.
func WithCaptureDevice(device Device) ClientOption {
	return func(o *ClientOptions) {
		id := device.ID
		o.CaptureDevice = &id
	}
}

// WithPlaybackDevice plays to device instead of the system default.
func WithPlaybackDevice(device Device) ClientOption {
	return func(o *ClientOptions) {
		id := device.ID
		o.PlaybackDevice = &id
	}
}

func NewClient(encoding audio.EncodingInfo, opts ...ClientOption) (*Client, error) {
	options := ClientOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if encoding.IsZero() {
		encoding = audio.GetDefaultEncodingInfo()
	}
	if encoding.Format != audio.EncodingLinear16 {
		return nil, fmt.Errorf("unsupported device encoding %q", encoding.Format)
	}

	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	client := Client{
		audioContext: audioCtx,
		encoding:     encoding,
	}

	if err := client.playbackClient.Init(audioCtx, encoding, options.PlaybackDevice); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}

	if err := client.playbackClient.Start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	if err := client.captureClient.Init(audioCtx, encoding, options.CaptureDevice); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return &client, nil
}

func (c *Client) StartCapture(_ context.Context, onAudio func(audio []byte)) error {
	return c.captureClient.Start(onAudio)
}

func (c *Client) StopCapture() error {
	return c.captureClient.Stop()
}

func (c *Client) Close() {
	_ = c.captureClient.Uninit()
	_ = c.playbackClient.Uninit()
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}

func (c *Client) SendAudio(audio []byte) error {
	return c.playbackClient.SendAudio(audio)
}

func (c *Client) ClearBuffer() {
	c.playbackClient.ClearBuffer()
}

// AwaitPlayback blocks until everything queued so far has been played or
// ctx is done.
func (c *Client) AwaitPlayback(ctx context.Context) error {
	return c.playbackClient.AwaitMark(ctx)
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.encoding
}
