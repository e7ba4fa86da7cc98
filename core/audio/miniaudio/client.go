// Package miniaudio binds the pipeline's capture and playback contract to
// the host audio stack through malgo.
package miniaudio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/lkosir/voicepipe-core/core/audio"
)

type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	playbackClient
	captureClient
}

type ClientOption func(*clientOptions)

type clientOptions struct {
	captureDeviceID  string
	playbackDeviceID string
}

// WithCaptureDevice selects the capture device by enumerated id; the default
// device is used when empty or not found.
func WithCaptureDevice(deviceID string) ClientOption {
	return func(o *clientOptions) {
		o.captureDeviceID = deviceID
	}
}

// WithPlaybackDevice selects the playback device by enumerated id.
func WithPlaybackDevice(deviceID string) ClientOption {
	return func(o *clientOptions) {
		o.playbackDeviceID = deviceID
	}
}

func NewClient(opts ...ClientOption) (*Client, error) {
	options := clientOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) {},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	client := Client{
		audioContext: audioCtx,
	}

	captureID := lookupDeviceID(audioCtx, malgo.Capture, options.captureDeviceID)
	playbackID := lookupDeviceID(audioCtx, malgo.Playback, options.playbackDeviceID)

	if err := client.captureClient.Init(audioCtx, captureID); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	if err := client.playbackClient.Init(audioCtx, playbackID); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}

	return &client, nil
}

func (c *Client) StartCapture(_ context.Context, onAudio func(audio []byte)) error {
	return c.captureClient.Start(onAudio)
}

func (c *Client) StopCapture() error {
	return c.captureClient.Stop()
}

func (c *Client) StartPlayback(_ context.Context) error {
	return c.playbackClient.Start()
}

func (c *Client) StopPlayback() error {
	return c.playbackClient.Stop()
}

// Close releases every device and the audio context. The owning session
// calls it exactly once on deactivation.
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

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}
