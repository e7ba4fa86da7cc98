package miniaudio

import (
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/lkosir/voicepipe-core/core/audio"
)

// Devices enumerates host capture and playback devices as one list split by
// kind. Enumeration failures surface as errors so the caller can degrade to
// an empty list.
func (c *Client) Devices() ([]audio.Device, error) {
	devices := []audio.Device{}

	captureInfos, err := c.audioContext.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}
	for _, info := range captureInfos {
		devices = append(devices, audio.Device{
			ID:    info.ID.String(),
			Kind:  audio.DeviceInput,
			Label: info.Name(),
		})
	}

	playbackInfos, err := c.audioContext.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate playback devices: %w", err)
	}
	for _, info := range playbackInfos {
		devices = append(devices, audio.Device{
			ID:    info.ID.String(),
			Kind:  audio.DeviceOutput,
			Label: info.Name(),
		})
	}

	return devices, nil
}

// lookupDeviceID resolves an enumerated device id back to the malgo device
// handle. Unknown or empty ids fall back to the default device (nil).
func lookupDeviceID(audioCtx *malgo.AllocatedContext, kind malgo.DeviceType, deviceID string) *malgo.DeviceID {
	if deviceID == "" {
		return nil
	}

	infos, err := audioCtx.Devices(kind)
	if err != nil {
		return nil
	}

	for _, info := range infos {
		if info.ID.String() == deviceID {
			id := info.ID
			return &id
		}
	}

	return nil
}
