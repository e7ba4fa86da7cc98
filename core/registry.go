package pipeline

import (
	"context"
	"log"
	"sync"

	"github.com/jinzhu/copier"

	"github.com/lkosir/voicepipe-core/core/audio"
	"github.com/lkosir/voicepipe-core/core/synthesize"
)

// CapabilityRegistry tracks the host audio devices and synthesis voices a
// session can draw on, together with the user's current selections. It
// outlives any single activation; selections made while a session is
// inactive apply to the next activation.
type CapabilityRegistry struct {
	mu sync.Mutex

	deviceEnumerator DeviceEnumerator
	voiceEnumerator  VoiceEnumerator
	unsubscribe      func()

	devices []audio.Device
	voices  []synthesize.Voice

	selectedMicrophoneID string
	selectedSpeakerID    string
	selectedVoiceURI     string
}

func newCapabilityRegistry() *CapabilityRegistry {
	return &CapabilityRegistry{}
}

func (r *CapabilityRegistry) setDeviceEnumerator(enumerator DeviceEnumerator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deviceEnumerator = enumerator
}

func (r *CapabilityRegistry) setVoiceEnumerator(enumerator VoiceEnumerator) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.unsubscribe != nil {
		r.unsubscribe()
	}
	r.voiceEnumerator = enumerator
	if enumerator == nil {
		r.unsubscribe = nil
		return
	}

	// Host voice catalogs can load after the first enumeration; adopt the
	// fuller set whenever the engine reports a change.
	r.unsubscribe = enumerator.SubscribeVoicesChanged(func() {
		voices := enumerator.Voices()
		r.mu.Lock()
		r.voices = voices
		r.mu.Unlock()
	})
}

// Refresh re-enumerates devices and voices. Failures are logged and leave
// the previous lists in place; a refresh never invalidates selections.
func (r *CapabilityRegistry) Refresh(ctx context.Context) {
	r.mu.Lock()
	deviceEnumerator := r.deviceEnumerator
	voiceEnumerator := r.voiceEnumerator
	r.mu.Unlock()

	if deviceEnumerator != nil {
		devices, err := deviceEnumerator.Devices()
		if err != nil {
			log.Printf("Failed to enumerate audio devices: %v", err)
		} else {
			r.mu.Lock()
			r.devices = devices
			r.mu.Unlock()
		}
	}

	if voiceEnumerator != nil {
		voiceEnumerator.RefreshVoices(ctx)
		voices := voiceEnumerator.Voices()
		r.mu.Lock()
		r.voices = voices
		r.mu.Unlock()
	}
}

// Microphones returns the known input devices.
func (r *CapabilityRegistry) Microphones() []audio.Device {
	return r.devicesOfKind(audio.DeviceInput)
}

// Speakers returns the known output devices.
func (r *CapabilityRegistry) Speakers() []audio.Device {
	return r.devicesOfKind(audio.DeviceOutput)
}

func (r *CapabilityRegistry) devicesOfKind(kind audio.DeviceKind) []audio.Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	devices := []audio.Device{}
	for _, device := range r.devices {
		if device.Kind != kind {
			continue
		}
		copied := audio.Device{}
		if err := copier.Copy(&copied, &device); err != nil {
			continue
		}
		devices = append(devices, copied)
	}
	return devices
}

// Voices returns the known synthesis voices.
func (r *CapabilityRegistry) Voices() []synthesize.Voice {
	r.mu.Lock()
	defer r.mu.Unlock()

	voices := []synthesize.Voice{}
	if err := copier.CopyWithOption(&voices, &r.voices, copier.Option{DeepCopy: true}); err != nil {
		return nil
	}
	return voices
}

// SelectMicrophone records the input device to capture from. An empty id
// means the host default. The selection takes effect on the next
// activation.
func (r *CapabilityRegistry) SelectMicrophone(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selectedMicrophoneID = id
}

// SelectSpeaker records the output device to play through.
func (r *CapabilityRegistry) SelectSpeaker(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selectedSpeakerID = id
}

// SelectVoice records the synthesis voice by its URI.
func (r *CapabilityRegistry) SelectVoice(uri string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selectedVoiceURI = uri
}

// SelectedMicrophone returns the selected input device id, empty for the
// host default.
func (r *CapabilityRegistry) SelectedMicrophone() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectedMicrophoneID
}

// SelectedSpeaker returns the selected output device id.
func (r *CapabilityRegistry) SelectedSpeaker() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectedSpeakerID
}

// SelectedVoice returns the selected voice URI, empty when the engine
// default should be used.
func (r *CapabilityRegistry) SelectedVoice() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectedVoiceURI
}

func (r *CapabilityRegistry) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
}
