package pipeline

import (
	"context"
	"time"

	"github.com/lkosir/voicepipe-core/core/audio"
	"github.com/lkosir/voicepipe-core/core/synthesize"
	"github.com/lkosir/voicepipe-core/core/transcribe"
	"github.com/lkosir/voicepipe-core/core/vad"
)

type SessionOption func(*Session)

// CaptureClient is the microphone side of a host audio binding. A fresh
// client is built per activation and released on deactivation.
type CaptureClient interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
	Close()
	EncodingInfo() audio.EncodingInfo
}

// PlaybackClient is the speaker side; remote synthesis audio drains into it.
// Capture clients that also implement it are used for playback
// automatically.
type PlaybackClient interface {
	StartPlayback(ctx context.Context) error
	StopPlayback() error
	SendAudio(audio []byte) error
	ClearBuffer()
}

// DeviceEnumerator lists host audio devices for the capability registry.
type DeviceEnumerator interface {
	Devices() ([]audio.Device, error)
}

// WithCaptureClientFactory sets how the session acquires its host audio
// binding on each activation.
func WithCaptureClientFactory(factory func(ctx context.Context) (CaptureClient, error)) SessionOption {
	return func(s *Session) {
		s.captureFactory = factory
	}
}

// WithDeviceEnumerator sets where the capability registry lists host audio
// devices from.
func WithDeviceEnumerator(enumerator DeviceEnumerator) SessionOption {
	return func(s *Session) {
		s.registry.setDeviceEnumerator(enumerator)
	}
}

// TranscriptionStreamer is a remote transcription channel.
type TranscriptionStreamer interface {
	Transcribe(ctx context.Context, opts ...transcribe.TranscriptionOption) error
	SendAudio(audio []byte) error
	Close(ctx context.Context) error
}

// FallbackRecognizer is a local continuous recognition engine.
type FallbackRecognizer interface {
	Start(ctx context.Context, opts ...transcribe.TranscriptionOption) error
	Stop() error
}

// WithTranscriptionFactory sets how the session builds the remote
// transcription channel on each activation. Channels are never reused.
func WithTranscriptionFactory(factory func() TranscriptionStreamer) SessionOption {
	return func(s *Session) {
		s.transcriptionFactory = factory
	}
}

// WithFallbackRecognizerFactory sets how the session builds the local
// recognition engine used when the remote channel is unavailable.
func WithFallbackRecognizerFactory(factory func() FallbackRecognizer) SessionOption {
	return func(s *Session) {
		s.recognizerFactory = factory
	}
}

// SynthesisStreamer is a remote synthesis channel.
type SynthesisStreamer interface {
	OpenStream(ctx context.Context, opts ...synthesize.SpeechOption) error
	SendText(text string) error
	Close(ctx context.Context) error
}

// LocalSynthesizer is a host synthesis engine with genuine start/end
// callbacks.
type LocalSynthesizer interface {
	Speak(ctx context.Context, text string, opts ...synthesize.SpeechOption) error
	Stop() error
}

// VoiceEnumerator exposes the lazily loading host voice set.
type VoiceEnumerator interface {
	Voices() []synthesize.Voice
	RefreshVoices(ctx context.Context)
	SubscribeVoicesChanged(callback func()) func()
}

// WithSynthesisFactory sets how the session builds the remote synthesis
// channel on each activation.
func WithSynthesisFactory(factory func() SynthesisStreamer) SessionOption {
	return func(s *Session) {
		s.synthesisFactory = factory
	}
}

// WithLocalSynthesizer sets the host synthesis engine used when the remote
// channel is unavailable. Engines that also enumerate voices feed the
// capability registry.
func WithLocalSynthesizer(engine LocalSynthesizer) SessionOption {
	return func(s *Session) {
		s.localSynthesizer = engine
		if enumerator, ok := engine.(VoiceEnumerator); ok {
			s.registry.setVoiceEnumerator(enumerator)
		}
	}
}

// WithLanguage fixes both recognition and synthesis to one locale for every
// session this instance runs.
func WithLanguage(language string) SessionOption {
	return func(s *Session) {
		s.language = language
	}
}

// WithCompletionWindow overrides the guard window after which a remote
// synthesis dispatch is considered finished if no completion marker arrives.
func WithCompletionWindow(window time.Duration) SessionOption {
	return func(s *Session) {
		if window > 0 {
			s.completionWindow = window
		}
	}
}

// WithDetectorOptions tunes the voice activity detector built for each
// activation.
func WithDetectorOptions(opts ...vad.DetectorOption) SessionOption {
	return func(s *Session) {
		s.detectorOptions = opts
	}
}

type ActivateOption func(*ActivateOptions)

type ActivateOptions struct {
	onUserSpeakingChanged    func(speaking bool)
	onAgentSpeakingChanged   func(speaking bool)
	onInterimTranscription   func(transcript string)
	onTranscription          func(transcript string)
	onPlaybackStarted        func(messageID string)
	onPlaybackEnded          func(messageID string)
	onPlaybackFailed         func(messageID string, err error)
	onTransportStatusChanged func(channel, status string)
	onDeactivated            func()
}

func WithUserSpeakingChangedCallback(callback func(speaking bool)) ActivateOption {
	return func(o *ActivateOptions) {
		o.onUserSpeakingChanged = callback
	}
}

func WithAgentSpeakingChangedCallback(callback func(speaking bool)) ActivateOption {
	return func(o *ActivateOptions) {
		o.onAgentSpeakingChanged = callback
	}
}

func WithInterimTranscriptionCallback(callback func(transcript string)) ActivateOption {
	return func(o *ActivateOptions) {
		o.onInterimTranscription = callback
	}
}

// WithTranscriptionCallback receives final transcripts; the conversation
// collaborator appends them as user messages.
func WithTranscriptionCallback(callback func(transcript string)) ActivateOption {
	return func(o *ActivateOptions) {
		o.onTranscription = callback
	}
}

func WithPlaybackStartedCallback(callback func(messageID string)) ActivateOption {
	return func(o *ActivateOptions) {
		o.onPlaybackStarted = callback
	}
}

func WithPlaybackEndedCallback(callback func(messageID string)) ActivateOption {
	return func(o *ActivateOptions) {
		o.onPlaybackEnded = callback
	}
}

func WithPlaybackFailedCallback(callback func(messageID string, err error)) ActivateOption {
	return func(o *ActivateOptions) {
		o.onPlaybackFailed = callback
	}
}

func WithTransportStatusChangedCallback(callback func(channel, status string)) ActivateOption {
	return func(o *ActivateOptions) {
		o.onTransportStatusChanged = callback
	}
}

func WithDeactivatedCallback(callback func()) ActivateOption {
	return func(o *ActivateOptions) {
		o.onDeactivated = callback
	}
}
