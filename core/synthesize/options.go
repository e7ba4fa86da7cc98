// Package synthesize defines the client-side synthesis contract shared by
// the remote streaming channel and the local platform engine.
package synthesize

import "github.com/lkosir/voicepipe-core/core/audio"

// Voice describes one synthesis voice exposed by an engine.
type Voice struct {
	URI  string
	Name string
	Lang string
}

type SpeechOptions struct {
	// AudioCallback receives synthesized audio chunks from streaming engines.
	AudioCallback func(audio []byte)
	// CompletedCallback fires when the engine reports that all audio for the
	// current reply has been delivered.
	CompletedCallback func()

	SpeechStartedCallback func()
	SpeechEndedCallback   func()
	ErrorCallback         func(err error)

	ConnectedCallback    func()
	DisconnectedCallback func(err error)

	// Voice is the URI of the selected voice, empty for the engine default.
	Voice        string
	Language     string
	EncodingInfo audio.EncodingInfo
}

type SpeechOption func(*SpeechOptions)

func WithAudioCallback(callback func(audio []byte)) SpeechOption {
	return func(o *SpeechOptions) {
		o.AudioCallback = callback
	}
}

func WithCompletedCallback(callback func()) SpeechOption {
	return func(o *SpeechOptions) {
		o.CompletedCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) SpeechOption {
	return func(o *SpeechOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) SpeechOption {
	return func(o *SpeechOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithErrorCallback(callback func(err error)) SpeechOption {
	return func(o *SpeechOptions) {
		o.ErrorCallback = callback
	}
}

func WithConnectedCallback(callback func()) SpeechOption {
	return func(o *SpeechOptions) {
		o.ConnectedCallback = callback
	}
}

func WithDisconnectedCallback(callback func(err error)) SpeechOption {
	return func(o *SpeechOptions) {
		o.DisconnectedCallback = callback
	}
}

func WithVoice(voiceURI string) SpeechOption {
	return func(o *SpeechOptions) {
		o.Voice = voiceURI
	}
}

// WithLanguage fixes the synthesis locale for the session.
func WithLanguage(language string) SpeechOption {
	return func(o *SpeechOptions) {
		o.Language = language
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SpeechOption {
	return func(o *SpeechOptions) {
		o.EncodingInfo = encodingInfo
	}
}
